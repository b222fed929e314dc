package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionImpl prunes old page-version snapshots on a cron schedule so the
// version log stays bounded over months of editing.
type RetentionImpl struct {
	store    RetentionStore
	schedule string
	keep     int
	cron     *cron.Cron
}

// NewRetention builds the job; Start registers it with the scheduler.
// schedule is a standard 5-field cron expression, keep is the number of
// snapshots retained per page.
func NewRetention(store RetentionStore, schedule string, keep int) *RetentionImpl {
	if schedule == "" {
		schedule = "0 3 * * *" // nightly
	}
	if keep <= 0 {
		keep = 50
	}
	return &RetentionImpl{
		store:    store,
		schedule: schedule,
		keep:     keep,
		cron:     cron.New(),
	}
}

// Start schedules and launches the cron runner.
func (r *RetentionImpl) Start() error {
	_, err := r.cron.AddFunc(r.schedule, r.runOnce)
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	log.Printf("✓ Version retention scheduled (%s, keep %d per page)", r.schedule, r.keep)
	return nil
}

func (r *RetentionImpl) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := r.store.PruneVersions(ctx, r.keep); err != nil {
		log.Printf("⚠️  Version retention pass failed: %v", err)
		return
	}
	log.Println("  Version retention pass complete")
}

// Stop halts the scheduler and waits for a running pass to finish.
func (r *RetentionImpl) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
