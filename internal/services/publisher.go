package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"sitebuilder/internal/models"
)

// VersionJob is one snapshot waiting to be written to the version log.
type VersionJob struct {
	Slug       string
	Version    int
	Components []models.Component
	SavedBy    string
}

// PublisherImpl writes page-version snapshots off the save path with a
// bounded worker pool: the editor's save call enqueues and returns, workers
// do the actual version-log writes.
type PublisherImpl struct {
	store   VersionStore
	jobs    chan VersionJob
	workers int
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// NewPublisher creates the pool without starting it.
// Returns concrete type - "Accept interfaces, return structs".
func NewPublisher(store VersionStore, numWorkers, queueSize int) *PublisherImpl {
	if numWorkers <= 0 {
		numWorkers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PublisherImpl{
		store:   store,
		jobs:    make(chan VersionJob, queueSize),
		workers: numWorkers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start spawns the workers.
func (p *PublisherImpl) Start() {
	log.Printf("🔧 Starting version writer pool with %d workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Println("✓ Version writer pool started")
}

func (p *PublisherImpl) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.process(job); err != nil {
				log.Printf("  Version worker %d error: %v", id, err)
			}
		}
	}
}

func (p *PublisherImpl) process(job VersionJob) error {
	return p.store.AppendVersion(p.ctx, &models.PageVersion{
		Slug:       job.Slug,
		Version:    job.Version,
		Components: job.Components,
		SavedBy:    job.SavedBy,
	})
}

// Submit queues a job; blocks only when the queue is full (backpressure).
// Fails once Shutdown has begun.
func (p *PublisherImpl) Submit(job VersionJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return fmt.Errorf("version writer is shutting down")
	}
	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("version writer is shutting down")
	}
}

// SubmitVersion adapts Submit to the editor's VersionSink interface.
func (p *PublisherImpl) SubmitVersion(slug string, version int, components []models.Component, savedBy string) error {
	return p.Submit(VersionJob{
		Slug:       slug,
		Version:    version,
		Components: components,
		SavedBy:    savedBy,
	})
}

// QueueLength returns the number of pending jobs.
func (p *PublisherImpl) QueueLength() int {
	return len(p.jobs)
}

// Shutdown stops accepting work, drains the queue, and waits for the
// workers to exit.
func (p *PublisherImpl) Shutdown() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	log.Println("🛑 Shutting down version writer...")
	p.wg.Wait()
	p.cancel()
	log.Println("✓ Version writer shutdown complete")
}
