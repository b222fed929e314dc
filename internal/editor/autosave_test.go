package editor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAutoSaverDebounceCollapsesBursts(t *testing.T) {
	var calls atomic.Int32
	save := func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}
	a := NewAutoSaver(save, 30*time.Millisecond, time.Second, nil)
	defer a.Stop()

	// A burst of triggers must collapse into exactly one save at the tail.
	a.TriggerSave()
	a.TriggerSave()
	a.TriggerSave()

	time.Sleep(120 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("save called %d times, want 1", n)
	}
}

func TestAutoSaverMutualExclusion(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	save := func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}
	a := NewAutoSaver(save, 10*time.Millisecond, time.Second, nil)
	defer a.Stop()

	go a.ForceSave()
	time.Sleep(30 * time.Millisecond)

	// While the first save is in flight, neither a second ForceSave nor a
	// TriggerSave may start another attempt.
	a.ForceSave()
	a.TriggerSave()
	if a.Pending() {
		t.Fatal("trigger during in-flight save must not arm the timer")
	}

	close(release)
	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("save called %d times, want 1", n)
	}
}

func TestAutoSaverFailureSurfacesError(t *testing.T) {
	save := func(ctx context.Context) error { return errors.New("network down") }

	var mu sync.Mutex
	var transitions []SaveState
	a := NewAutoSaver(save, time.Hour, time.Second, func(st SaveState) {
		mu.Lock()
		transitions = append(transitions, st)
		mu.Unlock()
	})
	defer a.Stop()

	a.ForceSave()

	st := a.State()
	if st.IsSaving {
		t.Fatal("isSaving should be false after the attempt resolved")
	}
	if st.Error != "network down" {
		t.Fatalf("error = %q, want %q", st.Error, "network down")
	}
	if st.LastSaveTime != nil {
		t.Fatal("lastSaveTime must not be set on failure")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 2 {
		t.Fatalf("got %d transitions, want start + resolution", len(transitions))
	}
	if !transitions[0].IsSaving || transitions[1].IsSaving {
		t.Fatalf("transition order wrong: %+v", transitions)
	}
}

func TestAutoSaverSuccessRecordsTime(t *testing.T) {
	a := NewAutoSaver(func(ctx context.Context) error { return nil }, time.Hour, time.Second, nil)
	defer a.Stop()

	a.ForceSave()
	st := a.State()
	if st.LastSaveTime == nil {
		t.Fatal("lastSaveTime should be set on success")
	}
	if st.Error != "" {
		t.Fatalf("error = %q, want empty", st.Error)
	}

	// A later failure must not erase the mutual exclusion of callbacks:
	// the next attempt reports the error, and a following success clears it.
	fail := true
	b := NewAutoSaver(func(ctx context.Context) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	}, time.Hour, time.Second, nil)
	defer b.Stop()

	b.ForceSave()
	if b.State().Error != "boom" {
		t.Fatalf("error = %q, want boom", b.State().Error)
	}
	fail = false
	b.ForceSave()
	if b.State().Error != "" {
		t.Fatal("successful save should clear the error")
	}
}

func TestAutoSaverTimeoutResolvesSavingState(t *testing.T) {
	save := func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}
	a := NewAutoSaver(save, time.Hour, 20*time.Millisecond, nil)
	defer a.Stop()

	a.ForceSave()
	st := a.State()
	if st.IsSaving {
		t.Fatal("a hung save must not leave the scheduler in Saving")
	}
	if st.Error == "" {
		t.Fatal("timeout should surface through the error path")
	}
}

func TestAutoSaverStopCancelsPendingTimer(t *testing.T) {
	var calls atomic.Int32
	a := NewAutoSaver(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, 20*time.Millisecond, time.Second, nil)

	a.TriggerSave()
	a.Stop()
	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("stopped scheduler must not fire")
	}

	a.TriggerSave()
	a.ForceSave()
	if calls.Load() != 0 {
		t.Fatal("stopped scheduler must refuse new work")
	}
}
