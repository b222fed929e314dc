package editor

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultDebounce is how long a burst of edits must go quiet before the
	// scheduled save fires.
	DefaultDebounce = 30 * time.Second
	// DefaultSaveTimeout bounds one save attempt so a hung request can't
	// leave the scheduler stuck in Saving.
	DefaultSaveTimeout = 30 * time.Second
)

// SaveFunc performs one save attempt. It must honor ctx cancellation.
type SaveFunc func(ctx context.Context) error

// SaveState is the transient UI-facing save status. It is reported through
// the AutoSaver's change callback and never persisted.
type SaveState struct {
	IsSaving     bool       `json:"isSaving"`
	LastSaveTime *time.Time `json:"lastSaveTime"`
	Error        string     `json:"error,omitempty"`
}

// AutoSaver debounces save requests and guarantees at most one save attempt
// in flight. Bursts of TriggerSave calls collapse into a single save at the
// tail of the burst; a TriggerSave arriving while a save is in flight is a
// no-op (the next edit starts a new debounce cycle, which is also the only
// retry path for failures).
type AutoSaver struct {
	mu       sync.Mutex
	save     SaveFunc
	onChange func(SaveState)

	debounce time.Duration
	timeout  time.Duration

	timer   *time.Timer
	saving  bool
	stopped bool
	state   SaveState
}

// NewAutoSaver builds a scheduler around save. onChange (may be nil) receives
// the save-state transitions: once when an attempt starts, and exactly once
// more when it resolves with either a timestamp or an error.
func NewAutoSaver(save SaveFunc, debounce, timeout time.Duration, onChange func(SaveState)) *AutoSaver {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if timeout <= 0 {
		timeout = DefaultSaveTimeout
	}
	return &AutoSaver{
		save:     save,
		onChange: onChange,
		debounce: debounce,
		timeout:  timeout,
	}
}

// TriggerSave (re)starts the debounce timer. A pending timer is replaced,
// never stacked, and nothing is scheduled while a save is in flight.
func (a *AutoSaver) TriggerSave() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped || a.saving {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, a.runSave)
}

// ForceSave cancels any pending timer and performs the save immediately on
// the caller's goroutine. Returns once the attempt has resolved. No-op if a
// save is already in flight.
func (a *AutoSaver) ForceSave() {
	a.mu.Lock()
	if a.stopped || a.saving {
		a.mu.Unlock()
		return
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	a.runSave()
}

// State returns a copy of the current save state.
func (a *AutoSaver) State() SaveState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Pending reports whether a debounce timer is currently armed.
func (a *AutoSaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

// Stop cancels any pending timer and refuses further scheduling. An attempt
// already in flight still resolves through the normal callback path.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *AutoSaver) runSave() {
	a.mu.Lock()
	if a.saving || a.stopped {
		a.mu.Unlock()
		return
	}
	a.saving = true
	a.timer = nil
	a.state.IsSaving = true
	a.state.Error = ""
	st, cb := a.state, a.onChange
	a.mu.Unlock()
	if cb != nil {
		cb(st)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	err := a.save(ctx)
	cancel()

	a.mu.Lock()
	a.saving = false
	a.state.IsSaving = false
	if err != nil {
		a.state.Error = err.Error()
	} else {
		now := time.Now()
		a.state.LastSaveTime = &now
		a.state.Error = ""
	}
	st, cb = a.state, a.onChange
	a.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}
