package editor

import (
	"time"

	"sitebuilder/internal/models"

	"github.com/brunoga/deep"
)

// DefaultHistoryLimit caps the undo log so long editing sessions don't grow
// memory without bound.
const DefaultHistoryLimit = 50

// HistoryState is one immutable snapshot of the component list, taken at an
// edit boundary. Snapshots are deep clones: mutating the live document never
// alters a stored state.
type HistoryState struct {
	Components []models.Component
	Timestamp  time.Time
	Action     string
}

// History is a bounded, linear undo/redo log of full-document snapshots.
// cursor points at the "current" entry; -1 iff the log is empty. It is not
// goroutine-safe: it is owned by a single session and only touched on that
// session's own loop.
type History struct {
	states []HistoryState
	cursor int
	limit  int
}

// NewHistory returns an empty history capped at limit entries. A limit <= 0
// falls back to DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{cursor: -1, limit: limit}
}

// AddState deep-clones components and appends the snapshot with an action
// label. Any states after the cursor are discarded first (undo-then-edit
// truncates the redo branch). When the cap is exceeded the oldest entry is
// evicted and the cursor shifted so it keeps pointing at the same state.
func (h *History) AddState(components []models.Component, action string) {
	if h.cursor < len(h.states)-1 {
		h.states = h.states[:h.cursor+1]
	}
	h.states = append(h.states, HistoryState{
		Components: cloneComponents(components),
		Timestamp:  time.Now(),
		Action:     action,
	})
	h.cursor++
	if len(h.states) > h.limit {
		h.states = h.states[1:]
		h.cursor--
	}
}

// Undo moves the cursor back one state and returns a deep clone of it, or
// nil when there is nothing to undo.
func (h *History) Undo() []models.Component {
	if h.cursor <= 0 {
		return nil
	}
	h.cursor--
	return cloneComponents(h.states[h.cursor].Components)
}

// Redo moves the cursor forward one state and returns a deep clone of it, or
// nil when there is nothing to redo.
func (h *History) Redo() []models.Component {
	if h.cursor >= len(h.states)-1 {
		return nil
	}
	h.cursor++
	return cloneComponents(h.states[h.cursor].Components)
}

func (h *History) CanUndo() bool { return h.cursor > 0 }

func (h *History) CanRedo() bool { return h.cursor >= 0 && h.cursor < len(h.states)-1 }

// Len returns the number of stored snapshots.
func (h *History) Len() int { return len(h.states) }

// Current returns the action label of the snapshot under the cursor, or ""
// when the log is empty.
func (h *History) Current() string {
	if h.cursor < 0 {
		return ""
	}
	return h.states[h.cursor].Action
}

// Clear empties the log, used when a session is reset onto a different page.
func (h *History) Clear() {
	h.states = nil
	h.cursor = -1
}

func cloneComponents(components []models.Component) []models.Component {
	if components == nil {
		return []models.Component{}
	}
	return deep.MustCopy(components)
}
