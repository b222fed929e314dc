package editor

import (
	"encoding/json"
	"fmt"

	"sitebuilder/internal/models"

	"github.com/segmentio/ksuid"
)

// Document mutation operations. Every operation is a pure function
// (Document, args) -> Document: the input slice is never mutated, which is
// what lets the history stack's snapshot model work. Target-not-found and
// out-of-range arguments are no-ops, not errors.

// NewComponentID returns a fresh component id: KSUID, so time-ordered with a
// random tail. Uniqueness within a document follows from that; collisions are
// treated as negligible, not cryptographically impossible.
func NewComponentID() string {
	return "cmp_" + ksuid.New().String()
}

// AddComponent appends a new component seeded from spec's props template and
// returns the new document plus the created component (the chrome marks it
// as the active selection).
func AddComponent(doc []models.Component, spec ComponentSpec) ([]models.Component, models.Component) {
	props := make(map[string]any, len(spec.PropsTemplate))
	for k, v := range spec.PropsTemplate {
		props[k] = v
	}
	comp := models.Component{
		ID:    NewComponentID(),
		Type:  spec.Type,
		Props: props,
	}
	next := make([]models.Component, 0, len(doc)+1)
	next = append(next, doc...)
	next = append(next, comp)
	return next, comp
}

// UpdateComponent shallow-merges props into the component with the given id.
// Unknown ids leave the document unchanged.
func UpdateComponent(doc []models.Component, id string, props map[string]any) []models.Component {
	idx := indexOf(doc, id)
	if idx < 0 {
		return doc
	}
	next := make([]models.Component, len(doc))
	copy(next, doc)
	merged := make(map[string]any, len(doc[idx].Props)+len(props))
	for k, v := range doc[idx].Props {
		merged[k] = v
	}
	for k, v := range props {
		merged[k] = v
	}
	next[idx].Props = merged
	return next
}

// ApplyStyle shallow-merges style overrides into the component with the given
// id. Same not-found semantics as UpdateComponent.
func ApplyStyle(doc []models.Component, id string, style map[string]any) []models.Component {
	idx := indexOf(doc, id)
	if idx < 0 {
		return doc
	}
	next := make([]models.Component, len(doc))
	copy(next, doc)
	merged := make(map[string]any, len(doc[idx].Style)+len(style))
	for k, v := range doc[idx].Style {
		merged[k] = v
	}
	for k, v := range style {
		merged[k] = v
	}
	next[idx].Style = merged
	return next
}

// ReorderComponent removes the component at from and reinserts it at to.
// Out-of-range indices return the document unchanged.
func ReorderComponent(doc []models.Component, from, to int) []models.Component {
	if from < 0 || from >= len(doc) || to < 0 || to >= len(doc) {
		return doc
	}
	if from == to {
		return doc
	}
	next := make([]models.Component, 0, len(doc))
	next = append(next, doc...)
	moved := next[from]
	next = append(next[:from], next[from+1:]...)
	rest := make([]models.Component, 0, len(doc))
	rest = append(rest, next[:to]...)
	rest = append(rest, moved)
	rest = append(rest, next[to:]...)
	return rest
}

// ImportDocument replaces the component list wholesale from raw JSON of the
// shape {"components": [...]}. Validation is shallow: the components array
// must be present and every entry must carry an id. Deeper structure is the
// caller's responsibility.
func ImportDocument(raw []byte) ([]models.Component, error) {
	var wrapper struct {
		Components []models.Component `json:"components"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("import document: %w", err)
	}
	if wrapper.Components == nil {
		return nil, fmt.Errorf("import document: missing components array")
	}
	for i, c := range wrapper.Components {
		if c.ID == "" {
			return nil, fmt.Errorf("import document: component %d has no id", i)
		}
	}
	return wrapper.Components, nil
}

func indexOf(doc []models.Component, id string) int {
	for i := range doc {
		if doc[i].ID == id {
			return i
		}
	}
	return -1
}
