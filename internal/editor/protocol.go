// Package editor implements the page-builder editing core: the message
// vocabulary spoken between the editor chrome and the canvas, the document
// mutation operations, the undo/redo history stack, the auto-save scheduler,
// and the session/hub orchestration that ties them together over websockets.
package editor

import (
	"encoding/json"

	"sitebuilder/internal/models"
)

// MessageType tags one editor protocol message.
type MessageType string

const (
	// chrome -> canvas
	MsgInit             MessageType = "INIT"
	MsgAddComponent     MessageType = "ADD_COMPONENT"
	MsgUpdateComponent  MessageType = "UPDATE_COMPONENT"
	MsgUpdateField      MessageType = "UPDATE_FIELD"
	MsgApplyStyle       MessageType = "APPLY_STYLE"
	MsgReorderComponent MessageType = "REORDER_COMPONENT"
	MsgUndo             MessageType = "UNDO"
	MsgRedo             MessageType = "REDO"
	MsgSaveRequest      MessageType = "SAVE_REQUEST"
	MsgSaveDraft        MessageType = "SAVE_DRAFT"
	MsgPublishRequest   MessageType = "PUBLISH_REQUEST"
	MsgPublish          MessageType = "PUBLISH"

	// canvas -> chrome
	MsgInitAck    MessageType = "INIT_ACK"
	MsgSyncState  MessageType = "SYNC_STATE"
	MsgSaveAck    MessageType = "SAVE_ACK"
	MsgPublishAck MessageType = "PUBLISH_ACK"
)

var knownTypes = map[MessageType]bool{
	MsgInit: true, MsgAddComponent: true, MsgUpdateComponent: true,
	MsgUpdateField: true, MsgApplyStyle: true, MsgReorderComponent: true,
	MsgUndo: true, MsgRedo: true, MsgSaveRequest: true, MsgSaveDraft: true,
	MsgPublishRequest: true, MsgPublish: true, MsgInitAck: true,
	MsgSyncState: true, MsgSaveAck: true, MsgPublishAck: true,
}

// Known reports whether t is part of the protocol vocabulary. Unknown types
// are ignored by the router so the protocol can be extended without breaking
// older peers.
func (t MessageType) Known() bool { return knownTypes[t] }

// Envelope is the wire shape of every message: {type, payload}. The legacy
// shape {__editor__: true, type, payload} is still accepted on decode.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type legacyEnvelope struct {
	Editor  bool            `json:"__editor__"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses raw bytes into an Envelope. It returns ok=false for anything
// that should be dropped silently: malformed JSON or an empty type tag.
// Unknown-but-well-formed types decode fine; the router skips them.
func Decode(raw []byte) (Envelope, bool) {
	var legacy legacyEnvelope
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return Envelope{}, false
	}
	if legacy.Type == "" {
		return Envelope{}, false
	}
	return Envelope{Type: legacy.Type, Payload: legacy.Payload}, true
}

// Encode marshals a message with the given payload into wire bytes.
func Encode(t MessageType, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}

// Payload shapes. Mutating payloads come in the two field spellings the
// chrome emits: UPDATE_COMPONENT ({componentId, props}) and UPDATE_FIELD
// ({id, field, value}) both end up as a props merge.

type ComponentSpec struct {
	Type          string         `json:"type"`
	PropsTemplate map[string]any `json:"props_template,omitempty"`
}

type AddComponentPayload struct {
	Component ComponentSpec `json:"component"`
}

type UpdateComponentPayload struct {
	ComponentID string         `json:"componentId"`
	Props       map[string]any `json:"props"`
}

type UpdateFieldPayload struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Value any    `json:"value"`
}

type ApplyStylePayload struct {
	ComponentID string         `json:"componentId"`
	Style       map[string]any `json:"style"`
}

type ReorderPayload struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type InitAckPayload struct {
	Theme  string `json:"theme"`
	Locale string `json:"locale"`
}

type SyncStatePayload struct {
	Components []models.Component `json:"components"`
	CanUndo    bool               `json:"canUndo"`
	CanRedo    bool               `json:"canRedo"`
}

type AckPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
