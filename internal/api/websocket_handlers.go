package api

import (
	"net/http"

	"sitebuilder/internal/editor"

	"github.com/gorilla/mux"
)

// WebSocketHandler upgrades editor connections and hands them to the hub.
type WebSocketHandler struct {
	hub *editor.Hub
}

func NewWebSocketHandler(hub *editor.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleEditorWS serves /ws/editor/{slug}.
func (h *WebSocketHandler) HandleEditorWS(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	if slug == "" {
		http.Error(w, "slug is required", http.StatusBadRequest)
		return
	}
	h.hub.ServeWS(w, r, slug)
}
