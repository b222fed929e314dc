package api

import (
	"net/http"

	"sitebuilder/internal/middleware"

	"github.com/gorilla/mux"
)

// SetupRoutes builds the full route table. uploadDir is served read-only
// under /uploads/ so image URLs returned by the uploader resolve.
func SetupRoutes(h *Handler, ws *WebSocketHandler, uploadDir string) *mux.Router {
	r := mux.NewRouter()

	// Middleware runs in order: tracing first, then recovery, then CORS
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	// Page endpoints
	api.HandleFunc("/pages", h.ListPages).Methods("GET")
	api.HandleFunc("/pages", h.CreatePage).Methods("POST")
	api.HandleFunc("/pages/{slug}", h.GetPage).Methods("GET")
	api.HandleFunc("/pages/{slug}", h.DeletePage).Methods("DELETE")
	api.HandleFunc("/pages/{slug}/save", h.SavePage).Methods("POST")
	api.HandleFunc("/pages/{slug}/publish", h.PublishPage).Methods("POST")
	api.HandleFunc("/pages/{slug}/versions", h.ListPageVersions).Methods("GET")

	// Component library endpoints
	api.HandleFunc("/components", h.ListComponents).Methods("GET")
	api.HandleFunc("/components", h.CreateComponent).Methods("POST")
	api.HandleFunc("/components/{id}", h.GetComponent).Methods("GET")
	api.HandleFunc("/components/{id}", h.UpdateComponent).Methods("PUT")
	api.HandleFunc("/components/{id}", h.DeleteComponent).Methods("DELETE")

	// User endpoints
	api.HandleFunc("/users", h.CreateUser).Methods("POST")
	api.HandleFunc("/users", h.ListUsers).Methods("GET")
	api.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	api.HandleFunc("/users/{id}", h.UpdateUser).Methods("PUT")
	api.HandleFunc("/users/{id}", h.DeleteUser).Methods("DELETE")

	// Upload endpoint
	api.HandleFunc("/upload-image", h.UploadImage).Methods("POST")

	// Health check endpoint
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// WebSocket routes
	if ws != nil {
		r.HandleFunc("/ws/editor/{slug}", ws.HandleEditorWS)
	}

	// Serve uploaded assets
	if uploadDir != "" {
		r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))
	}

	return r
}
