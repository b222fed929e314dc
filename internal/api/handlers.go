package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"sitebuilder/internal/models"

	"github.com/gorilla/mux"
)

// Handler handles HTTP requests. Every response is wrapped in the
// {success, data?, error?} envelope the dashboard expects.
type Handler struct {
	pages    PageStore
	library  LibraryStore
	users    UserStore
	uploader Uploader
	versions VersionSink // optional; nil skips version snapshots on REST saves
}

// NewHandler wires the handler to its stores. versions may be nil.
func NewHandler(pages PageStore, library LibraryStore, users UserStore, uploader Uploader, versions VersionSink) *Handler {
	return &Handler{
		pages:    pages,
		library:  library,
		users:    users,
		uploader: uploader,
		versions: versions,
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

// Page handlers

func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.pages.ListPages(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, pages)
}

type createPageRequest struct {
	Slug  string         `json:"slug"`
	Title map[string]any `json:"title_json"`
}

func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req createPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Slug == "" {
		writeError(w, http.StatusBadRequest, "slug is required")
		return
	}

	if existing, err := h.pages.ReadPage(r.Context(), req.Slug); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	} else if existing != nil {
		writeError(w, http.StatusConflict, "page already exists: "+req.Slug)
		return
	}

	page, err := h.pages.WritePage(r.Context(), req.Slug, &models.PageDraft{
		Title:      req.Title,
		Components: []models.Component{},
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusCreated, page)
}

func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	mode := r.URL.Query().Get("mode")

	page, err := h.pages.ReadPage(r.Context(), slug)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if page == nil {
		writeError(w, http.StatusNotFound, "page not found: "+slug)
		return
	}
	// mode=published only serves pages that have actually been promoted;
	// drafts stay private to the editor.
	if mode == "published" && page.Status != models.StatusPublished {
		writeError(w, http.StatusNotFound, "page not published: "+slug)
		return
	}
	writeData(w, http.StatusOK, page)
}

func (h *Handler) SavePage(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	var draft models.PageDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.pages.WritePage(r.Context(), slug, &draft)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.versions != nil {
		// Best effort: a full version-writer queue must not fail the save.
		_ = h.versions.SubmitVersion(page.Slug, page.Version, page.Components, page.UpdatedBy)
	}
	writeData(w, http.StatusOK, page)
}

func (h *Handler) PublishPage(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	var body struct {
		UpdatedBy string `json:"updated_by"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	page, err := h.pages.PublishPage(r.Context(), slug, body.UpdatedBy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, page)
}

func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	if err := h.pages.DeletePage(r.Context(), slug); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]string{"slug": slug})
}

func (h *Handler) ListPageVersions(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	versions, err := h.pages.ListVersions(r.Context(), slug, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, versions)
}

// Component library handlers

func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	entries, err := h.library.ListEntries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, entries)
}

func (h *Handler) GetComponent(w http.ResponseWriter, r *http.Request) {
	entry, err := h.library.GetEntry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeData(w, http.StatusOK, entry)
}

func (h *Handler) CreateComponent(w http.ResponseWriter, r *http.Request) {
	var entry models.ComponentLibraryEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if entry.Type == "" || entry.Name == "" {
		writeError(w, http.StatusBadRequest, "type and name are required")
		return
	}

	created, err := h.library.CreateEntry(r.Context(), &entry)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusCreated, created)
}

func (h *Handler) UpdateComponent(w http.ResponseWriter, r *http.Request) {
	var update models.ComponentLibraryUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.library.UpdateEntry(r.Context(), mux.Vars(r)["id"], &update)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, entry)
}

func (h *Handler) DeleteComponent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.library.DeleteEntry(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

// User handlers

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var create models.UserCreate
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if create.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.users.CreateUser(r.Context(), &create)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusCreated, user)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	users, err := h.users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, users)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var update models.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.UpdateUser(r.Context(), mux.Vars(r)["id"], &update)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

// Upload handler

type uploadRequest struct {
	Filename string `json:"filename"`
	DataURL  string `json:"data_url"`
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	url, err := h.uploader.UploadFromBase64(req.Filename, req.DataURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeData(w, http.StatusCreated, map[string]string{"url": url})
}
