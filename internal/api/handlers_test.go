package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"sitebuilder/internal/models"
	"sitebuilder/internal/repository"
	"sitebuilder/internal/services"

	"github.com/gorilla/mux"
)

type recordedVersion struct {
	Slug    string
	Version int
	SavedBy string
}

type recordingSink struct {
	versions []recordedVersion
}

func (s *recordingSink) SubmitVersion(slug string, version int, components []models.Component, savedBy string) error {
	s.versions = append(s.versions, recordedVersion{Slug: slug, Version: version, SavedBy: savedBy})
	return nil
}

type testServer struct {
	router *mux.Router
	sink   *recordingSink
	upload string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	root := t.TempDir()

	pages, err := repository.NewFilePageRepository(filepath.Join(root, "data"))
	if err != nil {
		t.Fatalf("NewFilePageRepository: %v", err)
	}
	t.Cleanup(func() { pages.Close() })

	admin, err := repository.NewFileAdminRepository(filepath.Join(root, "data"))
	if err != nil {
		t.Fatalf("NewFileAdminRepository: %v", err)
	}

	uploadDir := filepath.Join(root, "uploads")
	uploader, err := services.NewUploader(uploadDir, "/uploads")
	if err != nil {
		t.Fatalf("NewUploader: %v", err)
	}

	sink := &recordingSink{}
	h := NewHandler(pages, admin, admin, uploader, sink)
	return &testServer{
		router: SetupRoutes(h, nil, uploadDir),
		sink:   sink,
		upload: uploadDir,
	}
}

// do runs one request through the router and decodes the response envelope.
func (s *testServer) do(t *testing.T, method, path string, body any) (int, envelope, json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope (%s %s, status %d): %v", method, path, rec.Code, err)
	}
	return rec.Code, envelope{Success: env.Success, Error: env.Error}, env.Data
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestCreateAndGetPage(t *testing.T) {
	srv := newTestServer(t)

	status, env, data := srv.do(t, "POST", "/api/pages", map[string]any{
		"slug":       "landing",
		"title_json": map[string]any{"en": "Landing"},
	})
	if status != http.StatusCreated || !env.Success {
		t.Fatalf("create page: status %d, env %+v", status, env)
	}

	var created models.Page
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode created page: %v", err)
	}
	if created.Slug != "landing" || created.Status != models.StatusDraft {
		t.Fatalf("created page = %+v", created)
	}

	status, env, _ = srv.do(t, "GET", "/api/pages/landing", nil)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("get page: status %d, env %+v", status, env)
	}

	status, env, _ = srv.do(t, "GET", "/api/pages/nope", nil)
	if status != http.StatusNotFound || env.Success {
		t.Fatalf("missing page: status %d, env %+v", status, env)
	}
}

func TestCreatePageConflict(t *testing.T) {
	srv := newTestServer(t)

	srv.do(t, "POST", "/api/pages", map[string]any{"slug": "home"})
	status, env, _ := srv.do(t, "POST", "/api/pages", map[string]any{"slug": "home"})
	if status != http.StatusConflict || env.Success {
		t.Fatalf("duplicate create: status %d, env %+v", status, env)
	}
}

func TestSaveAndPublishFlow(t *testing.T) {
	srv := newTestServer(t)

	srv.do(t, "POST", "/api/pages", map[string]any{"slug": "about"})

	// Published view is hidden until the page is actually promoted.
	status, _, _ := srv.do(t, "GET", "/api/pages/about?mode=published", nil)
	if status != http.StatusNotFound {
		t.Fatalf("unpublished page served in published mode: status %d", status)
	}

	draft := models.PageDraft{
		Components: []models.Component{
			{ID: "cmp_1", Type: "hero_banner", Props: map[string]any{"heading": "About us"}},
		},
		UpdatedBy: "alice@example.com",
	}
	status, env, data := srv.do(t, "POST", "/api/pages/about/save", draft)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("save: status %d, env %+v", status, env)
	}

	var saved models.Page
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("decode saved page: %v", err)
	}
	if len(saved.Components) != 1 || saved.UpdatedBy != "alice@example.com" {
		t.Fatalf("saved page = %+v", saved)
	}
	if len(srv.sink.versions) != 1 || srv.sink.versions[0].Slug != "about" {
		t.Fatalf("version sink = %+v", srv.sink.versions)
	}

	status, env, data = srv.do(t, "POST", "/api/pages/about/publish", map[string]any{
		"updated_by": "alice@example.com",
	})
	if status != http.StatusOK || !env.Success {
		t.Fatalf("publish: status %d, env %+v", status, env)
	}

	var published models.Page
	if err := json.Unmarshal(data, &published); err != nil {
		t.Fatalf("decode published page: %v", err)
	}
	if published.Status != models.StatusPublished {
		t.Fatalf("status after publish = %q", published.Status)
	}
	if published.Version != saved.Version+1 {
		t.Fatalf("version after publish = %d, want %d", published.Version, saved.Version+1)
	}

	status, _, _ = srv.do(t, "GET", "/api/pages/about?mode=published", nil)
	if status != http.StatusOK {
		t.Fatalf("published page not served: status %d", status)
	}
}

func TestDeletePage(t *testing.T) {
	srv := newTestServer(t)

	srv.do(t, "POST", "/api/pages", map[string]any{"slug": "temp"})
	status, env, _ := srv.do(t, "DELETE", "/api/pages/temp", nil)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("delete: status %d, env %+v", status, env)
	}

	status, _, _ = srv.do(t, "GET", "/api/pages/temp", nil)
	if status != http.StatusNotFound {
		t.Fatalf("deleted page still served: status %d", status)
	}
}

func TestComponentLibraryCRUD(t *testing.T) {
	srv := newTestServer(t)

	status, _, data := srv.do(t, "GET", "/api/components", nil)
	if status != http.StatusOK {
		t.Fatalf("list components: status %d", status)
	}
	var entries []models.ComponentLibraryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected seeded palette entries")
	}

	status, _, data = srv.do(t, "POST", "/api/components", models.ComponentLibraryEntry{
		Type:     "testimonial",
		Name:     "Testimonial",
		Category: "content",
	})
	if status != http.StatusCreated {
		t.Fatalf("create component: status %d", status)
	}
	var created models.ComponentLibraryEntry
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode created entry: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created entry has no ID")
	}

	newName := "Customer quote"
	status, _, data = srv.do(t, "PUT", "/api/components/"+created.ID, models.ComponentLibraryUpdate{Name: &newName})
	if status != http.StatusOK {
		t.Fatalf("update component: status %d", status)
	}
	var updated models.ComponentLibraryEntry
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("decode updated entry: %v", err)
	}
	if updated.Name != newName {
		t.Fatalf("updated name = %q, want %q", updated.Name, newName)
	}

	status, _, _ = srv.do(t, "DELETE", "/api/components/"+created.ID, nil)
	if status != http.StatusOK {
		t.Fatalf("delete component: status %d", status)
	}
	status, _, _ = srv.do(t, "GET", "/api/components/"+created.ID, nil)
	if status != http.StatusNotFound {
		t.Fatalf("deleted component still served: status %d", status)
	}
}

func TestUserCRUD(t *testing.T) {
	srv := newTestServer(t)

	status, _, data := srv.do(t, "POST", "/api/users", models.UserCreate{
		Email: "bob@example.com",
		Name:  "Bob",
	})
	if status != http.StatusCreated {
		t.Fatalf("create user: status %d", status)
	}
	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.Role != "editor" {
		t.Fatalf("default role = %q, want editor", user.Role)
	}

	role := "admin"
	status, _, data = srv.do(t, "PUT", "/api/users/"+user.ID, models.UserUpdate{Role: &role})
	if status != http.StatusOK {
		t.Fatalf("update user: status %d", status)
	}
	var updated models.User
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("decode updated user: %v", err)
	}
	if updated.Role != "admin" {
		t.Fatalf("updated role = %q", updated.Role)
	}

	status, _, data = srv.do(t, "GET", "/api/users", nil)
	if status != http.StatusOK {
		t.Fatalf("list users: status %d", status)
	}
	var users []models.User
	if err := json.Unmarshal(data, &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("user count = %d, want 1", len(users))
	}

	status, _, _ = srv.do(t, "DELETE", "/api/users/"+user.ID, nil)
	if status != http.StatusOK {
		t.Fatalf("delete user: status %d", status)
	}
}

func TestUploadImage(t *testing.T) {
	srv := newTestServer(t)

	// 1x1 transparent PNG.
	dataURL := "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

	status, _, data := srv.do(t, "POST", "/api/upload-image", uploadRequest{
		Filename: "pixel.png",
		DataURL:  dataURL,
	})
	if status != http.StatusCreated {
		t.Fatalf("upload: status %d", status)
	}

	var result map[string]string
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode upload result: %v", err)
	}
	name := filepath.Base(result["url"])
	if _, err := os.Stat(filepath.Join(srv.upload, name)); err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}

	status, env, _ := srv.do(t, "POST", "/api/upload-image", uploadRequest{
		Filename: "bad.txt",
		DataURL:  "not-a-data-url",
	})
	if status != http.StatusBadRequest || env.Success {
		t.Fatalf("bad upload accepted: status %d, env %+v", status, env)
	}
}
