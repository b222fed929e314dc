package editor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"sitebuilder/internal/models"
)

const testOrigin = "http://localhost:3000"

// fakeStore is an in-memory PageStore.
type fakeStore struct {
	mu         sync.Mutex
	pages      map[string]*models.Page
	writeErr   error
	publishErr error
	writes     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{pages: make(map[string]*models.Page)}
}

func (f *fakeStore) ReadPage(ctx context.Context, slug string) (*models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[slug]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) WritePage(ctx context.Context, slug string, draft *models.PageDraft) (*models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.writes++
	p, ok := f.pages[slug]
	if !ok {
		p = &models.Page{Slug: slug, Status: models.StatusDraft, Version: 1}
		f.pages[slug] = p
	}
	p.Components = draft.Components
	p.UpdatedBy = draft.UpdatedBy
	cp := *p
	return &cp, nil
}

func (f *fakeStore) PublishPage(ctx context.Context, slug, updatedBy string) (*models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	p, ok := f.pages[slug]
	if !ok {
		return nil, errors.New("page not found")
	}
	p.Status = models.StatusPublished
	p.Version++
	cp := *p
	return &cp, nil
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// startSession spins up a session wired to an in-memory store and returns a
// channel carrying every canvas->chrome message it emits.
func startSession(t *testing.T, store PageStore, debounce time.Duration) (*Session, chan []byte) {
	t.Helper()
	out := make(chan []byte, 64)
	s := NewSession(SessionConfig{
		Slug:        "home",
		Store:       store,
		Origin:      testOrigin,
		Debounce:    debounce,
		SaveTimeout: time.Second,
		Broadcast:   func(data []byte) { out <- data },
	})
	s.Start()
	t.Cleanup(s.Close)

	deadline := time.Now().Add(2 * time.Second)
	for !s.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("session never became ready")
		}
		time.Sleep(time.Millisecond)
	}
	return s, out
}

func dispatch(s *Session, t MessageType, payload any) {
	data, _ := json.Marshal(payload)
	s.Dispatch(Inbound{Env: Envelope{Type: t, Payload: data}, Origin: testOrigin})
}

// waitFor reads broadcasts until one of the wanted type arrives.
func waitFor(t *testing.T, out chan []byte, want MessageType) Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-out:
			env, ok := Decode(raw)
			if ok && env.Type == want {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func syncPayload(t *testing.T, env Envelope) SyncStatePayload {
	t.Helper()
	var p SyncStatePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("sync payload: %v", err)
	}
	return p
}

func TestSessionInitAck(t *testing.T) {
	s, out := startSession(t, newFakeStore(), time.Hour)

	dispatch(s, MsgInit, struct{}{})

	env := waitFor(t, out, MsgInitAck)
	var ack InitAckPayload
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		t.Fatalf("init ack payload: %v", err)
	}
	if ack.Theme == "" || ack.Locale == "" {
		t.Fatalf("ack missing theme/locale: %+v", ack)
	}
	sync := syncPayload(t, waitFor(t, out, MsgSyncState))
	if len(sync.Components) != 0 || sync.CanUndo || sync.CanRedo {
		t.Fatalf("fresh page sync = %+v", sync)
	}
}

func TestSessionAddThenUndo(t *testing.T) {
	s, out := startSession(t, newFakeStore(), time.Hour)

	dispatch(s, MsgAddComponent, AddComponentPayload{
		Component: ComponentSpec{Type: "hero_banner", PropsTemplate: map[string]any{"title": "hi"}},
	})
	sync := syncPayload(t, waitFor(t, out, MsgSyncState))
	if len(sync.Components) != 1 || !sync.CanUndo {
		t.Fatalf("after add: %+v", sync)
	}

	dispatch(s, MsgUndo, struct{}{})
	sync = syncPayload(t, waitFor(t, out, MsgSyncState))
	if len(sync.Components) != 0 {
		t.Fatalf("undo should restore the empty document, got %d components", len(sync.Components))
	}
	if !sync.CanRedo {
		t.Fatal("redo should be available after undo")
	}

	dispatch(s, MsgRedo, struct{}{})
	sync = syncPayload(t, waitFor(t, out, MsgSyncState))
	if len(sync.Components) != 1 {
		t.Fatal("redo should restore the added component")
	}
}

func TestSessionUpdateFieldAndStyle(t *testing.T) {
	s, out := startSession(t, newFakeStore(), time.Hour)

	dispatch(s, MsgAddComponent, AddComponentPayload{Component: ComponentSpec{Type: "cta_section"}})
	sync := syncPayload(t, waitFor(t, out, MsgSyncState))
	id := sync.Components[0].ID

	dispatch(s, MsgUpdateField, UpdateFieldPayload{ID: id, Field: "title", Value: "Buy now"})
	sync = syncPayload(t, waitFor(t, out, MsgSyncState))
	if sync.Components[0].Props["title"] != "Buy now" {
		t.Fatalf("field update lost: %v", sync.Components[0].Props)
	}

	dispatch(s, MsgApplyStyle, ApplyStylePayload{ComponentID: id, Style: map[string]any{"width": "320px"}})
	sync = syncPayload(t, waitFor(t, out, MsgSyncState))
	if sync.Components[0].Style["width"] != "320px" {
		t.Fatalf("style not applied: %v", sync.Components[0].Style)
	}
}

func TestSessionForeignOriginDropped(t *testing.T) {
	s, out := startSession(t, newFakeStore(), time.Hour)

	data, _ := json.Marshal(AddComponentPayload{Component: ComponentSpec{Type: "hero_banner"}})
	s.Dispatch(Inbound{
		Env:    Envelope{Type: MsgAddComponent, Payload: data},
		Origin: "https://evil.example",
	})

	// A trusted INIT afterwards proves the foreign message was never applied:
	// per-sender FIFO means it would have been handled first.
	dispatch(s, MsgInit, struct{}{})
	waitFor(t, out, MsgInitAck)
	sync := syncPayload(t, waitFor(t, out, MsgSyncState))
	if len(sync.Components) != 0 {
		t.Fatal("message from foreign origin must not mutate the document")
	}
}

func TestSessionIgnoresUnknownTypes(t *testing.T) {
	s, out := startSession(t, newFakeStore(), time.Hour)

	s.Dispatch(Inbound{Env: Envelope{Type: "FUTURE_FEATURE"}, Origin: testOrigin})

	dispatch(s, MsgInit, struct{}{})
	waitFor(t, out, MsgInitAck)
	sync := syncPayload(t, waitFor(t, out, MsgSyncState))
	if len(sync.Components) != 0 {
		t.Fatal("unknown message types must be ignored")
	}
}

func TestSessionSaveFailureSurfacesError(t *testing.T) {
	store := newFakeStore()
	store.writeErr = errors.New("network down")
	s, out := startSession(t, store, time.Hour)

	dispatch(s, MsgAddComponent, AddComponentPayload{Component: ComponentSpec{Type: "hero_banner"}})
	waitFor(t, out, MsgSyncState)

	dispatch(s, MsgSaveRequest, struct{}{})
	env := waitFor(t, out, MsgSaveAck)
	var ack AckPayload
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		t.Fatalf("ack payload: %v", err)
	}
	if ack.Success {
		t.Fatal("save ack should report failure")
	}
	if ack.Error != "network down" {
		t.Fatalf("ack error = %q, want %q", ack.Error, "network down")
	}
}

func TestSessionAutosavePersistsEdit(t *testing.T) {
	store := newFakeStore()
	s, out := startSession(t, store, 20*time.Millisecond)

	dispatch(s, MsgAddComponent, AddComponentPayload{Component: ComponentSpec{Type: "hero_banner"}})
	waitFor(t, out, MsgSyncState)

	env := waitFor(t, out, MsgSaveAck)
	var ack AckPayload
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		t.Fatalf("ack payload: %v", err)
	}
	if !ack.Success {
		t.Fatalf("autosave failed: %q", ack.Error)
	}

	page, _ := store.ReadPage(context.Background(), "home")
	if page == nil || len(page.Components) != 1 {
		t.Fatalf("autosave did not persist the edit: %+v", page)
	}
}

func TestSessionPublish(t *testing.T) {
	store := newFakeStore()
	s, out := startSession(t, store, time.Hour)

	dispatch(s, MsgAddComponent, AddComponentPayload{Component: ComponentSpec{Type: "hero_banner"}})
	waitFor(t, out, MsgSyncState)

	dispatch(s, MsgPublishRequest, struct{}{})
	env := waitFor(t, out, MsgPublishAck)
	var ack AckPayload
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		t.Fatalf("ack payload: %v", err)
	}
	if !ack.Success {
		t.Fatalf("publish failed: %q", ack.Error)
	}

	page, _ := store.ReadPage(context.Background(), "home")
	if page.Status != models.StatusPublished {
		t.Fatalf("status = %q, want published", page.Status)
	}
	if page.Version != 2 {
		t.Fatalf("version = %d, want 2 after publish bump", page.Version)
	}
}

func TestSessionResumesLoadedPage(t *testing.T) {
	store := newFakeStore()
	store.pages["home"] = &models.Page{
		Slug:       "home",
		Status:     models.StatusDraft,
		Version:    3,
		Components: docOf("a", "b"),
	}
	s, out := startSession(t, store, time.Hour)

	dispatch(s, MsgInit, struct{}{})
	waitFor(t, out, MsgInitAck)
	sync := syncPayload(t, waitFor(t, out, MsgSyncState))
	if len(sync.Components) != 2 {
		t.Fatalf("loaded %d components, want 2", len(sync.Components))
	}
	if sync.CanUndo {
		t.Fatal("the loaded baseline must not be undoable")
	}

	// Reordering the loaded components still works against the baseline.
	dispatch(s, MsgReorderComponent, ReorderPayload{From: 0, To: 1})
	sync = syncPayload(t, waitFor(t, out, MsgSyncState))
	if sync.Components[0].ID != "b" {
		t.Fatalf("reorder wrong: %v", idsOf(sync.Components))
	}
}

// The hub greets late joiners with SyncPayload from its own goroutine while
// the session loop keeps committing edits; run with -race to verify the two
// never touch unguarded state.
func TestSessionSyncPayloadDuringEditBurst(t *testing.T) {
	s, out := startSession(t, newFakeStore(), time.Hour)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.SyncPayload()
			}
		}
	}()

	const edits = 50
	for i := 0; i < edits; i++ {
		dispatch(s, MsgAddComponent, AddComponentPayload{Component: ComponentSpec{Type: "hero_banner"}})
		waitFor(t, out, MsgSyncState)
	}

	close(stop)
	wg.Wait()

	got := s.SyncPayload()
	if len(got.Components) != edits {
		t.Fatalf("payload has %d components, want %d", len(got.Components), edits)
	}
	if !got.CanUndo || got.CanRedo {
		t.Fatalf("undo/redo flags = %v/%v, want true/false", got.CanUndo, got.CanRedo)
	}
}
