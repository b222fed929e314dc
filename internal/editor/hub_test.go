package editor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"sitebuilder/internal/models"
)

// gatedStore delays ReadPage until released, holding a session in the
// not-Ready state for as long as the test wants.
type gatedStore struct {
	*fakeStore
	release chan struct{}
}

func (g *gatedStore) ReadPage(ctx context.Context, slug string) (*models.Page, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeStore.ReadPage(ctx, slug)
}

func newTestHub(t *testing.T, store PageStore, idle time.Duration) *Hub {
	t.Helper()
	h := NewHub(HubConfig{
		Store:       store,
		Origin:      testOrigin,
		Debounce:    time.Hour,
		SaveTimeout: time.Second,
		Theme:       "light",
		Locale:      "en",
		IdleTimeout: idle,
	})
	h.Start()
	t.Cleanup(h.Shutdown)
	return h
}

// newTestClient builds a chrome client without a real socket; the hub only
// touches the send channel until the pumps run.
func newTestClient(h *Hub, slug string) *Client {
	return &Client{
		id:     "client-" + slug,
		slug:   slug,
		origin: testOrigin,
		user:   "tester",
		hub:    h,
		send:   make(chan []byte, 16),
	}
}

func waitReady(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !s.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("session never became ready")
		}
		time.Sleep(time.Millisecond)
	}
}

// nextClientMessage reads one decoded frame off the client's send channel.
func nextClientMessage(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed while waiting for a message")
		}
		env, decoded := Decode(raw)
		if !decoded {
			t.Fatalf("client received undecodable frame: %s", raw)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client message")
	}
	return Envelope{}
}

// waitClientFor reads frames until one of the wanted type arrives.
func waitClientFor(t *testing.T, c *Client, want MessageType) Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		env := nextClientMessage(t, c)
		if env.Type == want {
			return env
		}
	}
	t.Fatalf("timed out waiting for %s", want)
	return Envelope{}
}

func TestHubGreetsLateJoinerOnReadySession(t *testing.T) {
	store := newFakeStore()
	store.pages["home"] = &models.Page{
		Slug:       "home",
		Status:     models.StatusDraft,
		Version:    1,
		Components: docOf("a"),
	}
	h := newTestHub(t, store, time.Minute)

	s := h.SessionFor("home")
	waitReady(t, s)

	c := newTestClient(h, "home")
	h.Register(c)

	env := nextClientMessage(t, c)
	if env.Type != MsgInitAck {
		t.Fatalf("first greeting message = %s, want %s", env.Type, MsgInitAck)
	}
	var ack InitAckPayload
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		t.Fatalf("init ack payload: %v", err)
	}
	if ack.Theme != "light" || ack.Locale != "en" {
		t.Fatalf("greeting ack = %+v", ack)
	}

	env = nextClientMessage(t, c)
	if env.Type != MsgSyncState {
		t.Fatalf("second greeting message = %s, want %s", env.Type, MsgSyncState)
	}
	var sync SyncStatePayload
	if err := json.Unmarshal(env.Payload, &sync); err != nil {
		t.Fatalf("sync payload: %v", err)
	}
	if len(sync.Components) != 1 || sync.Components[0].ID != "a" {
		t.Fatalf("greeting sync = %+v", sync)
	}
}

func TestHubNoGreetingBeforeSessionReady(t *testing.T) {
	gate := &gatedStore{fakeStore: newFakeStore(), release: make(chan struct{})}
	h := newTestHub(t, gate, time.Minute)

	h.SessionFor("home")
	c := newTestClient(h, "home")
	h.Register(c)

	select {
	case raw := <-c.send:
		t.Fatalf("client greeted before the page loaded: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}

	close(gate.release)
}

func TestHubBroadcastsEditsToRoom(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(t, store, time.Minute)

	s := h.SessionFor("home")
	waitReady(t, s)

	c1 := newTestClient(h, "home")
	c2 := newTestClient(h, "home")
	h.Register(c1)
	h.Register(c2)
	waitClientFor(t, c1, MsgSyncState)
	waitClientFor(t, c2, MsgSyncState)

	dispatch(s, MsgAddComponent, AddComponentPayload{Component: ComponentSpec{Type: "hero_banner"}})

	for _, c := range []*Client{c1, c2} {
		env := waitClientFor(t, c, MsgSyncState)
		var sync SyncStatePayload
		if err := json.Unmarshal(env.Payload, &sync); err != nil {
			t.Fatalf("sync payload: %v", err)
		}
		if len(sync.Components) != 1 {
			t.Fatalf("client %s saw %d components, want 1", c.id, len(sync.Components))
		}
	}
}

func TestHubUnregisterClosesClient(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(t, store, time.Minute)

	s := h.SessionFor("home")
	waitReady(t, s)

	c := newTestClient(h, "home")
	h.Register(c)
	waitClientFor(t, c, MsgSyncState)

	h.Unregister(c)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("send channel never closed after unregister")
		}
	}
}

func TestHubReapsIdleSessions(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(t, store, 30*time.Millisecond)

	s := h.SessionFor("home")
	waitReady(t, s)

	time.Sleep(60 * time.Millisecond)
	h.reapIdle()

	s2 := h.SessionFor("home")
	if s2 == s {
		t.Fatal("idle session with no clients should have been reaped")
	}

	// A fresh lookup resets the idle clock, so a reap firing right after a
	// connection fetched the session must not close it.
	time.Sleep(60 * time.Millisecond)
	if got := h.SessionFor("home"); got != s2 {
		t.Fatal("lookup created a new session instead of reviving the idle one")
	}
	h.reapIdle()
	if got := h.SessionFor("home"); got != s2 {
		t.Fatal("just-fetched session must survive the reaper")
	}
}
