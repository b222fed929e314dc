package editor

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultIdleTimeout   = 5 * time.Minute
	cleanupInterval      = 30 * time.Second
	clientSendBufferSize = 256
)

// HubConfig carries the collaborators and tuning knobs shared by every
// session the hub spawns.
type HubConfig struct {
	Store        PageStore
	Versions     VersionSink
	Origin       string
	Debounce     time.Duration
	SaveTimeout  time.Duration
	HistoryLimit int
	Theme        string
	Locale       string
	IdleTimeout  time.Duration
}

// roomMessage is one canvas->chrome payload fanned out to a page's room.
type roomMessage struct {
	Slug    string
	Message []byte
	Sender  *Client // skipped when broadcasting, nil to reach everyone
}

// Hub owns every live editor session and the chrome connections attached to
// them. One room per page slug; all membership changes flow through the
// register/unregister/broadcast channels and are applied by a single event
// loop.
type Hub struct {
	cfg HubConfig

	rooms    map[string]map[*Client]bool // slug -> connected chrome clients
	sessions map[string]*Session         // slug -> canvas session
	mu       sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomMessage

	done     chan struct{}
	once     sync.Once
	started  atomic.Bool
	loopDone chan struct{}
}

// NewHub creates a hub; Start begins its event loop.
func NewHub(cfg HubConfig) *Hub {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	return &Hub{
		cfg:        cfg,
		rooms:      make(map[string]map[*Client]bool),
		sessions:   make(map[string]*Session),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomMessage, 256),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
}

// Start begins the hub event loop and the idle-session reaper.
func (h *Hub) Start() {
	log.Println("🔄 Starting editor hub...")

	h.started.Store(true)
	go func() {
		defer close(h.loopDone)
		for {
			select {
			case <-h.done:
				return
			case client := <-h.register:
				h.handleRegister(client)
			case client := <-h.unregister:
				h.handleUnregister(client)
			case msg := <-h.broadcast:
				h.handleBroadcast(msg)
			}
		}
	}()

	go h.cleanupLoop()

	log.Println("✓ Editor hub started")
}

// SessionFor returns the live session for slug, creating and starting one on
// first use. The session outlives individual connections so undo history
// survives a chrome reconnect.
func (h *Hub) SessionFor(slug string) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[slug]; ok {
		// Reset the idle clock so the reaper can't close a session a new
		// connection is about to attach to.
		s.touch()
		return s
	}
	s := NewSession(SessionConfig{
		Slug:         slug,
		Store:        h.cfg.Store,
		Versions:     h.cfg.Versions,
		Origin:       h.cfg.Origin,
		Debounce:     h.cfg.Debounce,
		SaveTimeout:  h.cfg.SaveTimeout,
		HistoryLimit: h.cfg.HistoryLimit,
		Theme:        h.cfg.Theme,
		Locale:       h.cfg.Locale,
		Broadcast: func(data []byte) {
			select {
			case h.broadcast <- &roomMessage{Slug: slug, Message: data}:
			case <-h.done:
			}
		},
	})
	s.Start()
	h.sessions[slug] = s
	log.Printf("  Editor session started for page %q", slug)
	return s
}

// Register attaches a chrome client to its page room.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister detaches a chrome client.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.mu.Lock()
	if h.rooms[c.slug] == nil {
		h.rooms[c.slug] = make(map[*Client]bool)
	}
	h.rooms[c.slug][c] = true
	total := len(h.rooms[c.slug])
	session := h.sessions[c.slug]
	h.mu.Unlock()

	log.Printf("  Client %s joined page %q (total: %d)", c.id, c.slug, total)

	// Late joiner greeting: a Ready session replays its current state so the
	// chrome can leave WaitingForInit without re-sending INIT. Clients that
	// connect before the first load completes stay gated until the session
	// answers their INIT.
	if session != nil && session.Ready() {
		if data, err := Encode(MsgInitAck, InitAckPayload{Theme: h.cfg.Theme, Locale: h.cfg.Locale}); err == nil {
			c.queue(data)
		}
		if data, err := Encode(MsgSyncState, session.SyncPayload()); err == nil {
			c.queue(data)
		}
	}
}

func (h *Hub) handleUnregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[c.slug]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.slug)
	}
	log.Printf("  Client %s left page %q (remaining: %d)", c.id, c.slug, len(clients))
}

func (h *Hub) handleBroadcast(msg *roomMessage) {
	h.mu.RLock()
	clients := h.rooms[msg.Slug]
	h.mu.RUnlock()

	for c := range clients {
		if msg.Sender != nil && c == msg.Sender {
			continue
		}
		select {
		case c.send <- msg.Message:
		default:
			// Buffer full: connection is slow or dead, drop it.
			log.Printf("⚠️  Client %s buffer full, closing connection", c.id)
			go h.Unregister(c)
		}
	}
}

// cleanupLoop reaps sessions whose page has had no connected clients and no
// messages for the idle timeout. Close flushes a dirty draft first.
func (h *Hub) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.reapIdle()
		}
	}
}

func (h *Hub) reapIdle() {
	now := time.Now()

	h.mu.Lock()
	var idle []*Session
	for slug, s := range h.sessions {
		if len(h.rooms[slug]) > 0 {
			continue
		}
		if now.Sub(s.LastActive()) > h.cfg.IdleTimeout {
			idle = append(idle, s)
			delete(h.sessions, slug)
		}
	}
	h.mu.Unlock()

	for _, s := range idle {
		log.Printf("  Reaping idle editor session for page %q", s.Slug())
		s.Close()
	}
}

// Shutdown closes every connection and session. Dirty drafts get a final
// forced save through Session.Close.
func (h *Hub) Shutdown() {
	log.Println("🛑 Shutting down editor hub...")

	h.once.Do(func() { close(h.done) })
	// Wait for the event loop to exit: it is the only sender on client send
	// channels, so closing them before it stops would race its broadcasts.
	if h.started.Load() {
		<-h.loopDone
	}

	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[string]*Session)
	for _, clients := range h.rooms {
		for c := range clients {
			close(c.send)
			if c.conn != nil {
				c.conn.Close()
			}
		}
	}
	h.rooms = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}

	log.Println("✓ Editor hub shutdown complete")
}
