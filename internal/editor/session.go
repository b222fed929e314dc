package editor

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"sitebuilder/internal/middleware"
	"sitebuilder/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

// PageStore defines what a session needs from page persistence. Interfaces
// live with the consumer; the repository package implements them.
type PageStore interface {
	ReadPage(ctx context.Context, slug string) (*models.Page, error)
	WritePage(ctx context.Context, slug string, draft *models.PageDraft) (*models.Page, error)
	PublishPage(ctx context.Context, slug, updatedBy string) (*models.Page, error)
}

// VersionSink receives a version-snapshot job after each successful save.
type VersionSink interface {
	SubmitVersion(slug string, version int, components []models.Component, savedBy string) error
}

// Inbound is one decoded protocol message plus the origin it arrived from.
type Inbound struct {
	Env    Envelope
	Origin string
}

// SessionConfig wires a session to its collaborators.
type SessionConfig struct {
	Slug     string
	Store    PageStore
	Versions VersionSink // optional
	// Origin is the expected sender origin. Envelopes tagged with any other
	// origin are dropped without reply. Empty disables the check (the
	// websocket upgrade has its own origin gate).
	Origin       string
	Debounce     time.Duration
	SaveTimeout  time.Duration
	HistoryLimit int
	Theme        string
	Locale       string
	// Broadcast delivers canvas->chrome wire bytes to every connected
	// chrome client. Must be safe to call from any goroutine.
	Broadcast func(data []byte)
}

// Session is the authoritative canvas context for one page: it owns the
// document, the undo/redo history, and the auto-save scheduler, and it is
// the only writer of all three. Messages are handled strictly in arrival
// order by a single goroutine, so no mutation ever races another.
type Session struct {
	slug   string
	store  PageStore
	sink   VersionSink
	origin string
	theme  string
	locale string

	inbox chan Inbound
	done  chan struct{}
	once  sync.Once
	ready atomic.Bool

	// doc is written only by the run loop; mu guards reads from the save,
	// publish, and hub goroutines. The slices themselves are never mutated
	// in place, so sharing the header is safe. canUndo/canRedo mirror the
	// history cursor under mu because the history itself is touched only on
	// the run loop.
	mu        sync.Mutex
	doc       []models.Component
	dirty     bool
	updatedBy string
	canUndo   bool
	canRedo   bool

	history   *History
	saver     *AutoSaver
	broadcast func(data []byte)

	lastActive atomic.Int64 // unix nano, for idle cleanup
}

// NewSession builds a session; Start must be called before dispatching.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		slug:      cfg.Slug,
		store:     cfg.Store,
		sink:      cfg.Versions,
		origin:    cfg.Origin,
		theme:     cfg.Theme,
		locale:    cfg.Locale,
		inbox:     make(chan Inbound, 64),
		done:      make(chan struct{}),
		history:   NewHistory(cfg.HistoryLimit),
		broadcast: cfg.Broadcast,
	}
	if s.theme == "" {
		s.theme = "light"
	}
	if s.locale == "" {
		s.locale = "en"
	}
	if s.broadcast == nil {
		s.broadcast = func([]byte) {}
	}
	s.saver = NewAutoSaver(s.saveDraft, cfg.Debounce, cfg.SaveTimeout, s.onSaveState)
	s.touch()
	return s
}

// Start loads the page draft and begins consuming the inbox. The session is
// Ready once the load completes; an absent page starts an empty draft.
func (s *Session) Start() {
	go s.run()
}

// Dispatch queues a message for the session loop. It blocks only if the
// inbox is full, preserving per-sender FIFO ordering. Messages dispatched
// after Close are dropped.
func (s *Session) Dispatch(in Inbound) {
	select {
	case <-s.done:
	case s.inbox <- in:
	}
}

// Ready reports whether the initial page load has completed.
func (s *Session) Ready() bool { return s.ready.Load() }

// Slug returns the page slug this session edits.
func (s *Session) Slug() string { return s.slug }

// LastActive returns the time of the most recent handled message.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// SyncPayload returns the current SYNC_STATE payload, used to greet chrome
// clients that connect after the session is already Ready.
func (s *Session) SyncPayload() SyncStatePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SyncStatePayload{
		Components: s.doc,
		CanUndo:    s.canUndo,
		CanRedo:    s.canRedo,
	}
}

// Close stops the loop and the scheduler. A dirty document gets one final
// forced save so edits aren't lost to an idle reap.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		dirty := s.dirty
		s.mu.Unlock()
		if dirty {
			s.saver.ForceSave()
		}
		s.saver.Stop()
	})
}

func (s *Session) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	page, err := s.store.ReadPage(ctx, s.slug)
	cancel()
	if err != nil {
		log.Printf("⚠️  Session %s: failed to load page: %v (starting empty)", s.slug, err)
	}

	s.mu.Lock()
	if page != nil {
		s.doc = page.Components
		s.updatedBy = page.UpdatedBy
	}
	if s.doc == nil {
		s.doc = []models.Component{}
	}
	doc := s.doc
	s.mu.Unlock()

	// Baseline snapshot so the first edit can be undone back to the loaded
	// document.
	s.history.AddState(doc, "load")
	s.mirrorHistoryFlags()
	s.ready.Store(true)

	for {
		select {
		case <-s.done:
			return
		case in := <-s.inbox:
			s.handle(in)
		}
	}
}

func (s *Session) handle(in Inbound) {
	// Foreign senders are dropped silently, no error reply.
	if s.origin != "" && in.Origin != s.origin {
		return
	}
	if !in.Env.Type.Known() {
		return
	}
	s.touch()

	_, span := middleware.StartSpan(context.Background(), "Editor.HandleMessage",
		attribute.String("page.slug", s.slug),
		attribute.String("message.type", string(in.Env.Type)),
	)
	defer span.End()

	switch in.Env.Type {
	case MsgInit:
		s.send(MsgInitAck, InitAckPayload{Theme: s.theme, Locale: s.locale})
		s.sendSync()

	case MsgAddComponent:
		var p AddComponentPayload
		if !decodePayload(in.Env.Payload, &p) {
			return
		}
		next, comp := AddComponent(s.currentDoc(), p.Component)
		s.commit(next, "add_"+comp.Type)

	case MsgUpdateComponent:
		var p UpdateComponentPayload
		if !decodePayload(in.Env.Payload, &p) {
			return
		}
		s.commit(UpdateComponent(s.currentDoc(), p.ComponentID, p.Props), "update_component")

	case MsgUpdateField:
		var p UpdateFieldPayload
		if !decodePayload(in.Env.Payload, &p) {
			return
		}
		s.commit(UpdateComponent(s.currentDoc(), p.ID, map[string]any{p.Field: p.Value}), "update_field")

	case MsgApplyStyle:
		var p ApplyStylePayload
		if !decodePayload(in.Env.Payload, &p) {
			return
		}
		s.commit(ApplyStyle(s.currentDoc(), p.ComponentID, p.Style), "apply_style")

	case MsgReorderComponent:
		var p ReorderPayload
		if !decodePayload(in.Env.Payload, &p) {
			return
		}
		s.commit(ReorderComponent(s.currentDoc(), p.From, p.To), "reorder")

	case MsgUndo:
		if snap := s.history.Undo(); snap != nil {
			s.replace(snap)
		}
		s.sendSync()

	case MsgRedo:
		if snap := s.history.Redo(); snap != nil {
			s.replace(snap)
		}
		s.sendSync()

	case MsgSaveRequest, MsgSaveDraft:
		// Off the loop so a slow backend never blocks further edits. The
		// scheduler's in-flight guard prevents a second concurrent write.
		go s.saver.ForceSave()

	case MsgPublishRequest, MsgPublish:
		go s.publish()

	default:
		// Canvas-originated tags echoed back at us; nothing to do.
	}
}

// commit installs a mutated document: history push, autosave trigger, state
// broadcast. Undo/redo deliberately bypass this (cursor moves are not
// themselves undoable edits).
func (s *Session) commit(next []models.Component, action string) {
	s.history.AddState(next, action)
	s.mu.Lock()
	s.doc = next
	s.dirty = true
	s.canUndo = s.history.CanUndo()
	s.canRedo = s.history.CanRedo()
	s.mu.Unlock()
	s.saver.TriggerSave()
	s.sendSync()
}

// replace installs a history snapshot wholesale without pushing a new entry.
func (s *Session) replace(snap []models.Component) {
	s.mu.Lock()
	s.doc = snap
	s.dirty = true
	s.canUndo = s.history.CanUndo()
	s.canRedo = s.history.CanRedo()
	s.mu.Unlock()
}

// mirrorHistoryFlags refreshes the mu-guarded undo/redo flags. Only called
// from the run loop, which is the sole goroutine touching the history.
func (s *Session) mirrorHistoryFlags() {
	s.mu.Lock()
	s.canUndo = s.history.CanUndo()
	s.canRedo = s.history.CanRedo()
	s.mu.Unlock()
}

func (s *Session) currentDoc() []models.Component {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

func (s *Session) saveDraft(ctx context.Context) error {
	s.mu.Lock()
	doc := s.doc
	savedBy := s.updatedBy
	s.mu.Unlock()

	page, err := s.store.WritePage(ctx, s.slug, &models.PageDraft{
		Components: doc,
		UpdatedBy:  savedBy,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	// Only clear dirty if no edit landed while the write was in flight:
	// latest state wins, so a newer doc still needs its own save.
	if sameDoc(s.doc, doc) {
		s.dirty = false
	}
	s.mu.Unlock()

	if s.sink != nil {
		if err := s.sink.SubmitVersion(s.slug, page.Version, doc, savedBy); err != nil {
			log.Printf("⚠️  Session %s: version snapshot not queued: %v", s.slug, err)
		}
	}
	return nil
}

func (s *Session) publish() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultSaveTimeout)
	defer cancel()

	s.mu.Lock()
	doc := s.doc
	savedBy := s.updatedBy
	s.mu.Unlock()

	// Flush the draft first so publish always promotes what the user sees.
	if _, err := s.store.WritePage(ctx, s.slug, &models.PageDraft{Components: doc, UpdatedBy: savedBy}); err != nil {
		s.send(MsgPublishAck, AckPayload{Success: false, Error: err.Error()})
		return
	}
	if _, err := s.store.PublishPage(ctx, s.slug, savedBy); err != nil {
		s.send(MsgPublishAck, AckPayload{Success: false, Error: err.Error()})
		return
	}
	s.send(MsgPublishAck, AckPayload{Success: true})
}

// onSaveState relays save lifecycle transitions across the channel as data;
// errors never cross as anything else. Only resolutions become SAVE_ACKs.
func (s *Session) onSaveState(st SaveState) {
	if st.IsSaving {
		return
	}
	s.send(MsgSaveAck, AckPayload{Success: st.Error == "", Error: st.Error})
}

func (s *Session) sendSync() {
	s.send(MsgSyncState, s.SyncPayload())
}

func (s *Session) send(t MessageType, payload any) {
	data, err := Encode(t, payload)
	if err != nil {
		log.Printf("⚠️  Session %s: encode %s: %v", s.slug, t, err)
		return
	}
	s.broadcast(data)
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func decodePayload(raw []byte, dst any) bool {
	if raw == nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// sameDoc compares slice identity, not contents: commit always installs a
// fresh slice, so identity tells us whether an edit raced the save.
func sameDoc(a, b []models.Component) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}
