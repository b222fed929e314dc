package editor

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is one connected chrome (editor UI) websocket. Reading and writing
// run on separate goroutines so a slow peer can never deadlock the hub.
type Client struct {
	id     string
	slug   string
	origin string
	user   string

	hub     *Hub
	session *Session
	conn    *websocket.Conn
	send    chan []byte
}

// ServeWS upgrades an HTTP request to a websocket editor connection and
// attaches it to the page's session. The upgrade enforces the allowed
// origin; every message the client later sends is additionally tagged with
// that origin for the session-level check.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, slug string) {
	origin := r.Header.Get("Origin")
	if h.cfg.Origin != "" && origin != "" && origin != h.cfg.Origin {
		// Cross-origin upgrade attempts are refused without detail.
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return h.cfg.Origin == "" || o == "" || o == h.cfg.Origin
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️  Failed to upgrade websocket: %v", err)
		return
	}

	user := r.URL.Query().Get("user")
	if user == "" {
		user = "anonymous"
	}

	c := &Client{
		id:      ksuid.New().String(),
		slug:    slug,
		origin:  h.cfg.Origin, // passed the gate above, treat as trusted origin
		user:    user,
		hub:     h,
		session: h.SessionFor(slug),
		conn:    conn,
		send:    make(chan []byte, clientSendBufferSize),
	}

	h.Register(c)

	go c.writePump()
	go c.readPump()

	log.Printf("✓ Editor connection established for page %q (user: %s)", slug, user)
}

// queue offers data to the client without blocking; full buffers drop.
func (c *Client) queue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// readPump decodes inbound frames and forwards them to the session loop in
// arrival order. Malformed frames are dropped, never answered.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Websocket error: %v", err)
			}
			break
		}

		env, ok := Decode(raw)
		if !ok {
			continue
		}
		c.session.Dispatch(Inbound{Env: env, Origin: c.origin})
	}
}

// writePump drains the send buffer to the socket and keeps the connection
// alive with pings. Queued messages are batched into one frame per flush.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
