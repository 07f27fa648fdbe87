package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atmx/wager-ledger/internal/metrics"
	"github.com/atmx/wager-ledger/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// client is one WebSocket connection of one user.
type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

type userMessage struct {
	userID string
	data   []byte
}

// Hub fans ledger events out to WebSocket connections. A user's events
// reach only that user's connections.
type Hub struct {
	clients    map[string]map[*client]bool
	broadcast  chan userMessage
	register   chan *client
	unregister chan *client
	counts     chan countQuery
	done       chan struct{} // closed when Run returns
	logger     *zap.Logger
}

type countQuery struct {
	userID string
	reply  chan int
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*client]bool),
		broadcast:  make(chan userMessage, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		counts:     make(chan countQuery),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main event loop and returns when ctx is done.
// Must be called in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for c := range conns {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*client]bool)
			metrics.WebSocketClients.Set(0)
			return

		case c := <-h.register:
			conns, ok := h.clients[c.userID]
			if !ok {
				conns = make(map[*client]bool)
				h.clients[c.userID] = conns
			}
			conns[c] = true
			metrics.WebSocketClients.Inc()
			h.logger.Info("ws client connected",
				zap.String("user_id", c.userID), zap.Int("user_conns", len(conns)))

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			for c := range h.clients[msg.userID] {
				select {
				case c.send <- msg.data:
				default:
					// Slow reader: drop the connection rather than stall others.
					h.remove(c)
				}
			}

		case q := <-h.counts:
			q.reply <- len(h.clients[q.userID])
		}
	}
}

func (h *Hub) remove(c *client) {
	conns, ok := h.clients[c.userID]
	if !ok || !conns[c] {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
	metrics.WebSocketClients.Dec()
}

// Notify implements service.Notifier. It never blocks: events are dropped
// when the buffer is full.
func (h *Hub) Notify(userID string, ev service.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("ws event encode failed", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- userMessage{userID: userID, data: data}:
	default:
		h.logger.Warn("ws event dropped", zap.String("user_id", userID), zap.String("type", string(ev.Type)))
	}
}

// ClientCount returns the number of live connections of a user.
func (h *Hub) ClientCount(ctx context.Context, userID string) int {
	q := countQuery{userID: userID, reply: make(chan int, 1)}
	select {
	case h.counts <- q:
		return <-q.reply
	case <-h.done:
		return 0
	case <-ctx.Done():
		return 0
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/users/{userID}/ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, "user id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, 16)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// readPump keeps the connection alive and detects disconnects. Clients
// only receive; anything they send is discarded.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump owns all writes to the connection. Pings keep it alive
// through proxies.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
