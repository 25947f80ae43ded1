// Package ws pushes match view updates to WebSocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/elevenvotes/consensus/internal/domain/types"
	"github.com/elevenvotes/consensus/pkg/logger"
	"github.com/elevenvotes/consensus/pkg/metrics"
)

const (
	sendBuffer      = 16
	broadcastBuffer = 256
	pongWait        = 60 * time.Second
	pingPeriod      = 30 * time.Second
	writeWait       = 10 * time.Second
)

// client is one subscriber. Only its write pump writes to conn.
type client struct {
	conn    *websocket.Conn
	matchID string // empty subscribes to every match
	send    chan []byte
}

type message struct {
	matchID string
	data    []byte
}

// Hub fans SectionUpdates out to the clients subscribed to their match.
type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan message
	register   chan *client
	unregister chan *client
	count      chan chan int
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     logger.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCheckOrigin overrides the upgrader's origin check. All origins are
// accepted by default.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Hub) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// AllowOrigins accepts requests whose Origin header is one of origins.
// Requests without an Origin header come from non-browser clients and are
// accepted.
func AllowOrigins(origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.TrimRight(origin, "/")]
		return ok
	}
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan message, broadcastBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.Get().Named("ws"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the client set until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			metrics.UpdateWSClients(0)
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.UpdateWSClients(len(h.clients))
			h.logger.Debug(ctx, "ws client connected",
				logger.String("matchID", c.matchID), logger.Int("total", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				metrics.UpdateWSClients(len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				if c.matchID != "" && c.matchID != msg.matchID {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					// Slow consumer; disconnect rather than block the hub.
					h.drop(c)
				}
			}
			metrics.UpdateWSClients(len(h.clients))

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
}

// Broadcast queues u for delivery. It never blocks; updates are dropped when
// the hub is saturated.
func (h *Hub) Broadcast(u types.SectionUpdate) {
	data, err := json.Marshal(u)
	if err != nil {
		metrics.RecordErrorByComponent("ws", "marshal")
		return
	}
	select {
	case h.broadcast <- message{matchID: u.MatchID, data: data}:
		metrics.RecordWSBroadcast()
	default:
		metrics.RecordErrorByComponent("ws", "broadcast_dropped")
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// ServeHTTP upgrades GET /ws?match=<id> and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "ws upgrade failed", logger.Error(err))
		return
	}
	c := &client{conn: conn, matchID: r.URL.Query().Get("match"), send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
