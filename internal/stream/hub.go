// Package stream pushes live snapshots and alerts to websocket clients.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vectorquant/internal/domain"
	"vectorquant/internal/observability"
)

// Message types sent to clients.
const (
	TypeMetrics = "metrics"
	TypeAlerts  = "alerts"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// Envelope is the frame written to clients.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans frames out to every connected client. Slow clients lose frames
// rather than holding up the broadcaster.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	last    []byte // most recent metrics frame, replayed on connect
	lastSeq uint64
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger.Named("stream"),
		clients: make(map[*client]struct{}),
	}
}

// ObserveTick broadcasts the rounded snapshot. A sequenced snapshot older
// than the last one seen is dropped, so clients never step backwards.
func (h *Hub) ObserveTick(snap domain.Snapshot) {
	frame, err := encode(TypeMetrics, domain.NewMetricsView(snap))
	if err != nil {
		h.logger.Error("encode metrics frame", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if snap.Seq != 0 {
		if snap.Seq <= h.lastSeq {
			return
		}
		h.lastSeq = snap.Seq
	}
	h.last = frame
	h.broadcastLocked(frame)
}

// ObserveAlerts broadcasts a non-empty alert evaluation.
func (h *Hub) ObserveAlerts(_ domain.Snapshot, alerts []domain.Alert) {
	if len(alerts) == 0 {
		return
	}
	frame, err := encode(TypeAlerts, domain.NewAlertViews(alerts))
	if err != nil {
		h.logger.Error("encode alerts frame", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.broadcastLocked(frame)
}

// broadcastLocked queues frame for every client. Callers hold mu.
func (h *Hub) broadcastLocked(frame []byte) {
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			observability.RecordStreamDropped()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	n := len(h.clients)
	h.mu.Unlock()
	observability.UpdateStreamClients(n)

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client input and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

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
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	observability.UpdateStreamClients(n)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	observability.UpdateStreamClients(0)
}

func encode(kind string, v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: kind, Data: data})
}
