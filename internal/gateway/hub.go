// Package gateway serves the WebSocket render surface and the REST control API.
package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"StockWatch/internal/metrics"
	"StockWatch/internal/model"
)

// Envelope is the frame every WebSocket message is wrapped in.
type Envelope struct {
	Type string          `json:"type"`
	TS   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// Hub is a render handle that fans each published snapshot out to WebSocket clients.
// Every frame carries the full snapshot; clients replace their data set on receipt.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  []byte
	closed  bool

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		metrics: m,
		logger:  log.With().Str("component", "gateway").Logger(),
	}
}

func encodeSnapshot(snap *model.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: "snapshot", TS: time.Now().UTC(), Data: data})
}

// Update broadcasts snap to every client. Clients whose send buffer is full are dropped.
func (h *Hub) Update(snap *model.Snapshot) error {
	msg, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.latest = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn().Msg("ws client too slow, disconnecting")
			h.dropLocked(c)
		}
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
	return nil
}

// HandleWSRequest registers an upgraded connection and sends it the latest snapshot.
func (h *Hub) HandleWSRequest(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 16),
		hub:  h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = true
	count := len(h.clients)
	if h.latest != nil {
		client.send <- h.latest
	}
	h.mu.Unlock()

	h.metrics.ClientConnected()
	h.logger.Info().Int("clients", count).Msg("ws client connected")

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.ClientDisconnected()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
