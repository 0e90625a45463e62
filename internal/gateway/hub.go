// Package gateway streams trigger events to WebSocket clients and serves
// the REST status and alert-management API.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stockwatch/internal/model"
)

// Hub manages WebSocket clients and fans trigger events out to them.
// Every broadcast also lands in the event buffer so reconnecting
// clients can backfill by sequence number.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	events  *EventBuffer
}

// NewHub creates a hub with an event buffer of the given capacity.
func NewHub(bufferCap int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		events:  NewEventBuffer(bufferCap),
	}
}

// Events exposes the buffer for the REST backfill endpoint.
func (h *Hub) Events() *EventBuffer { return h.events }

// BroadcastTrigger buffers one trigger event and fans it out. A slow
// client whose send queue is full misses the frame; it can backfill from
// the buffer via seq.
func (h *Hub) BroadcastTrigger(event model.TriggerEvent) {
	seq := h.events.Push(event)
	envelope, err := json.Marshal(map[string]interface{}{
		"type":  "trigger",
		"seq":   seq,
		"event": event,
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
		}
	}
}

// StartStatusBroadcast pushes a status frame to all clients every
// interval. statusFn builds the payload (market state, last tick).
func (h *Hub) StartStatusBroadcast(ctx context.Context, interval time.Duration, statusFn func() interface{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				envelope, err := json.Marshal(map[string]interface{}{
					"type":   "status",
					"status": statusFn(),
				})
				if err != nil {
					continue
				}
				h.mu.RLock()
				for client := range h.clients {
					select {
					case client.send <- envelope:
					default:
					}
				}
				h.mu.RUnlock()
			}
		}
	}()
}

// HandleConn registers an upgraded connection. lastSeq > 0 requests a
// backfill of buffered events the client missed while disconnected.
func (h *Hub) HandleConn(conn *websocket.Conn, lastSeq int64) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("ws client connected", "total", count)

	if lastSeq > 0 {
		go client.sendBackfill(lastSeq)
	}
	go client.writePump()
	go client.readPump()
}

// RemoveClient unregisters a client and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
