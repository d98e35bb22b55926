package controlapi

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// transitionEvent is one stage lifecycle transition, streamed to every
// connected WebSocket client.
type transitionEvent struct {
	Plugin     string `json:"plugin"`
	InstanceID string `json:"instance_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	At         string `json:"at"`
}

// eventHub fans out transition events to every currently connected
// WebSocket client. A slow client misses events rather than blocking
// the others; a client whose write fails is dropped.
type eventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan transitionEvent
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[*websocket.Conn]chan transitionEvent)}
}

func (h *eventHub) subscribe(conn *websocket.Conn, log *logrus.Entry) {
	ch := make(chan transitionEvent, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	for event := range ch {
		if err := conn.WriteJSON(event); err != nil {
			log.WithError(err).Debug("dropping websocket client after write failure")
			return
		}
	}
}

func (h *eventHub) broadcast(event transitionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- event:
		default:
			// Client too slow to keep up; drop the event rather than block
			// the broadcaster. The connection itself stays open.
			_ = conn
		}
	}
}
