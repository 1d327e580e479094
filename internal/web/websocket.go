package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is one message on the websocket stream. Type carries the bus topic
// for relayed events, or a synthetic name like "hello".
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub fans events out to connected websocket clients. Each client gets a
// buffered send queue; a client that stops draining it is dropped instead
// of stalling the broadcast loop.
type Hub struct {
	broadcast chan Event

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]chan []byte),
		broadcast: make(chan Event, 256),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn, send := range h.clients {
				close(send)
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return
		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for conn, send := range h.clients {
				select {
				case send <- data:
				default:
					slog.Warn("websocket client too slow, dropping")
					close(send)
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("websocket broadcast channel full, dropping event")
	}
}

func (h *Hub) register(conn *websocket.Conn) chan []byte {
	send := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()
	return send
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.clients[conn]; ok {
		close(send)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	send := s.hub.register(conn)
	defer func() {
		s.hub.unregister(conn)
		conn.Close()
	}()

	// Tell the client what it is connected to.
	hello, _ := json.Marshal(Event{Type: "hello", Payload: map[string]string{"version": s.version}})
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return
	}

	// Writer: drain the send queue until the hub closes it.
	go func() {
		for data := range send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	}()

	// Reader: the client sends nothing yet, but reads detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
