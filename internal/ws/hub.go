package ws

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/scriptwarden/scriptwarden/internal/logging"
	"github.com/scriptwarden/scriptwarden/internal/monitor"
	"github.com/scriptwarden/scriptwarden/internal/shared/id"
)

// Event is one outbound stream message.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Hub fans session events out to every connected stream client. It is
// the session's permission prompt sink: prompts raised while no client
// is connected stay queued and replay on the next connect, so a late
// viewer still sees open prompts.
type Hub struct {
	log *logging.Logger

	mu      sync.Mutex
	conns   map[*websocket.Conn]bool
	prompts map[id.RequestID]monitor.PromptRequest
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		log:     log.Component("ws"),
		conns:   make(map[*websocket.Conn]bool),
		prompts: make(map[id.RequestID]monitor.PromptRequest),
	}
}

// Add registers a connection and replays open prompts to it.
func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		conn.Close()
		return
	}
	h.conns[conn] = true
	for _, req := range h.prompts {
		h.writeLocked(conn, Event{
			Type:      "permission_prompt",
			Payload:   req,
			Timestamp: time.Now().Unix(),
		})
	}
}

// Remove drops a connection.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// ShowPermissionPrompt implements monitor.PromptSink.
func (h *Hub) ShowPermissionPrompt(req monitor.PromptRequest) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.prompts[req.RequestID] = req
	h.mu.Unlock()

	h.Broadcast(Event{
		Type:      "permission_prompt",
		Payload:   req,
		Timestamp: time.Now().Unix(),
	})
}

// PromptResolved drops a prompt from the replay queue once any client
// has answered it, or the monitor timed it out.
func (h *Hub) PromptResolved(requestID id.RequestID) {
	h.mu.Lock()
	delete(h.prompts, requestID)
	h.mu.Unlock()
}

// Broadcast sends one event to every connected client. Connections that
// fail to write are dropped.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := h.writeLocked(conn, event); err != nil {
			h.log.Debug("dropping stream client", zap.Error(err))
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Close tears down every connection. The hub accepts nothing afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[*websocket.Conn]bool)
	h.prompts = make(map[id.RequestID]monitor.PromptRequest)
}

// Send writes one event to a single client. All writes go through the
// hub lock since gorilla connections forbid concurrent writers.
func (h *Hub) Send(conn *websocket.Conn, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writeLocked(conn, event)
}

func (h *Hub) writeLocked(conn *websocket.Conn, event Event) error {
	data, err := sonic.Marshal(event)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
