package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/scriptwarden/scriptwarden/internal/logging"
	"github.com/scriptwarden/scriptwarden/internal/monitoring"
	"github.com/scriptwarden/scriptwarden/internal/session"
	"github.com/scriptwarden/scriptwarden/internal/shared/id"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Message is one inbound stream message.
type Message struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Identity  string `json:"identity,omitempty"`
	Action    string `json:"action,omitempty"`
}

// Handler manages WebSocket connections
type Handler struct {
	sessions *session.Manager
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler
func NewHandler(sessions *session.Manager, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		sessions: sessions,
		log:      log.Component("ws"),
		metrics:  metrics,
	}
}

// HandleConnection upgrades the request and attaches the client to the
// session's event stream. Inbound messages answer prompts, deliver
// synthetic user events, and request scans.
func (h *Handler) HandleConnection(c *gin.Context) {
	sessionID := id.SessionID(c.Param("id"))
	s, ok := h.sessions.Get(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	hub, ok := s.Broadcaster().(*Hub)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session has no stream"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	hub.Add(conn)
	defer hub.Remove(conn)
	h.metrics.WSConnected()
	defer h.metrics.WSDisconnected()

	hub.Send(conn, Event{
		Type:      "system",
		Payload:   gin.H{"message": "connected", "session_id": sessionID.String()},
		Timestamp: time.Now().Unix(),
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", zap.Error(err))
			}
			break
		}

		switch msg.Type {
		case "permission_response":
			h.handlePermissionResponse(s, msg)
		case "click":
			s.Page.DispatchClick()
		case "scroll":
			s.Page.DispatchScroll()
		case "scan":
			hub.Send(conn, Event{
				Type:      "scripts",
				Payload:   s.Scanner.Scan(),
				Timestamp: time.Now().Unix(),
			})
		case "ping":
			hub.Send(conn, Event{Type: "pong", Timestamp: time.Now().Unix()})
		default:
			hub.Send(conn, Event{
				Type:      "error",
				Payload:   gin.H{"message": "unknown message type"},
				Timestamp: time.Now().Unix(),
			})
		}
	}
}

func (h *Handler) handlePermissionResponse(s *session.Session, msg Message) {
	reqID := id.RequestID(msg.RequestID)
	s.Monitor.HandlePermissionResponse(reqID, msg.Decision, msg.Identity, msg.Action)
}
