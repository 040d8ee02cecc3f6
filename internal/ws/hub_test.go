package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptwarden/scriptwarden/internal/config"
	"github.com/scriptwarden/scriptwarden/internal/logging"
	"github.com/scriptwarden/scriptwarden/internal/monitor"
	"github.com/scriptwarden/scriptwarden/internal/session"
	"github.com/scriptwarden/scriptwarden/internal/shared/id"
)

func newTestStream(t *testing.T) (*session.Manager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logging.NewDefault()
	mgr := session.NewManager(config.Default(), nil,
		func() session.PromptBroadcaster { return NewHub(log) }, log, nil)
	handler := NewHandler(mgr, log, nil)

	r := gin.New()
	r.GET("/sessions/:id/stream", handler.HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return mgr, srv
}

func dial(t *testing.T, srv *httptest.Server, sid id.SessionID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + sid.String() + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestStreamWelcomeAndPing(t *testing.T) {
	mgr, srv := newTestStream(t)
	s, err := mgr.Create(t.Context(), session.CreateRequest{Origin: "https://example.com"})
	require.NoError(t, err)

	conn := dial(t, srv, s.ID)

	welcome := readEvent(t, conn)
	assert.Equal(t, "system", welcome.Type)

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	pong := readEvent(t, conn)
	assert.Equal(t, "pong", pong.Type)
}

func TestStreamScanRequest(t *testing.T) {
	mgr, srv := newTestStream(t)
	s, err := mgr.Create(t.Context(), session.CreateRequest{
		Origin: "https://example.com",
		HTML:   `<html><body><script>console.log("x");</script></body></html>`,
	})
	require.NoError(t, err)

	conn := dial(t, srv, s.ID)
	readEvent(t, conn) // welcome

	require.NoError(t, conn.WriteJSON(Message{Type: "scan"}))
	ev := readEvent(t, conn)
	assert.Equal(t, "scripts", ev.Type)
	scripts, ok := ev.Payload.([]interface{})
	require.True(t, ok)
	assert.Len(t, scripts, 1)
}

func TestStreamUnknownMessageType(t *testing.T) {
	mgr, srv := newTestStream(t)
	s, err := mgr.Create(t.Context(), session.CreateRequest{Origin: "https://example.com"})
	require.NoError(t, err)

	conn := dial(t, srv, s.ID)
	readEvent(t, conn) // welcome

	require.NoError(t, conn.WriteJSON(Message{Type: "bogus"}))
	ev := readEvent(t, conn)
	assert.Equal(t, "error", ev.Type)
}

func TestStreamUnknownSession(t *testing.T) {
	_, srv := newTestStream(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" +
		id.NewSessionID().String() + "/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHubReplaysOpenPromptsOnConnect(t *testing.T) {
	mgr, srv := newTestStream(t)
	s, err := mgr.Create(t.Context(), session.CreateRequest{Origin: "https://example.com"})
	require.NoError(t, err)

	hub, ok := s.Broadcaster().(*Hub)
	require.True(t, ok)

	req := monitor.PromptRequest{
		RequestID: id.NewRequestID(),
		Identity:  "https://cdn.example.net/probe.js",
		Action:    "webrtc",
	}
	hub.ShowPermissionPrompt(req)

	conn := dial(t, srv, s.ID)
	first := readEvent(t, conn)
	assert.Equal(t, "permission_prompt", first.Type)
	payload, ok := first.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, req.RequestID.String(), payload["request_id"])

	// After the welcome, resolving the prompt stops further replay.
	welcome := readEvent(t, conn)
	assert.Equal(t, "system", welcome.Type)
	hub.PromptResolved(req.RequestID)

	second := dial(t, srv, s.ID)
	ev := readEvent(t, second)
	assert.Equal(t, "system", ev.Type, "resolved prompt must not replay")
}

func TestHubBroadcastAfterCloseIsSilent(t *testing.T) {
	hub := NewHub(logging.NewDefault())
	hub.Close()
	hub.ShowPermissionPrompt(monitor.PromptRequest{RequestID: id.NewRequestID()})
	hub.Broadcast(Event{Type: "noop"})
}
