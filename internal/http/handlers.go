package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scriptwarden/scriptwarden/internal/deps"
	"github.com/scriptwarden/scriptwarden/internal/logging"
	"github.com/scriptwarden/scriptwarden/internal/session"
	"github.com/scriptwarden/scriptwarden/internal/shared/id"
	"github.com/scriptwarden/scriptwarden/internal/shared/types"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions *session.Manager
	log      *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(sessions *session.Manager, log *logging.Logger) *Handlers {
	return &Handlers{
		sessions: sessions,
		log:      log.Component("http"),
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "scriptwarden",
		"version": "0.2.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": h.sessions.Count(),
	})
}

// CreateSession builds a new analysis session from a document, runs its
// parser scripts, and returns the first scan.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req session.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		h.log.Error("session create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": s.ID,
		"origin":     s.Origin,
		"created_at": s.CreatedAt,
		"scripts":    s.Scanner.Scan(),
	})
}

// ListSessions lists all live sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.sessions.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession returns one session's summary
func (h *Handlers) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	errs := s.Page.Errors()
	failed := make([]gin.H, 0, len(errs))
	for _, e := range errs {
		failed = append(failed, gin.H{"identity": e.Identity, "error": e.Err.Error()})
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            s.ID,
		"origin":        s.Origin,
		"created_at":    s.CreatedAt,
		"held_scripts":  s.Timing.Held(),
		"script_errors": failed,
	})
}

// DeleteSession tears a session down
func (h *Handlers) DeleteSession(c *gin.Context) {
	sessionID := id.SessionID(c.Param("id"))
	if !h.sessions.Delete(sessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": sessionID})
}

// GetScripts runs a fresh scan and returns every discovered script
func (h *Handlers) GetScripts(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	scripts := s.Scanner.Scan()
	c.JSON(http.StatusOK, gin.H{
		"scripts": scripts,
		"count":   len(scripts),
	})
}

// GetFlags returns all behavior flags keyed by script identity
func (h *Handlers) GetFlags(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"flags": s.Monitor.GetFlags()})
}

// GetDependencies returns the flat dependency graph
func (h *Handlers) GetDependencies(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"dependencies": s.Tracker.All()})
}

// GetDependencyTree returns the graph expanded from its roots
func (h *Handlers) GetDependencyTree(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	trees := make([]*deps.TreeNode, 0)
	for _, root := range s.Tracker.Roots() {
		trees = append(trees, s.Tracker.Tree(root))
	}
	c.JSON(http.StatusOK, gin.H{"roots": trees})
}

// GetConsole returns captured console output
func (h *Handlers) GetConsole(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"console": s.Page.Console()})
}

// GetTimings returns the session's resource-timing feed
func (h *Handlers) GetTimings(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"timings": s.Page.Timings()})
}

// PermissionResponse answers a pending permission prompt
func (h *Handlers) PermissionResponse(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		RequestID string `json:"request_id" binding:"required"`
		Decision  string `json:"decision" binding:"required"`
		Identity  string `json:"identity"`
		Action    string `json:"action"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reqID := id.RequestID(req.RequestID)
	s.Monitor.HandlePermissionResponse(reqID, req.Decision, req.Identity, req.Action)
	c.JSON(http.StatusOK, gin.H{"handled": req.RequestID})
}

// SetPermissionPrompt toggles interactive permission prompting
func (h *Handlers) SetPermissionPrompt(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.Monitor.SetPermissionPromptEnabled(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"permission_prompt": *req.Enabled})
}

// SetDelays replaces the session's delay rules
func (h *Handlers) SetDelays(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Rules map[string]types.DelayRule `json:"rules" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.Timing.SetRules(req.Rules)
	c.JSON(http.StatusOK, gin.H{"rules": s.Timing.Rules()})
}

// GetDelays returns the session's delay rules and held scripts
func (h *Handlers) GetDelays(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rules": s.Timing.Rules(),
		"held":  s.Timing.Held(),
	})
}

// Click injects a synthetic user interaction
func (h *Handlers) Click(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Page.DispatchClick()
	c.JSON(http.StatusOK, gin.H{"dispatched": "click"})
}

// Scroll injects a synthetic scroll
func (h *Handlers) Scroll(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Page.DispatchScroll()
	c.JSON(http.StatusOK, gin.H{"dispatched": "scroll"})
}

// session resolves the :id path parameter, writing a 404 on miss.
func (h *Handlers) session(c *gin.Context) (*session.Session, bool) {
	s, ok := h.sessions.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return s, true
}
