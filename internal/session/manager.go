package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scriptwarden/scriptwarden/internal/config"
	"github.com/scriptwarden/scriptwarden/internal/deps"
	"github.com/scriptwarden/scriptwarden/internal/logging"
	"github.com/scriptwarden/scriptwarden/internal/monitor"
	"github.com/scriptwarden/scriptwarden/internal/monitoring"
	"github.com/scriptwarden/scriptwarden/internal/page"
	"github.com/scriptwarden/scriptwarden/internal/scan"
	"github.com/scriptwarden/scriptwarden/internal/shared/id"
	"github.com/scriptwarden/scriptwarden/internal/shared/types"
	"github.com/scriptwarden/scriptwarden/internal/timing"
)

// PromptBroadcaster surfaces permission prompts to connected clients.
// The WebSocket layer provides the concrete implementation.
type PromptBroadcaster interface {
	monitor.PromptSink
	PromptResolved(id.RequestID)
	Close()
}

// Session is one analyzed page with its full governance stack wired:
// the page runtime, behavior monitor, dependency tracker, timing
// controller, and scanner all share the session's lifetime.
type Session struct {
	ID        id.SessionID `json:"id"`
	Origin    string       `json:"origin"`
	CreatedAt time.Time    `json:"created_at"`

	Page    *page.Page         `json:"-"`
	Monitor *monitor.Monitor   `json:"-"`
	Timing  *timing.Controller `json:"-"`
	Tracker *deps.Tracker      `json:"-"`
	Scanner *scan.Scanner      `json:"-"`

	broadcaster PromptBroadcaster
}

// Broadcaster returns the session's prompt broadcaster.
func (s *Session) Broadcaster() PromptBroadcaster { return s.broadcaster }

// CreateRequest configures a new session.
type CreateRequest struct {
	Origin           string                     `json:"origin" binding:"required"`
	HTML             string                     `json:"html"`
	PermissionPrompt *bool                      `json:"permission_prompt,omitempty"`
	Delays           map[string]types.DelayRule `json:"delays,omitempty"`
}

// Manager owns every live session.
type Manager struct {
	cfg     *config.Config
	fetcher page.Fetcher
	log     *logging.Logger
	metrics *monitoring.Metrics

	newBroadcaster func() PromptBroadcaster

	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

// NewManager creates a session manager. newBroadcaster is invoked once
// per session to build its prompt fan-out; fetcher may be nil to keep
// sessions fully offline.
func NewManager(cfg *config.Config, fetcher page.Fetcher, newBroadcaster func() PromptBroadcaster, log *logging.Logger, metrics *monitoring.Metrics) *Manager {
	return &Manager{
		cfg:            cfg,
		fetcher:        fetcher,
		log:            log.Component("session"),
		metrics:        metrics,
		newBroadcaster: newBroadcaster,
		sessions:       make(map[id.SessionID]*Session),
	}
}

// Create builds a session, loads its document, and runs the page's
// parser scripts to completion. The returned session is already
// registered and observable.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	pcfg := page.DefaultConfig(req.Origin)
	pcfg.ScriptTimeout = time.Duration(m.cfg.Page.ScriptTimeoutSeconds) * time.Second
	pcfg.MaxCallStack = m.cfg.Page.MaxCallStack

	pg, err := page.New(pcfg, m.fetcher, m.log)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if req.HTML != "" {
		if err := pg.LoadHTML(req.HTML); err != nil {
			return nil, fmt.Errorf("load document: %w", err)
		}
	}

	broadcaster := m.newBroadcaster()

	controller := timing.New(m.log, m.metrics)
	controller.Bind(pg)
	if len(req.Delays) > 0 {
		controller.SetRules(req.Delays)
	}

	mon := monitor.New(pg, broadcaster, m.log, m.metrics)
	mon.SetPermissionTimeout(time.Duration(m.cfg.Permission.TimeoutSeconds) * time.Second)
	enabled := m.cfg.Permission.PromptEnabled
	if req.PermissionPrompt != nil {
		enabled = *req.PermissionPrompt
	}
	mon.SetPermissionPromptEnabled(enabled)
	mon.Start()

	tracker := deps.New()
	scanner := scan.New(pg, mon, tracker, m.log, m.metrics)

	s := &Session{
		ID:          id.NewSessionID(),
		Origin:      req.Origin,
		CreatedAt:   time.Now(),
		Page:        pg,
		Monitor:     mon,
		Timing:      controller,
		Tracker:     tracker,
		Scanner:     scanner,
		broadcaster: broadcaster,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.metrics.SessionOpened()

	if err := pg.Run(ctx); err != nil {
		m.log.Warn("page run aborted",
			zap.String("session_id", s.ID.String()),
			zap.Error(err))
	}

	m.log.Info("session created",
		zap.String("session_id", s.ID.String()),
		zap.String("origin", req.Origin),
		zap.Int("script_errors", len(pg.Errors())))
	return s, nil
}

// Get returns a session by ID.
func (m *Manager) Get(sessionID id.SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// List returns all live sessions, newest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete tears a session down: pending time triggers are cancelled and
// the prompt broadcaster is closed.
func (m *Manager) Delete(sessionID id.SessionID) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	s.Timing.Stop()
	s.Page.Close()
	s.broadcaster.Close()
	m.metrics.SessionClosed()
	m.log.Info("session deleted", zap.String("session_id", sessionID.String()))
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
