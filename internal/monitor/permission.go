package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/scriptwarden/scriptwarden/internal/shared/id"
	"github.com/scriptwarden/scriptwarden/internal/shared/types"
)

// DefaultPermissionTimeout is how long a prompt may stay unanswered
// before the request resolves to a denial.
const DefaultPermissionTimeout = 30 * time.Second

// PromptRequest carries one permission prompt to the presentation layer.
type PromptRequest struct {
	RequestID id.RequestID `json:"request_id"`
	Identity  string       `json:"identity"`
	Action    string       `json:"action"`
	Category  string       `json:"category"`
}

// PromptSink surfaces permission prompts to an external presentation
// layer, which is expected to eventually answer through
// HandlePermissionResponse with the same request ID.
type PromptSink interface {
	ShowPermissionPrompt(req PromptRequest)
}

// PromptResolver is optionally implemented by sinks that queue prompts
// for replay. The monitor notifies it whenever a pending request
// resolves, whatever the path: an answer, the timeout, or cancellation.
type PromptResolver interface {
	PromptResolved(id.RequestID)
}

type grantKey struct {
	identity string
	action   string
}

type pendingRequest struct {
	decision chan bool
	identity string
	action   string
}

// permissions is the monitor's correlation table and grant store. The
// pending map is keyed by a one-shot token: one response, first writer
// wins, consumed once.
type permissions struct {
	mu            sync.Mutex
	promptEnabled bool
	timeout       time.Duration
	grants        map[grantKey]bool
	pending       map[id.RequestID]pendingRequest
	sink          PromptSink
}

func newPermissions(sink PromptSink) *permissions {
	return &permissions{
		promptEnabled: true,
		timeout:       DefaultPermissionTimeout,
		grants:        make(map[grantKey]bool),
		pending:       make(map[id.RequestID]pendingRequest),
		sink:          sink,
	}
}

// SetPermissionPromptEnabled toggles prompting. With prompts off, gated
// capabilities are allowed without asking.
func (m *Monitor) SetPermissionPromptEnabled(enabled bool) {
	m.perms.mu.Lock()
	m.perms.promptEnabled = enabled
	m.perms.mu.Unlock()
}

// SetPermissionTimeout overrides the prompt timeout. Useful in tests.
func (m *Monitor) SetPermissionTimeout(d time.Duration) {
	m.perms.mu.Lock()
	m.perms.timeout = d
	m.perms.mu.Unlock()
}

// IsGranted reports whether an always-allow grant exists.
func (m *Monitor) IsGranted(identity, action string) bool {
	m.perms.mu.Lock()
	defer m.perms.mu.Unlock()
	return m.perms.grants[grantKey{identity, action}]
}

// RequestPermission asks whether identity may perform action. It
// resolves true immediately for an existing grant or when prompting is
// disabled. Otherwise it surfaces a prompt and suspends the calling
// script's flow until a response arrives or the timeout fires; an
// unanswered request is a denial (fail closed).
func (m *Monitor) RequestPermission(ctx context.Context, identity, action, category string) bool {
	p := m.perms

	p.mu.Lock()
	if p.grants[grantKey{identity, action}] {
		p.mu.Unlock()
		return true
	}
	if !p.promptEnabled {
		p.mu.Unlock()
		return true
	}

	reqID := id.NewRequestID()
	req := pendingRequest{
		decision: make(chan bool, 1),
		identity: identity,
		action:   action,
	}
	p.pending[reqID] = req
	timeout := p.timeout
	sink := p.sink
	p.mu.Unlock()

	m.metrics.PromptOpened()
	defer m.metrics.PromptClosed()

	if sink != nil {
		sink.ShowPermissionPrompt(PromptRequest{
			RequestID: reqID,
			Identity:  identity,
			Action:    action,
			Category:  category,
		})
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case allowed := <-req.decision:
		return allowed
	case <-timer.C:
	case <-ctx.Done():
	}

	p.mu.Lock()
	delete(p.pending, reqID)
	p.mu.Unlock()
	if r, ok := sink.(PromptResolver); ok {
		r.PromptResolved(reqID)
	}
	return false
}

// HandlePermissionResponse resolves a pending request. allow-always
// persists a grant for (identity, action) before resolving true;
// allow-once resolves true without persisting; any other decision
// resolves false. Unknown or expired request IDs are silently ignored,
// which makes duplicate and late responses harmless.
func (m *Monitor) HandlePermissionResponse(requestID id.RequestID, decision, identity, action string) {
	p := m.perms

	p.mu.Lock()
	req, ok := p.pending[requestID]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.pending, requestID)

	allowed := false
	switch decision {
	case types.DecisionAllowAlways:
		p.grants[grantKey{identity, action}] = true
		allowed = true
	case types.DecisionAllowOnce:
		allowed = true
	}
	sink := p.sink
	p.mu.Unlock()

	req.decision <- allowed
	if r, ok := sink.(PromptResolver); ok {
		r.PromptResolved(requestID)
	}
}
