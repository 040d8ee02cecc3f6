package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/scriptwarden/scriptwarden/internal/shared/id"
	"github.com/scriptwarden/scriptwarden/internal/shared/types"
)

// chanSink delivers surfaced prompts to the test.
type chanSink struct {
	prompts chan PromptRequest
}

func newChanSink() *chanSink {
	return &chanSink{prompts: make(chan PromptRequest, 8)}
}

func (s *chanSink) ShowPermissionPrompt(req PromptRequest) {
	s.prompts <- req
}

func (s *chanSink) wait(t *testing.T) PromptRequest {
	t.Helper()
	select {
	case req := <-s.prompts:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("no prompt surfaced")
		return PromptRequest{}
	}
}

func TestRequestPermissionDisabled(t *testing.T) {
	m := newTestMonitor(t, nil)
	m.SetPermissionPromptEnabled(false)

	if !m.RequestPermission(context.Background(), "a", types.ActionCanvasRead, "fingerprinting") {
		t.Error("disabled prompting should allow without asking")
	}
}

func TestRequestPermissionAllowOnce(t *testing.T) {
	sink := newChanSink()
	m := newTestMonitor(t, sink)

	done := make(chan bool, 1)
	go func() {
		done <- m.RequestPermission(context.Background(), "https://a.com/s.js", types.ActionWASMLoad, "suspicious")
	}()

	req := sink.wait(t)
	if req.Identity != "https://a.com/s.js" || req.Action != types.ActionWASMLoad {
		t.Errorf("prompt = %+v", req)
	}

	m.HandlePermissionResponse(req.RequestID, types.DecisionAllowOnce, req.Identity, req.Action)
	if !<-done {
		t.Error("allow-once should resolve true")
	}
	if m.IsGranted(req.Identity, req.Action) {
		t.Error("allow-once must not persist a grant")
	}
}

func TestRequestPermissionAllowAlways(t *testing.T) {
	sink := newChanSink()
	m := newTestMonitor(t, sink)

	done := make(chan bool, 1)
	go func() {
		done <- m.RequestPermission(context.Background(), "a", types.ActionWebRTCProbe, "tracking")
	}()

	req := sink.wait(t)
	m.HandlePermissionResponse(req.RequestID, types.DecisionAllowAlways, req.Identity, req.Action)
	if !<-done {
		t.Fatal("allow-always should resolve true")
	}
	if !m.IsGranted("a", types.ActionWebRTCProbe) {
		t.Fatal("grant not persisted")
	}

	// the grant short-circuits: no second prompt
	if !m.RequestPermission(context.Background(), "a", types.ActionWebRTCProbe, "tracking") {
		t.Error("granted request should resolve immediately")
	}
	select {
	case <-sink.prompts:
		t.Error("granted request should not prompt again")
	default:
	}
}

func TestRequestPermissionBlock(t *testing.T) {
	sink := newChanSink()
	m := newTestMonitor(t, sink)

	done := make(chan bool, 1)
	go func() {
		done <- m.RequestPermission(context.Background(), "a", types.ActionCanvasRead, "fingerprinting")
	}()

	req := sink.wait(t)
	m.HandlePermissionResponse(req.RequestID, types.DecisionBlock, req.Identity, req.Action)
	if <-done {
		t.Error("block should resolve false")
	}
}

func TestRequestPermissionTimeout(t *testing.T) {
	sink := newChanSink()
	m := newTestMonitor(t, sink)
	m.SetPermissionTimeout(20 * time.Millisecond)

	if m.RequestPermission(context.Background(), "a", types.ActionWASMLoad, "suspicious") {
		t.Error("unanswered request should fail closed")
	}

	// a late response to the expired request is ignored
	req := sink.wait(t)
	m.HandlePermissionResponse(req.RequestID, types.DecisionAllowAlways, req.Identity, req.Action)
	if m.IsGranted("a", types.ActionWASMLoad) {
		t.Error("late response should not persist a grant")
	}
}

// resolvingSink additionally records resolution notifications, like the
// stream hub's replay queue does.
type resolvingSink struct {
	*chanSink
	resolved chan id.RequestID
}

func newResolvingSink() *resolvingSink {
	return &resolvingSink{
		chanSink: newChanSink(),
		resolved: make(chan id.RequestID, 8),
	}
}

func (s *resolvingSink) PromptResolved(reqID id.RequestID) {
	s.resolved <- reqID
}

func (s *resolvingSink) waitResolved(t *testing.T) id.RequestID {
	t.Helper()
	select {
	case reqID := <-s.resolved:
		return reqID
	case <-time.After(2 * time.Second):
		t.Fatal("prompt never reported resolved")
		return ""
	}
}

func TestTimedOutPromptReportedResolved(t *testing.T) {
	sink := newResolvingSink()
	m := newTestMonitor(t, sink)
	m.SetPermissionTimeout(20 * time.Millisecond)

	if m.RequestPermission(context.Background(), "a", types.ActionWASMLoad, "suspicious") {
		t.Fatal("unanswered request should fail closed")
	}

	req := sink.wait(t)
	if got := sink.waitResolved(t); got != req.RequestID {
		t.Errorf("resolved ID = %q, want %q", got, req.RequestID)
	}
}

func TestAnsweredPromptReportedResolved(t *testing.T) {
	sink := newResolvingSink()
	m := newTestMonitor(t, sink)

	done := make(chan bool, 1)
	go func() {
		done <- m.RequestPermission(context.Background(), "a", types.ActionCanvasRead, "fingerprinting")
	}()

	req := sink.wait(t)
	m.HandlePermissionResponse(req.RequestID, types.DecisionAllowOnce, req.Identity, req.Action)
	<-done
	if got := sink.waitResolved(t); got != req.RequestID {
		t.Errorf("resolved ID = %q, want %q", got, req.RequestID)
	}
}

func TestRequestPermissionContextCancel(t *testing.T) {
	sink := newChanSink()
	m := newTestMonitor(t, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		done <- m.RequestPermission(ctx, "a", types.ActionCanvasRead, "fingerprinting")
	}()

	sink.wait(t)
	cancel()
	if <-done {
		t.Error("cancelled context should fail closed")
	}
}

func TestHandlePermissionResponseUnknownID(t *testing.T) {
	m := newTestMonitor(t, nil)

	// must not panic or create state
	m.HandlePermissionResponse(id.RequestID("req_nope"), types.DecisionAllowAlways, "a", "b")
	if m.IsGranted("a", "b") {
		t.Error("unknown request ID should be ignored entirely")
	}
}

func TestPeerConnectionGating(t *testing.T) {
	sink := newChanSink()
	m := newTestMonitor(t, sink)
	m.SetPermissionTimeout(20 * time.Millisecond)

	if err := m.PeerConnectionOpened(context.Background(), "a"); err == nil {
		t.Fatal("denied peer connection should raise")
	}
	if !hasFlag(m.FlagsFor("a"), types.FlagWebRTCBlocked) {
		t.Error("blocked flag missing")
	}

	m.SetPermissionPromptEnabled(false)
	if err := m.PeerConnectionOpened(context.Background(), "b"); err != nil {
		t.Fatalf("allowed peer connection errored: %v", err)
	}
	if !hasFlag(m.FlagsFor("b"), types.FlagWebRTCProbe) {
		t.Error("probe flag missing on allowed path")
	}
}

func TestCanvasGatingSubstitutes(t *testing.T) {
	m := newTestMonitor(t, newChanSink())
	m.SetPermissionTimeout(20 * time.Millisecond)

	if m.CanvasRead(context.Background(), "a") {
		t.Error("denied canvas read should return false, not raise")
	}
	if !hasFlag(m.FlagsFor("a"), types.FlagCanvasBlocked) {
		t.Error("canvas blocked flag missing")
	}
}
