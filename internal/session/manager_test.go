package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptwarden/scriptwarden/internal/config"
	"github.com/scriptwarden/scriptwarden/internal/logging"
	"github.com/scriptwarden/scriptwarden/internal/monitor"
	"github.com/scriptwarden/scriptwarden/internal/shared/id"
	"github.com/scriptwarden/scriptwarden/internal/shared/types"
)

type testBroadcaster struct {
	mu       sync.Mutex
	prompts  []monitor.PromptRequest
	resolved []id.RequestID
	closed   bool
}

func (b *testBroadcaster) ShowPermissionPrompt(req monitor.PromptRequest) {
	b.mu.Lock()
	b.prompts = append(b.prompts, req)
	b.mu.Unlock()
}

func (b *testBroadcaster) PromptResolved(reqID id.RequestID) {
	b.mu.Lock()
	b.resolved = append(b.resolved, reqID)
	b.mu.Unlock()
}

func (b *testBroadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func newTestManager(t *testing.T) (*Manager, *testBroadcaster) {
	t.Helper()
	b := &testBroadcaster{}
	m := NewManager(config.Default(), nil, func() PromptBroadcaster { return b },
		logging.NewDefault(), nil)
	return m, b
}

func TestCreateRunsDocumentScripts(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Create(context.Background(), CreateRequest{
		Origin: "https://example.com",
		HTML:   `<html><body><script>console.log("up");</script></body></html>`,
	})
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, "https://example.com", s.Origin)
	assert.Equal(t, 1, m.Count())

	logs := s.Page.Console()
	require.Len(t, logs, 1)
	assert.Equal(t, "up", logs[0].Message)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestCreateWithoutDocument(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Create(context.Background(), CreateRequest{Origin: "https://example.com"})
	require.NoError(t, err)
	assert.Empty(t, s.Scanner.Scan())
}

func TestListNewestFirst(t *testing.T) {
	m, _ := newTestManager(t)
	first, err := m.Create(context.Background(), CreateRequest{Origin: "https://a.example.com"})
	require.NoError(t, err)
	second, err := m.Create(context.Background(), CreateRequest{Origin: "https://b.example.com"})
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestDeleteTearsDown(t *testing.T) {
	m, b := newTestManager(t)
	s, err := m.Create(context.Background(), CreateRequest{Origin: "https://example.com"})
	require.NoError(t, err)

	assert.True(t, m.Delete(s.ID))
	assert.Equal(t, 0, m.Count())
	assert.True(t, b.closed)

	assert.False(t, m.Delete(s.ID))
	assert.False(t, m.Delete(id.NewSessionID()))
}

func TestCreateWithDelaysHoldsMatchingScripts(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Create(context.Background(), CreateRequest{
		Origin: "https://example.com",
		HTML: `<html><body><script>
var el = document.createElement("script");
el.src = "https://tracker.adnet.org/pixel.js";
document.body.appendChild(el);
</script></body></html>`,
		Delays: map[string]types.DelayRule{
			"tracker.adnet.org": {Type: types.DelayInteraction},
		},
	})
	require.NoError(t, err)

	held := s.Timing.Held()
	require.Len(t, held, 1)
	assert.Equal(t, "https://tracker.adnet.org/pixel.js", held[0])

	s.Page.DispatchClick()
	assert.Empty(t, s.Timing.Held())
}

// cancelAwareFetcher fails like a real HTTP client once its context is
// done.
type cancelAwareFetcher struct {
	bodies map[string]string
}

func (f *cancelAwareFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	return []byte(f.bodies[url]), "text/javascript", nil
}

func TestDelayedScriptReleasesAfterRequestContextEnds(t *testing.T) {
	const url = "https://cdn.example.com/ad.js"
	b := &testBroadcaster{}
	fetcher := &cancelAwareFetcher{bodies: map[string]string{
		url: `console.log("released");`,
	}}
	m := NewManager(config.Default(), fetcher, func() PromptBroadcaster { return b },
		logging.NewDefault(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := m.Create(ctx, CreateRequest{
		Origin: "https://example.com",
		HTML: `<html><body><script>
var el = document.createElement("script");
el.src = "` + url + `";
document.body.appendChild(el);
</script></body></html>`,
		Delays: map[string]types.DelayRule{
			"cdn.example.com": {Type: types.DelayInteraction},
		},
	})
	require.NoError(t, err)
	require.Len(t, s.Timing.Held(), 1)

	// The creating request is long gone by the time the user interacts.
	cancel()
	s.Page.DispatchClick()

	assert.Empty(t, s.Timing.Held())
	assert.Empty(t, s.Page.Errors())
	logs := s.Page.Console()
	require.Len(t, logs, 1)
	assert.Equal(t, "released", logs[0].Message)
}

func TestPermissionPromptDisabledByDefault(t *testing.T) {
	m, b := newTestManager(t)
	s, err := m.Create(context.Background(), CreateRequest{
		Origin: "https://example.com",
		HTML:   `<html><body><script>new RTCPeerConnection();</script></body></html>`,
	})
	require.NoError(t, err)

	assert.Empty(t, b.prompts, "prompt surfaced with prompting disabled")
	assert.Empty(t, s.Page.Errors())

	flags := s.Monitor.GetFlags()
	assert.Contains(t, flags[id.Inline(`new RTCPeerConnection();`)], types.FlagWebRTCProbe)
}
