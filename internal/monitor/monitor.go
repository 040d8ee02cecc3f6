// Package monitor observes capability usage on a page, attributes it to
// an originating script identity, and gates high-risk capabilities
// behind an asynchronous permission decision.
package monitor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/scriptwarden/scriptwarden/internal/logging"
	"github.com/scriptwarden/scriptwarden/internal/monitoring"
	"github.com/scriptwarden/scriptwarden/internal/page"
	"github.com/scriptwarden/scriptwarden/internal/shared/types"
)

// Abuse thresholds. A flag fires only once the per-identity count
// exceeds the threshold; earlier calls record the benign flag instead.
const (
	storageAbuseThreshold = 10
	excessiveTimerCount   = 5
)

// WebGL parameter codes whose query marks a fingerprinting attempt.
const (
	paramUnmaskedVendor   = 37445
	paramUnmaskedRenderer = 37446
)

// Monitor implements the page guard interfaces for every monitored
// capability surface. One instance per page context.
type Monitor struct {
	page    *page.Page
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu     sync.Mutex
	active bool

	// flags keeps first-observed order per identity; flagSet backs the
	// set semantics. Identities with zero flags have no entry.
	flags   map[string][]string
	flagSet map[string]map[string]bool

	writeCounts map[string]int
	timerCounts map[string]int

	perms *permissions
}

// New creates a monitor for a page. sink may be nil, in which case
// permission prompts are never surfaced and gated requests fail closed
// on timeout unless answered directly.
func New(pg *page.Page, sink PromptSink, log *logging.Logger, metrics *monitoring.Metrics) *Monitor {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Monitor{
		page:        pg,
		log:         log.Component("monitor"),
		metrics:     metrics,
		flags:       make(map[string][]string),
		flagSet:     make(map[string]map[string]bool),
		writeCounts: make(map[string]int),
		timerCounts: make(map[string]int),
		perms:       newPermissions(sink),
	}
}

// Start installs all interceptors. Idempotent: calling twice is a no-op.
// Capability families the page does not expose are skipped entirely;
// their absence is not an error.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return
	}
	m.active = true
	m.mu.Unlock()

	for _, capability := range []string{"webrtc", "wasm", "canvas", "webgl", "audio"} {
		if !m.page.Supports(capability) {
			m.log.Debug("capability absent, monitor skipped", zap.String("capability", capability))
		}
	}
	m.page.AddGuard(m)
}

// AddFlag records a behavior flag for an identity. Set semantics: a flag
// already present is a no-op. Flags are never removed.
func (m *Monitor) AddFlag(identity, flag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.flagSet[identity]
	if !ok {
		set = make(map[string]bool)
		m.flagSet[identity] = set
	}
	if set[flag] {
		return
	}
	set[flag] = true
	m.flags[identity] = append(m.flags[identity], flag)
	m.metrics.FlagRecorded(flag)
}

// GetFlags returns a snapshot of all recorded flags, per identity in
// first-observed order. The underlying map keeps growing as the page
// runs; callers treat the snapshot as eventually consistent.
func (m *Monitor) GetFlags() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]string, len(m.flags))
	for identity, flags := range m.flags {
		copied := make([]string, len(flags))
		copy(copied, flags)
		out[identity] = copied
	}
	return out
}

// FlagsFor returns the flags recorded for one identity, or an empty
// slice.
func (m *Monitor) FlagsFor(identity string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	flags := m.flags[identity]
	copied := make([]string, len(flags))
	copy(copied, flags)
	return copied
}

// ----------------------------------------------------------------------
// Guard implementations.
// ----------------------------------------------------------------------

// StorageRead flags any storage read as storage access.
func (m *Monitor) StorageRead(caller, key string) {
	m.metrics.Intercepted("storage")
	m.AddFlag(caller, types.FlagStorageAccess)
}

// StorageWrite flags storage access, escalating to abuse once the same
// identity crosses the write threshold.
func (m *Monitor) StorageWrite(caller, key string) {
	m.metrics.Intercepted("storage")

	m.mu.Lock()
	count := m.writeCounts[caller]
	m.writeCounts[caller] = count + 1
	m.mu.Unlock()

	if count > storageAbuseThreshold {
		m.AddFlag(caller, types.FlagStorageAbuse)
	} else {
		m.AddFlag(caller, types.FlagStorageAccess)
	}
}

// FrameAttached flags hidden iframes: display none, visibility hidden,
// or explicit zero size.
func (m *Monitor) FrameAttached(caller string, frame *page.Element) {
	m.metrics.Intercepted("iframe")
	if frame.Hidden() {
		m.AddFlag(caller, types.FlagHiddenIframe)
	}
}

// BeaconSent flags outbound keepalive beacons. Not gated: beacons are
// recorded for scoring only.
func (m *Monitor) BeaconSent(caller, url string) {
	m.metrics.Intercepted("beacon")
	m.AddFlag(caller, types.FlagBeacon)
}

// PeerConnectionOpened gates WebRTC construction. Denial raises a
// capability error to the caller; there is no safe stub for a peer
// connection.
func (m *Monitor) PeerConnectionOpened(ctx context.Context, caller string) error {
	m.metrics.Intercepted("webrtc")
	if m.RequestPermission(ctx, caller, types.ActionWebRTCProbe, "tracking") {
		m.AddFlag(caller, types.FlagWebRTCProbe)
		return nil
	}
	m.AddFlag(caller, types.FlagWebRTCBlocked)
	m.metrics.Blocked("webrtc")
	return page.ErrWebRTCDenied
}

// IntervalScheduled flags identities that schedule too many interval
// timers.
func (m *Monitor) IntervalScheduled(caller string) {
	m.metrics.Intercepted("timer")

	m.mu.Lock()
	count := m.timerCounts[caller]
	m.timerCounts[caller] = count + 1
	m.mu.Unlock()

	if count > excessiveTimerCount {
		m.AddFlag(caller, types.FlagExcessiveTimers)
	}
}

// ModuleInstantiated gates WebAssembly instantiation; denial raises.
func (m *Monitor) ModuleInstantiated(ctx context.Context, caller string) error {
	m.metrics.Intercepted("wasm")
	if m.RequestPermission(ctx, caller, types.ActionWASMLoad, "suspicious") {
		m.AddFlag(caller, types.FlagWASMUsage)
		return nil
	}
	m.AddFlag(caller, types.FlagWASMBlocked)
	m.metrics.Blocked("wasm")
	return page.ErrWASMDenied
}

// CanvasRead gates canvas pixel extraction. Denial substitutes an empty
// result rather than raising, so the caller's control flow survives.
func (m *Monitor) CanvasRead(ctx context.Context, caller string) bool {
	m.metrics.Intercepted("canvas")
	if m.RequestPermission(ctx, caller, types.ActionCanvasRead, "fingerprinting") {
		m.AddFlag(caller, types.FlagFingerprintCanvas)
		return true
	}
	m.AddFlag(caller, types.FlagCanvasBlocked)
	m.metrics.Blocked("canvas")
	return false
}

// WebGLParameterQueried flags queries for the unmasked vendor/renderer
// parameter codes. All other codes pass unflagged.
func (m *Monitor) WebGLParameterQueried(caller string, pname int) {
	if pname == paramUnmaskedVendor || pname == paramUnmaskedRenderer {
		m.metrics.Intercepted("webgl")
		m.AddFlag(caller, types.FlagFingerprintWebGL)
	}
}

// AudioContextCreated flags audio context construction.
func (m *Monitor) AudioContextCreated(caller string) {
	m.metrics.Intercepted("audio")
	m.AddFlag(caller, types.FlagFingerprintAudio)
}
