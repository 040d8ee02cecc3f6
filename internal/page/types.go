package page

import (
	"context"
	"time"
)

// Config defines page runtime configuration. Disabling a capability
// removes it from the VM entirely; guards for that family simply never
// fire, mirroring a host without the capability.
type Config struct {
	Origin        string        // page origin, e.g. https://example.com
	ScriptTimeout time.Duration // per-script execution timeout
	MaxCallStack  int           // goja call stack limit
	EnableConsole bool
	EnableWebRTC  bool
	EnableWASM    bool
	EnableCanvas  bool
	EnableWebGL   bool
	EnableAudio   bool
}

// DefaultConfig returns a page configuration with every capability
// surface enabled.
func DefaultConfig(origin string) Config {
	return Config{
		Origin:        origin,
		ScriptTimeout: 5 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
		EnableWebRTC:  true,
		EnableWASM:    true,
		EnableCanvas:  true,
		EnableWebGL:   true,
		EnableAudio:   true,
	}
}

// ResourceEntry is one record of the page's resource-timing feed.
type ResourceEntry struct {
	Name      string        `json:"name"`
	Initiator string        `json:"initiator"` // parser, script, fetch, beacon, wasm
	Duration  time.Duration `json:"duration"`
	Size      int64         `json:"size"`
}

// Fetcher retrieves external resources for the page. Implementations
// must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body []byte, mime string, err error)
}

// LogEntry captures console output from page scripts.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Script  string    `json:"script"`
	Time    time.Time `json:"time"`
}

// AttachOp names the script-insertion entry point that was intercepted.
type AttachOp string

const (
	OpSource       AttachOp = "src"
	OpAppend       AttachOp = "appendChild"
	OpInsertBefore AttachOp = "insertBefore"
)

// Guard interfaces. Components register against the page's capability
// entry points; the native effect runs only after every registered
// guard has seen the call (and, for gated capabilities, approved it).
// The page resolves the calling script's identity before invoking
// guards, so implementations never touch the VM.

// StorageGuard observes storage reads and writes.
type StorageGuard interface {
	StorageRead(caller, key string)
	StorageWrite(caller, key string)
}

// FrameGuard observes iframe attachment.
type FrameGuard interface {
	FrameAttached(caller string, frame *Element)
}

// NetworkGuard observes outbound beacons and gates peer connections.
// A non-nil error from PeerConnectionOpened is raised to the calling
// script as a capability error.
type NetworkGuard interface {
	BeaconSent(caller, url string)
	PeerConnectionOpened(ctx context.Context, caller string) error
}

// TimerGuard observes repeated interval timers.
type TimerGuard interface {
	IntervalScheduled(caller string)
}

// WASMGuard gates WebAssembly instantiation. A non-nil error is raised
// to the calling script.
type WASMGuard interface {
	ModuleInstantiated(ctx context.Context, caller string) error
}

// CanvasGuard gates canvas pixel extraction. Returning false substitutes
// an innocuous empty result instead of raising, preserving caller
// control flow.
type CanvasGuard interface {
	CanvasRead(ctx context.Context, caller string) bool
}

// WebGLGuard observes WebGL parameter queries.
type WebGLGuard interface {
	WebGLParameterQueried(caller string, pname int)
}

// AudioGuard observes audio context construction.
type AudioGuard interface {
	AudioContextCreated(caller string)
}

// ScriptGuard observes and may defer script loading. Returning hold=true
// suppresses the native effect; the recorded operation is replayed later
// through the page's Natives.
type ScriptGuard interface {
	ScriptSourceAssigned(el *Element, src, caller string) (hold bool)
	ScriptAttached(op AttachOp, el, parent, ref *Element, caller string) (hold bool)
}

// Natives exposes the unguarded script operations for replaying a held
// script. These bypass guards by construction; callers own idempotence.
type Natives interface {
	ApplySource(el *Element, src string)
	Append(parent, el *Element)
	InsertBefore(parent, el, ref *Element)
}
