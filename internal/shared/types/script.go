package types

// Category is the classifier's verdict for a script.
type Category string

const (
	CategoryTracking   Category = "Tracking"
	CategoryAds        Category = "Ads"
	CategoryUX         Category = "UX"
	CategoryFunctional Category = "Functional"
	CategorySuspicious Category = "Suspicious"
	CategoryUnknown    Category = "Unknown"
)

// Source describes where a script came from relative to the page.
type Source string

const (
	SourceFirstParty Source = "First Party"
	SourceThirdParty Source = "Third Party"
	SourceWASM       Source = "WASM"
)

// ScriptType describes how a script entered the page.
type ScriptType string

const (
	TypeExternal ScriptType = "external"
	TypeModule   ScriptType = "module"
	TypeInline   ScriptType = "inline"
	TypeDynamic  ScriptType = "dynamic"
	TypeWASM     ScriptType = "wasm"
)

// NotAvailable is the sentinel for missing timing/size metrics.
const NotAvailable = "N/A"

// Recommendation is the discrete trust verdict derived from a score.
type Recommendation string

const (
	RecommendSafe    Recommendation = "safe"
	RecommendNeutral Recommendation = "neutral"
	RecommendCaution Recommendation = "caution"
	RecommendBlock   Recommendation = "block"
)

// TrustScore is the scorer's output: a clamped score, its discrete
// recommendation, and the human-readable factor trail that produced it.
type TrustScore struct {
	Score          int            `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
	Factors        []string       `json:"factors"`
}

// DependencyInfo is the per-script view of the load graph.
type DependencyInfo struct {
	Parent     string   `json:"parent,omitempty"`
	ChildCount int      `json:"child_count"`
	Children   []string `json:"children"`
}

// ScriptRecord is one discovered script with everything the governance
// layer knows about it at scan time. Behaviors and dependency info are a
// snapshot; the underlying maps keep growing as the page runs.
type ScriptRecord struct {
	ID         string         `json:"id"`
	URL        string         `json:"url"`
	Source     Source         `json:"source"`
	Type       ScriptType     `json:"type"`
	Timing     string         `json:"timing"`
	Size       string         `json:"size"`
	Category   Category       `json:"category"`
	Behaviors  []string       `json:"behaviors"`
	Dependency DependencyInfo `json:"dependency"`
	TrustScore TrustScore     `json:"trust_score"`
}

// Behavior flag names emitted by the monitor. Keyed by script identity;
// a flag is recorded at most once per identity.
const (
	FlagStorageAccess     = "storage-access"
	FlagStorageAbuse      = "storage-abuse"
	FlagHiddenIframe      = "hidden-iframe"
	FlagWebRTCProbe       = "webrtc-probe"
	FlagWebRTCBlocked     = "webrtc-probe-blocked"
	FlagBeacon            = "beacon"
	FlagExcessiveTimers   = "excessive-timers"
	FlagWASMUsage         = "wasm-usage"
	FlagWASMBlocked       = "wasm-usage-blocked"
	FlagFingerprintCanvas = "fingerprint-canvas"
	FlagCanvasBlocked     = "fingerprint-canvas-blocked"
	FlagFingerprintWebGL  = "fingerprint-webgl"
	FlagFingerprintAudio  = "fingerprint-audio"
)

// Permission action types used for gating and the grant table.
const (
	ActionWebRTCProbe = "webrtc-probe"
	ActionWASMLoad    = "wasm-load"
	ActionCanvasRead  = "canvas-read"
)

// Permission decisions accepted from the presentation layer.
const (
	DecisionAllowAlways = "allow-always"
	DecisionAllowOnce   = "allow-once"
	DecisionBlock       = "block"
)

// IdentityUnknown is the sentinel identity used when caller attribution
// fails. Attribution is best-effort; this is a design constraint.
const IdentityUnknown = "unknown"

// DelayType selects the trigger that releases a held script.
type DelayType string

const (
	DelayInteraction DelayType = "interaction"
	DelayScroll      DelayType = "scroll"
	DelayTime        DelayType = "time"
)

// DelayRule configures deferred execution for one script identifier.
type DelayRule struct {
	Type    DelayType `json:"type"`
	Seconds int       `json:"seconds,omitempty"`
}
