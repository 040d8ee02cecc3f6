// Package trust reduces a script record to a bounded trust score with a
// discrete recommendation and a human-readable factor trail.
//
// The model is a transparent linear one, not learned: every adjustment
// is independent and appends a factor string, so a user can always see
// why a script scored the way it did.
package trust

import (
	"github.com/scriptwarden/scriptwarden/internal/shared/types"
)

const baseline = 50

// Scorer computes trust scores. Stateless; safe for concurrent use.
type Scorer struct{}

// New creates a scorer.
func New() *Scorer {
	return &Scorer{}
}

// Score evaluates a record. Only the record's category, source,
// behaviors, dependency shape, and type participate; the result is
// always clamped to [0,100].
func (s *Scorer) Score(rec types.ScriptRecord) types.TrustScore {
	score := baseline
	var factors []string

	add := func(delta int, factor string) {
		score += delta
		factors = append(factors, factor)
	}

	switch rec.Category {
	case types.CategoryFunctional:
		add(20, "Functional script (+20)")
	case types.CategoryUX:
		add(10, "UX enhancement (+10)")
	case types.CategoryTracking:
		add(-30, "Tracking script (-30)")
	case types.CategoryAds:
		add(-35, "Advertisement (-35)")
	case types.CategorySuspicious:
		add(-40, "Suspicious behavior (-40)")
	}

	switch rec.Source {
	case types.SourceFirstParty:
		add(15, "First-party (+15)")
	case types.SourceThirdParty:
		add(-10, "Third-party (-10)")
	}

	flags := make(map[string]bool, len(rec.Behaviors))
	for _, b := range rec.Behaviors {
		flags[b] = true
	}

	if flags[types.FlagFingerprintCanvas] || flags[types.FlagFingerprintWebGL] || flags[types.FlagFingerprintAudio] {
		add(-25, "Fingerprinting detected (-25)")
	}
	if flags[types.FlagStorageAbuse] {
		add(-15, "Storage abuse (-15)")
	}
	if flags[types.FlagHiddenIframe] {
		add(-20, "Hidden iframe (-20)")
	}
	if flags[types.FlagWebRTCProbe] {
		add(-20, "WebRTC probing (-20)")
	}
	if flags[types.FlagBeacon] {
		add(-10, "Background beaconing (-10)")
	}
	if flags[types.FlagWASMUsage] {
		add(-15, "WASM usage (-15)")
	}

	if rec.Dependency.Parent != "" {
		add(-5, "Loaded by another script (-5)")
	}
	if rec.Dependency.ChildCount > 3 {
		add(-10, "Loads many scripts (-10)")
	}

	switch rec.Type {
	case types.TypeInline:
		add(5, "Inline script (+5)")
	case types.TypeDynamic:
		add(-5, "Dynamically loaded (-5)")
	case types.TypeWASM:
		add(-20, "WebAssembly (-20)")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return types.TrustScore{
		Score:          score,
		Recommendation: Recommend(score),
		Factors:        factors,
	}
}

// Recommend maps a clamped score to its discrete recommendation.
func Recommend(score int) types.Recommendation {
	switch {
	case score >= 70:
		return types.RecommendSafe
	case score >= 40:
		return types.RecommendNeutral
	case score >= 20:
		return types.RecommendCaution
	default:
		return types.RecommendBlock
	}
}
