// Package classify assigns a category to a script from its URL, origin,
// and optional source text, plus the entropy heuristic used to spot
// obfuscated bundle names.
package classify

import (
	"regexp"
	"strings"

	"github.com/scriptwarden/scriptwarden/internal/shared/types"
)

// Known vendor domain lists. Substring match against the raw URL, same
// as the network-rule layer that consumes the same lists.
var (
	trackingDomains = []string{
		"google-analytics.com", "googletagmanager.com", "doubleclick.net",
		"facebook.net", "connect.facebook.net", "analytics.twitter.com",
		"scorecardresearch.com", "quantserve.com", "hotjar.com",
		"mouseflow.com", "crazyegg.com", "mixpanel.com", "segment.com",
		"amplitude.com", "heap.io", "fullstory.com", "logrocket.com",
	}

	adDomains = []string{
		"googlesyndication.com", "adservice.google.com", "doubleclick.net",
		"advertising.com", "adsystem.com", "adnxs.com", "rubiconproject.com",
		"pubmatic.com", "openx.net", "criteo.com", "outbrain.com", "taboola.com",
	}

	cdnDomains = []string{
		"cloudflare.com", "jsdelivr.net", "unpkg.com", "cdnjs.cloudflare.com",
		"ajax.googleapis.com", "code.jquery.com", "stackpath.bootstrapcdn.com",
		"maxcdn.bootstrapcdn.com", "cdn.jsdelivr.net",
	}
)

var (
	trackingKeywords = regexp.MustCompile(`analytics|tracking|tracker|pixel|beacon|telemetry|metrics`)
	adKeywords       = regexp.MustCompile(`\bad[sv]?[_.-]|advertisement|banner|sponsor`)
	uxKeywords       = regexp.MustCompile(`jquery|bootstrap|react|vue|angular|animation|carousel|slider|modal|tooltip|dropdown`)
	coreKeywords     = regexp.MustCompile(`main|app|core|bundle|vendor|polyfill|runtime|chunk`)

	fingerprintPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)canvas.*fingerprint`),
		regexp.MustCompile(`(?i)webgl.*fingerprint`),
		regexp.MustCompile(`(?i)audiocontext`),
		regexp.MustCompile(`(?i)navigator\.plugins`),
		regexp.MustCompile(`(?i)screen\.(width|height)`),
		regexp.MustCompile(`(?i)navigator\.userAgent`),
		regexp.MustCompile(`(?i)document\.cookie`),
		regexp.MustCompile(`(?i)localStorage\.getItem`),
		regexp.MustCompile(`(?i)btoa|atob`),
	}

	analyticsCalls = regexp.MustCompile(`(?i)google.*analytics|ga\(|gtag\(|fbq\(`)
)

// SuspiciousEntropy is the bits-per-character threshold above which a
// filename is treated as an obfuscated or hashed bundle name.
const SuspiciousEntropy = 4.5

// Classifier assigns exactly one category per script. Stateless; safe
// for concurrent use.
type Classifier struct{}

// New creates a classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify runs the decision ladder. First match wins; the order is a
// deliberate precedence (vendor domains before keywords, keywords before
// content inspection, content before entropy, entropy before origin).
// content may be empty when source text is unavailable.
func (c *Classifier) Classify(url, scriptOrigin, pageOrigin, content string) types.Category {
	if containsAny(url, trackingDomains) {
		return types.CategoryTracking
	}
	if containsAny(url, adDomains) {
		return types.CategoryAds
	}

	lower := strings.ToLower(url)
	switch {
	case trackingKeywords.MatchString(lower):
		return types.CategoryTracking
	case adKeywords.MatchString(lower):
		return types.CategoryAds
	case uxKeywords.MatchString(lower):
		return types.CategoryUX
	case coreKeywords.MatchString(lower):
		return types.CategoryFunctional
	}

	if content != "" {
		for _, p := range fingerprintPatterns {
			if p.MatchString(content) {
				return types.CategorySuspicious
			}
		}
		if analyticsCalls.MatchString(content) {
			return types.CategoryTracking
		}
	}

	if Entropy(Filename(url)) > SuspiciousEntropy {
		return types.CategorySuspicious
	}

	crossOrigin := scriptOrigin != pageOrigin
	onCDN := containsAny(url, cdnDomains)
	switch {
	case crossOrigin && !onCDN:
		return types.CategoryUnknown
	case onCDN:
		return types.CategoryFunctional
	case !crossOrigin:
		return types.CategoryFunctional
	}

	return types.CategoryUnknown
}

// Filename extracts the final path segment of a URL with any query
// stripped. Malformed input is fine: the raw string degrades to itself.
func Filename(url string) string {
	name := url
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "?"); i >= 0 {
		name = name[:i]
	}
	return name
}

func containsAny(url string, domains []string) bool {
	for _, d := range domains {
		if strings.Contains(url, d) {
			return true
		}
	}
	return false
}
