package classify

import (
	"math"
	"testing"

	"github.com/scriptwarden/scriptwarden/internal/shared/types"
)

func TestClassifyPrecedence(t *testing.T) {
	c := New()
	pageOrigin := "https://example.com"

	tests := []struct {
		name    string
		url     string
		origin  string
		content string
		want    types.Category
	}{
		{
			name:   "tracking vendor domain",
			url:    "https://www.google-analytics.com/analytics.js",
			origin: "https://www.google-analytics.com",
			want:   types.CategoryTracking,
		},
		{
			name:   "ad vendor domain",
			url:    "https://pagead2.googlesyndication.com/pagead/js/adsbygoogle.js",
			origin: "https://pagead2.googlesyndication.com",
			want:   types.CategoryAds,
		},
		{
			name:   "doubleclick hits tracking before ads",
			url:    "https://stats.doubleclick.net/collect.js",
			origin: "https://stats.doubleclick.net",
			want:   types.CategoryTracking,
		},
		{
			name:   "tracking domain beats core bundle keyword",
			url:    "https://www.googletagmanager.com/bundle.js",
			origin: "https://www.googletagmanager.com",
			want:   types.CategoryTracking,
		},
		{
			name:   "tracking keyword in path",
			url:    "https://example.com/js/pixel-loader.js",
			origin: pageOrigin,
			want:   types.CategoryTracking,
		},
		{
			name:   "ad keyword needs boundary",
			url:    "https://example.com/ads_manager.js",
			origin: pageOrigin,
			want:   types.CategoryAds,
		},
		{
			name:   "load is not an ad keyword",
			url:    "https://example.com/loader.js",
			origin: pageOrigin,
			want:   types.CategoryFunctional, // same-origin fallthrough
		},
		{
			name:   "ux framework keyword",
			url:    "https://example.com/vendor/jquery.min.js",
			origin: pageOrigin,
			want:   types.CategoryUX,
		},
		{
			name:   "core bundle keyword",
			url:    "https://example.com/static/app.bundle.js",
			origin: pageOrigin,
			want:   types.CategoryFunctional,
		},
		{
			name:    "fingerprint content beats origin",
			url:     "https://example.com/helper.js",
			origin:  pageOrigin,
			content: "var fp = canvasFingerprint(ctx);",
			want:    types.CategorySuspicious,
		},
		{
			name:    "analytics call in content",
			url:     "https://example.com/init.js",
			origin:  pageOrigin,
			content: "gtag('config', 'UA-1');",
			want:    types.CategoryTracking,
		},
		{
			name:   "high entropy filename",
			url:    "https://example.com/zK9#qW!x@Lm$Rv&2^pT*8(bN)5{dG}7.js",
			origin: pageOrigin,
			want:   types.CategorySuspicious,
		},
		{
			name:   "cross origin off CDN",
			url:    "https://widgets.partner.io/embed.js",
			origin: "https://widgets.partner.io",
			want:   types.CategoryUnknown,
		},
		{
			name:   "known CDN",
			url:    "https://cdn.jsdelivr.net/npm/lodash/lodash.min.js",
			origin: "https://cdn.jsdelivr.net",
			want:   types.CategoryFunctional,
		},
		{
			name:   "same origin fallthrough",
			url:    "https://example.com/site.js",
			origin: pageOrigin,
			want:   types.CategoryFunctional,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.url, tt.origin, pageOrigin, tt.content)
			if got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestClassifyContentIgnoredWhenEmpty(t *testing.T) {
	c := New()
	got := c.Classify("https://example.com/site.js", "https://example.com", "https://example.com", "")
	if got != types.CategoryFunctional {
		t.Errorf("empty content should fall through to origin rules, got %v", got)
	}
}

func TestEntropy(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{name: "empty", in: "", want: 0},
		{name: "single char", in: "aaaa", want: 0},
		{name: "two chars", in: "abab", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Entropy(tt.in)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Entropy(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEntropyThreshold(t *testing.T) {
	if e := Entropy("app.js"); e > SuspiciousEntropy {
		t.Errorf("ordinary filename entropy %v should be under threshold", e)
	}
	if e := Entropy("zK9#qW!x@Lm$Rv&2^pT*8(bN)5{dG}7.js"); e <= SuspiciousEntropy {
		t.Errorf("obfuscated filename entropy %v should exceed threshold", e)
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/a/b/app.js", "app.js"},
		{"https://example.com/app.js?v=2", "app.js"},
		{"app.js", "app.js"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Filename(tt.in); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
