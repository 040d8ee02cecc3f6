package scan

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
	"go.uber.org/zap"

	"github.com/scriptwarden/scriptwarden/internal/classify"
	"github.com/scriptwarden/scriptwarden/internal/deps"
	"github.com/scriptwarden/scriptwarden/internal/logging"
	"github.com/scriptwarden/scriptwarden/internal/monitor"
	"github.com/scriptwarden/scriptwarden/internal/monitoring"
	"github.com/scriptwarden/scriptwarden/internal/page"
	"github.com/scriptwarden/scriptwarden/internal/shared/id"
	"github.com/scriptwarden/scriptwarden/internal/shared/types"
	"github.com/scriptwarden/scriptwarden/internal/shared/utils"
	"github.com/scriptwarden/scriptwarden/internal/trust"
)

var (
	jsURL   = regexp.MustCompile(`\.js(\?|$)`)
	wasmURL = regexp.MustCompile(`\.wasm(\?|$)`)
)

// Scanner assembles the full per-script picture: discovery across the
// document and the resource-timing feed, classification, behavior
// flags, dependency shape, and trust score. One scanner serves one
// page; Scan may be called repeatedly as the page evolves.
type Scanner struct {
	pg         *page.Page
	mon        *monitor.Monitor
	tracker    *deps.Tracker
	classifier *classify.Classifier
	scorer     *trust.Scorer
	log        *logging.Logger
	metrics    *monitoring.Metrics

	fed int // timing entries already fed to the tracker
}

// New creates a scanner and registers its dependency observer on the
// page.
func New(pg *page.Page, mon *monitor.Monitor, tracker *deps.Tracker, log *logging.Logger, metrics *monitoring.Metrics) *Scanner {
	pg.AddGuard(depsGuard{tracker: tracker})
	return &Scanner{
		pg:         pg,
		mon:        mon,
		tracker:    tracker,
		classifier: classify.New(),
		scorer:     trust.New(),
		log:        log.Component("scan"),
		metrics:    metrics,
	}
}

// Tracker returns the dependency tracker backing this scanner.
func (s *Scanner) Tracker() *deps.Tracker { return s.tracker }

// Scan discovers every script the page currently knows about. Discovery
// runs in four passes: external script elements, inline script
// elements, script-initiated .js resources, and .wasm resources. The
// same URL can legitimately appear in both an element pass and a
// resource pass; records are point-in-time snapshots, not a registry.
func (s *Scanner) Scan() []types.ScriptRecord {
	pageOrigin := s.pg.Origin()
	timings := s.pg.Timings()
	s.feedTracker(timings)

	byURL := make(map[string]page.ResourceEntry, len(timings))
	for _, e := range timings {
		byURL[e.Name] = e
	}

	records := make([]types.ScriptRecord, 0)

	extIdx, inlIdx := 0, 0
	for _, el := range s.pg.Document().Scripts() {
		switch {
		case el.Src != "":
			records = append(records, s.externalRecord(el, extIdx, pageOrigin, byURL))
			extIdx++
		case strings.TrimSpace(el.TextContent) != "":
			records = append(records, s.inlineRecord(el, inlIdx, pageOrigin))
			inlIdx++
		}
	}

	dynIdx := 0
	for _, e := range timings {
		if e.Initiator == "script" && jsURL.MatchString(e.Name) {
			records = append(records, s.dynamicRecord(e, dynIdx, pageOrigin))
			dynIdx++
		}
	}

	wasmIdx := 0
	for _, e := range timings {
		if wasmURL.MatchString(e.Name) {
			records = append(records, s.wasmRecord(e, wasmIdx))
			wasmIdx++
		}
	}

	s.metrics.ScanCompleted()
	s.log.Info("scan complete",
		zap.Int("scripts", len(records)),
		zap.String("origin", pageOrigin))
	return records
}

func (s *Scanner) externalRecord(el *page.Element, index int, pageOrigin string, byURL map[string]page.ResourceEntry) types.ScriptRecord {
	src := el.Src
	scriptType := types.TypeExternal
	if el.IsModule() {
		scriptType = types.TypeModule
	}

	timing, size := types.NotAvailable, types.NotAvailable
	if e, ok := byURL[src]; ok {
		timing = formatDuration(e)
		size = utils.FormatBytes(e.Size)
	}

	rec := types.ScriptRecord{
		ID:         id.Script(src, string(scriptType), index),
		URL:        src,
		Source:     sourceOf(src, pageOrigin),
		Type:       scriptType,
		Timing:     timing,
		Size:       size,
		Category:   s.classifier.Classify(src, originOf(src), pageOrigin, ""),
		Behaviors:  s.mon.FlagsFor(src),
		Dependency: s.tracker.GetDependencyInfo(src),
	}
	rec.TrustScore = s.scorer.Score(rec)
	return rec
}

func (s *Scanner) inlineRecord(el *page.Element, index int, pageOrigin string) types.ScriptRecord {
	content := el.TextContent
	identity := id.Inline(content)

	rec := types.ScriptRecord{
		ID:         id.Script(content, string(types.TypeInline), index),
		URL:        identity,
		Source:     types.SourceFirstParty,
		Type:       types.TypeInline,
		Timing:     types.NotAvailable,
		Size:       utils.FormatBytes(int64(len(content))),
		Category:   s.classifier.Classify(identity, pageOrigin, pageOrigin, content),
		Behaviors:  s.mon.FlagsFor(identity),
		Dependency: s.tracker.GetDependencyInfo(identity),
	}
	rec.TrustScore = s.scorer.Score(rec)
	return rec
}

func (s *Scanner) dynamicRecord(e page.ResourceEntry, index int, pageOrigin string) types.ScriptRecord {
	rec := types.ScriptRecord{
		ID:         id.Script(e.Name, string(types.TypeDynamic), index),
		URL:        e.Name,
		Source:     sourceOf(e.Name, pageOrigin),
		Type:       types.TypeDynamic,
		Timing:     formatDuration(e),
		Size:       utils.FormatBytes(e.Size),
		Category:   s.classifier.Classify(e.Name, originOf(e.Name), pageOrigin, ""),
		Behaviors:  s.mon.FlagsFor(e.Name),
		Dependency: s.tracker.GetDependencyInfo(e.Name),
	}
	rec.TrustScore = s.scorer.Score(rec)
	return rec
}

func (s *Scanner) wasmRecord(e page.ResourceEntry, index int) types.ScriptRecord {
	rec := types.ScriptRecord{
		ID:         id.Script(e.Name, string(types.TypeWASM), index),
		URL:        e.Name,
		Source:     types.SourceWASM,
		Type:       types.TypeWASM,
		Timing:     formatDuration(e),
		Size:       utils.FormatBytes(e.Size),
		Category:   types.CategorySuspicious,
		Behaviors:  s.mon.FlagsFor(e.Name),
		Dependency: s.tracker.GetDependencyInfo(e.Name),
	}
	rec.TrustScore = s.scorer.Score(rec)
	return rec
}

// feedTracker streams timing entries not yet observed into the
// tracker's passive-inference path. Only script-shaped entries join the
// timeline.
func (s *Scanner) feedTracker(timings []page.ResourceEntry) {
	for ; s.fed < len(timings); s.fed++ {
		e := timings[s.fed]
		if e.Initiator == "script" || jsURL.MatchString(e.Name) {
			s.tracker.ObserveResource(e.Name, e.Initiator == "script")
		}
	}
}

func formatDuration(e page.ResourceEntry) string {
	return fmt.Sprintf("%dms", e.Duration.Milliseconds())
}

// originOf extracts scheme://host from a URL, degrading to the raw
// string when it does not parse.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

// sourceOf decides first versus third party by registrable domain, so
// assets.example.com counts as first party on www.example.com. URLs
// without a host (relative, inline identities) are first party.
func sourceOf(rawURL, pageOrigin string) types.Source {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return types.SourceFirstParty
	}
	p, err := url.Parse(pageOrigin)
	if err != nil || p.Host == "" {
		return types.SourceThirdParty
	}

	scriptDomain, err1 := publicsuffix.Domain(u.Hostname())
	pageDomain, err2 := publicsuffix.Domain(p.Hostname())
	if err1 != nil || err2 != nil {
		if u.Hostname() == p.Hostname() {
			return types.SourceFirstParty
		}
		return types.SourceThirdParty
	}

	if scriptDomain == pageDomain {
		return types.SourceFirstParty
	}
	return types.SourceThirdParty
}
