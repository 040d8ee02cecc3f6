package timing

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scriptwarden/scriptwarden/internal/logging"
	"github.com/scriptwarden/scriptwarden/internal/monitoring"
	"github.com/scriptwarden/scriptwarden/internal/page"
	"github.com/scriptwarden/scriptwarden/internal/shared/id"
	"github.com/scriptwarden/scriptwarden/internal/shared/types"
)

// defaultDelaySeconds is the countdown for time rules that omit one.
const defaultDelaySeconds = 5

// heldScript records one suppressed script operation so it can be
// replayed verbatim when its trigger fires.
type heldScript struct {
	op      page.AttachOp
	el      *page.Element
	parent  *page.Element
	ref     *page.Element
	src     string
	caller  string
	ruleKey string
	heldAt  time.Time
}

// Controller defers script execution according to configured delay
// rules. It registers as a script guard: any src assignment or
// attachment whose URL matches a rule with an unsatisfied trigger is
// held, then replayed through the page's unguarded natives once the
// trigger fires. Triggers that already fired let matching scripts run
// untouched.
type Controller struct {
	log     *logging.Logger
	metrics *monitoring.Metrics
	natives page.Natives

	mu         sync.Mutex
	rules      map[string]types.DelayRule
	held       []*heldScript
	interacted bool
	scrolled   bool
	elapsed    map[string]bool
	timers     []*time.Timer
}

// New creates a timing controller. Bind must be called before the page
// runs for holds to take effect.
func New(log *logging.Logger, metrics *monitoring.Metrics) *Controller {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Controller{
		log:     log.Component("timing"),
		metrics: metrics,
		rules:   make(map[string]types.DelayRule),
		elapsed: make(map[string]bool),
	}
}

// Bind attaches the controller to a page: it registers as a script
// guard and subscribes to the first interaction and scroll events.
func (c *Controller) Bind(pg *page.Page) {
	c.natives = pg.Natives()
	pg.AddGuard(c)
	pg.AddEventListener("click", true, c.Interacted)
	pg.AddEventListener("scroll", true, c.Scrolled)
}

// SetRules replaces the delay rule set. Time-based rules start their
// countdown immediately; a countdown that completes marks the rule
// elapsed so scripts arriving afterwards run without delay.
func (c *Controller) SetRules(rules map[string]types.DelayRule) {
	c.mu.Lock()
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	c.rules = make(map[string]types.DelayRule, len(rules))
	c.elapsed = make(map[string]bool)
	for key, rule := range rules {
		c.rules[key] = rule
		if rule.Type == types.DelayTime {
			key := key
			seconds := rule.Seconds
			if seconds <= 0 {
				seconds = defaultDelaySeconds
			}
			d := time.Duration(seconds) * time.Second
			c.timers = append(c.timers, time.AfterFunc(d, func() {
				c.timeElapsed(key)
			}))
		}
	}
	c.mu.Unlock()

	c.log.Info("delay rules configured", zap.Int("count", len(rules)))
}

// Rules returns a snapshot of the configured delay rules.
func (c *Controller) Rules() map[string]types.DelayRule {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]types.DelayRule, len(c.rules))
	for k, v := range c.rules {
		out[k] = v
	}
	return out
}

// Held returns the URLs currently held, oldest first.
func (c *Controller) Held() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.held))
	for _, h := range c.held {
		out = append(out, h.src)
	}
	return out
}

// ScriptSourceAssigned implements page.ScriptGuard.
func (c *Controller) ScriptSourceAssigned(el *page.Element, src, caller string) bool {
	return c.maybeHold(&heldScript{op: page.OpSource, el: el, src: src, caller: caller})
}

// ScriptAttached implements page.ScriptGuard. Only external scripts
// are ever held; inline attachments pass through.
func (c *Controller) ScriptAttached(op page.AttachOp, el, parent, ref *page.Element, caller string) bool {
	if el.Src == "" {
		return false
	}
	return c.maybeHold(&heldScript{op: op, el: el, parent: parent, ref: ref, src: el.Src, caller: caller})
}

func (c *Controller) maybeHold(h *heldScript) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, rule, ok := c.matchLocked(h.src)
	if !ok || c.satisfiedLocked(key, rule) {
		return false
	}

	h.ruleKey = key
	h.heldAt = time.Now()
	c.held = append(c.held, h)
	c.metrics.ScriptHeld()
	c.log.Info("script held",
		zap.String("url", h.src),
		zap.String("caller", h.caller),
		zap.String("op", string(h.op)),
		zap.String("trigger", string(rule.Type)))
	return true
}

// matchLocked finds the rule governing a script URL. Rule keys are
// script discovery IDs, which embed a hash of the URL, so the ID match
// is tried first; plain substring matching in both directions covers
// rules keyed by raw URL fragments.
func (c *Controller) matchLocked(src string) (string, types.DelayRule, bool) {
	hash := id.Hash(src)
	for key, rule := range c.rules {
		if strings.Contains(key, hash) {
			return key, rule, true
		}
	}
	for key, rule := range c.rules {
		if strings.Contains(src, key) || strings.Contains(key, src) {
			return key, rule, true
		}
	}
	return "", types.DelayRule{}, false
}

func (c *Controller) satisfiedLocked(key string, rule types.DelayRule) bool {
	switch rule.Type {
	case types.DelayInteraction:
		return c.interacted
	case types.DelayScroll:
		return c.scrolled
	case types.DelayTime:
		return c.elapsed[key]
	}
	return true
}

// Interacted marks the first user interaction and releases scripts
// waiting on it.
func (c *Controller) Interacted() {
	c.mu.Lock()
	c.interacted = true
	batch := c.takeLocked(func(h *heldScript) bool {
		return c.rules[h.ruleKey].Type == types.DelayInteraction
	})
	c.mu.Unlock()
	c.release("interaction", batch)
}

// Scrolled marks the first scroll and releases scripts waiting on it.
func (c *Controller) Scrolled() {
	c.mu.Lock()
	c.scrolled = true
	batch := c.takeLocked(func(h *heldScript) bool {
		return c.rules[h.ruleKey].Type == types.DelayScroll
	})
	c.mu.Unlock()
	c.release("scroll", batch)
}

func (c *Controller) timeElapsed(key string) {
	c.mu.Lock()
	c.elapsed[key] = true
	batch := c.takeLocked(func(h *heldScript) bool {
		return h.ruleKey == key
	})
	c.mu.Unlock()
	c.release("time", batch)
}

// takeLocked removes and returns every held script matching the
// predicate. Removal before replay keeps release idempotent even if a
// trigger fires twice.
func (c *Controller) takeLocked(match func(*heldScript) bool) []*heldScript {
	var batch []*heldScript
	kept := c.held[:0]
	for _, h := range c.held {
		if match(h) {
			batch = append(batch, h)
		} else {
			kept = append(kept, h)
		}
	}
	c.held = kept
	return batch
}

// release replays held operations through the page's unguarded
// natives, outside the controller lock.
func (c *Controller) release(trigger string, batch []*heldScript) {
	for _, h := range batch {
		c.log.Info("script released",
			zap.String("url", h.src),
			zap.String("trigger", trigger),
			zap.Duration("held_for", time.Since(h.heldAt)))
		c.metrics.ScriptReleased()

		switch h.op {
		case page.OpSource:
			c.natives.ApplySource(h.el, h.src)
		case page.OpAppend:
			c.natives.Append(h.parent, h.el)
		case page.OpInsertBefore:
			c.natives.InsertBefore(h.parent, h.el, h.ref)
		}
	}
}

// Stop cancels pending time triggers. Held scripts stay held.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
}
