package page

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/scriptwarden/scriptwarden/internal/logging"
	"github.com/scriptwarden/scriptwarden/internal/shared/id"
	"github.com/scriptwarden/scriptwarden/internal/shared/types"
)

// Capability-denial errors raised into the VM. These are the intended
// enforcement mechanism; every other failure is absorbed locally.
var (
	ErrWebRTCDenied = errors.New("WebRTC access denied by user")
	ErrWASMDenied   = errors.New("WebAssembly instantiation denied by user")
)

// ScriptError records a script that failed to fetch or execute. Page
// execution continues past it.
type ScriptError struct {
	Identity string
	Err      error
}

type listener struct {
	fn   func()
	once bool
}

// Page is one analyzed page context: a goja VM, a document tree, a
// resource-timing feed, and the guarded capability surface page scripts
// run against. One instance per session; never shared across sessions.
type Page struct {
	vm       *goja.Runtime
	config   Config
	document *Document
	resolver CallerResolver
	fetcher  Fetcher
	log      *logging.Logger

	// mu serializes VM turns. The VM itself is single-threaded; this
	// mutex is the Go-side equivalent of the page's turn-based loop.
	mu sync.Mutex

	guards struct {
		storage []StorageGuard
		frame   []FrameGuard
		network []NetworkGuard
		timer   []TimerGuard
		wasm    []WASMGuard
		canvas  []CanvasGuard
		webgl   []WebGLGuard
		audio   []AudioGuard
		script  []ScriptGuard
	}

	localStorage   map[string]string
	sessionStorage map[string]string

	timingMu sync.RWMutex
	timings  []ResourceEntry

	consoleMu sync.Mutex
	console   []LogEntry

	listenerMu sync.Mutex
	listeners  map[string][]listener

	elObjs map[*Element]*goja.Object
	objEls map[*goja.Object]*Element

	executing   []string // identity stack of currently running scripts
	interrupts  []*interruptState
	runCtx      context.Context
	baseCtx     context.Context
	cancel      context.CancelFunc
	nextTimerID int64
	errs        []ScriptError
}

// interruptState is one script's execution-timeout clock. The clock
// stops while the script is suspended at a permission gate; user think
// time never counts against the script's budget.
type interruptState struct {
	timer     *time.Timer
	remaining time.Duration
	started   time.Time
	fired     bool
}

// New creates a page context. fetcher may be nil, in which case external
// scripts are discovered but never executed.
func New(cfg Config, fetcher Fetcher, log *logging.Logger) (*Page, error) {
	if log == nil {
		log = logging.NewDefault()
	}
	if cfg.ScriptTimeout <= 0 {
		cfg.ScriptTimeout = 5 * time.Second
	}

	vm := goja.New()
	if cfg.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(cfg.MaxCallStack)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	p := &Page{
		vm:             vm,
		config:         cfg,
		document:       NewDocument(),
		fetcher:        fetcher,
		log:            log,
		localStorage:   make(map[string]string),
		sessionStorage: make(map[string]string),
		listeners:      make(map[string][]listener),
		elObjs:         make(map[*Element]*goja.Object),
		objEls:         make(map[*goja.Object]*Element),
		runCtx:         baseCtx,
		baseCtx:        baseCtx,
		cancel:         cancel,
	}
	p.resolver = &stackResolver{vm: vm}

	if err := p.setupGlobals(); err != nil {
		return nil, fmt.Errorf("failed to set up page globals: %w", err)
	}
	return p, nil
}

// AddGuard registers a component against every capability entry point it
// implements. Registration order matters for script guards: the first
// guard to hold a script wins, and later guards still observe the call.
func (p *Page) AddGuard(g interface{}) {
	if sg, ok := g.(StorageGuard); ok {
		p.guards.storage = append(p.guards.storage, sg)
	}
	if fg, ok := g.(FrameGuard); ok {
		p.guards.frame = append(p.guards.frame, fg)
	}
	if ng, ok := g.(NetworkGuard); ok {
		p.guards.network = append(p.guards.network, ng)
	}
	if tg, ok := g.(TimerGuard); ok {
		p.guards.timer = append(p.guards.timer, tg)
	}
	if wg, ok := g.(WASMGuard); ok {
		p.guards.wasm = append(p.guards.wasm, wg)
	}
	if cg, ok := g.(CanvasGuard); ok {
		p.guards.canvas = append(p.guards.canvas, cg)
	}
	if gg, ok := g.(WebGLGuard); ok {
		p.guards.webgl = append(p.guards.webgl, gg)
	}
	if ag, ok := g.(AudioGuard); ok {
		p.guards.audio = append(p.guards.audio, ag)
	}
	if scg, ok := g.(ScriptGuard); ok {
		p.guards.script = append(p.guards.script, scg)
	}
}

// Origin returns the page origin.
func (p *Page) Origin() string { return p.config.Origin }

// Document returns the page's element tree.
func (p *Page) Document() *Document { return p.document }

// Supports reports whether a capability family is present on this page.
func (p *Page) Supports(capability string) bool {
	switch capability {
	case "webrtc":
		return p.config.EnableWebRTC
	case "wasm":
		return p.config.EnableWASM
	case "canvas":
		return p.config.EnableCanvas
	case "webgl":
		return p.config.EnableWebGL
	case "audio":
		return p.config.EnableAudio
	}
	return true
}

// Run executes the document's parser-inserted scripts in document order.
// Individual script failures are recorded and skipped; only a cancelled
// context aborts the pass. ctx governs this pass only; everything after
// Run returns (held-script replay, dynamic loads, permission gates) runs
// against the page's own lifetime, which ends at Close.
func (p *Page) Run(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.runCtx = ctx
	defer func() { p.runCtx = p.baseCtx }()
	scripts := p.document.Scripts()
	for _, el := range scripts {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.runScriptElement(el, "parser")
	}
	return nil
}

// Close ends the page's lifetime. In-flight fetches and permission
// gates observe the cancellation; the page performs no VM work after.
func (p *Page) Close() {
	p.cancel()
}

// Errors returns scripts that failed to fetch or execute so far.
func (p *Page) Errors() []ScriptError {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ScriptError, len(p.errs))
	copy(out, p.errs)
	return out
}

// runScriptElement fetches (if external) and executes one script
// element. Caller holds p.mu.
func (p *Page) runScriptElement(el *Element, initiator string) {
	switch {
	case el.Src != "":
		p.loadExternal(el.Src, initiator)
	case el.TextContent != "":
		identity := id.Inline(el.TextContent)
		p.runSource(identity, el.TextContent)
	}
}

// loadExternal fetches a script body, records its resource-timing entry,
// and executes it under its URL so stack frames carry the identity.
func (p *Page) loadExternal(url, initiator string) {
	if p.fetcher == nil {
		p.RecordTiming(ResourceEntry{Name: url, Initiator: initiator})
		return
	}

	start := time.Now()
	body, _, err := p.fetcher.Fetch(p.runCtx, url)
	p.RecordTiming(ResourceEntry{
		Name:      url,
		Initiator: initiator,
		Duration:  time.Since(start),
		Size:      int64(len(body)),
	})
	if err != nil {
		p.errs = append(p.errs, ScriptError{Identity: url, Err: err})
		p.log.Warn("script fetch failed", zap.String("url", url), zap.Error(err))
		return
	}
	p.runSource(url, string(body))
}

// runSource executes script text under the given identity with the
// configured timeout. Execution errors never propagate to the harness.
func (p *Page) runSource(identity, source string) {
	p.executing = append(p.executing, identity)
	defer func() { p.executing = p.executing[:len(p.executing)-1] }()

	p.pushInterrupt()
	defer p.popInterrupt()

	if _, err := p.vm.RunScript(identity, source); err != nil {
		p.errs = append(p.errs, ScriptError{Identity: identity, Err: err})
		p.log.Debug("script error", zap.String("script", identity), zap.Error(err))
	}
}

// pushInterrupt arms the execution-timeout clock for the script entering
// the VM. Called on the VM goroutine under p.mu, as are the other
// interrupt-stack operations.
func (p *Page) pushInterrupt() {
	st := &interruptState{
		remaining: p.config.ScriptTimeout,
		started:   time.Now(),
	}
	st.timer = time.AfterFunc(st.remaining, func() {
		p.vm.Interrupt("execution timeout exceeded")
	})
	p.interrupts = append(p.interrupts, st)
}

func (p *Page) popInterrupt() {
	n := len(p.interrupts)
	st := p.interrupts[n-1]
	p.interrupts = p.interrupts[:n-1]
	st.timer.Stop()
	p.vm.ClearInterrupt()
}

// pauseInterrupts stops every armed clock while the current script is
// logically suspended at a permission gate.
func (p *Page) pauseInterrupts() {
	now := time.Now()
	for _, st := range p.interrupts {
		if st.fired {
			continue
		}
		if !st.timer.Stop() {
			st.fired = true
			continue
		}
		st.remaining -= now.Sub(st.started)
		if st.remaining < 0 {
			st.remaining = 0
		}
	}
}

func (p *Page) resumeInterrupts() {
	now := time.Now()
	for _, st := range p.interrupts {
		if st.fired {
			continue
		}
		st.started = now
		st.timer.Reset(st.remaining)
	}
}

// currentIdentity resolves the identity of the script on whose turn we
// are executing: the explicit execution stack if available, else the VM
// call stack, else the unknown sentinel.
func (p *Page) currentIdentity() string {
	if n := len(p.executing); n > 0 {
		return p.executing[n-1]
	}
	return p.resolver.Identify()
}

// callerIdentity attributes a capability call via the VM call stack,
// falling back to the execution stack.
func (p *Page) callerIdentity() string {
	identity := p.resolver.Identify()
	if identity == types.IdentityUnknown {
		if n := len(p.executing); n > 0 {
			return p.executing[n-1]
		}
	}
	return identity
}

// RecordTiming appends one entry to the resource-timing feed.
func (p *Page) RecordTiming(entry ResourceEntry) {
	p.timingMu.Lock()
	p.timings = append(p.timings, entry)
	p.timingMu.Unlock()
}

// Timings returns a snapshot of the resource-timing feed.
func (p *Page) Timings() []ResourceEntry {
	p.timingMu.RLock()
	defer p.timingMu.RUnlock()
	out := make([]ResourceEntry, len(p.timings))
	copy(out, p.timings)
	return out
}

// Console returns captured console output.
func (p *Page) Console() []LogEntry {
	p.consoleMu.Lock()
	defer p.consoleMu.Unlock()
	out := make([]LogEntry, len(p.console))
	copy(out, p.console)
	return out
}

// AddEventListener registers a Go-side listener for a page event.
func (p *Page) AddEventListener(event string, once bool, fn func()) {
	p.listenerMu.Lock()
	p.listeners[event] = append(p.listeners[event], listener{fn: fn, once: once})
	p.listenerMu.Unlock()
}

// DispatchClick fires the page's click event.
func (p *Page) DispatchClick() { p.dispatch("click") }

// DispatchScroll fires the page's scroll event.
func (p *Page) DispatchScroll() { p.dispatch("scroll") }

func (p *Page) dispatch(event string) {
	p.listenerMu.Lock()
	current := p.listeners[event]
	kept := current[:0]
	var fire []func()
	for _, l := range current {
		fire = append(fire, l.fn)
		if !l.once {
			kept = append(kept, l)
		}
	}
	p.listeners[event] = kept
	p.listenerMu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

// ----------------------------------------------------------------------
// Guarded capability entry points. Each resolves the caller identity,
// consults every registered guard, then performs the native effect.
// ----------------------------------------------------------------------

func (p *Page) storageRead(store map[string]string, key string) (string, bool) {
	caller := p.callerIdentity()
	for _, g := range p.guards.storage {
		g.StorageRead(caller, key)
	}
	v, ok := store[key]
	return v, ok
}

func (p *Page) storageWrite(store map[string]string, key, value string) {
	caller := p.callerIdentity()
	for _, g := range p.guards.storage {
		g.StorageWrite(caller, key)
	}
	store[key] = value
}

func (p *Page) beaconSent(url string) {
	caller := p.callerIdentity()
	for _, g := range p.guards.network {
		g.BeaconSent(caller, url)
	}
}

func (p *Page) peerConnectionOpened() error {
	caller := p.callerIdentity()
	p.pauseInterrupts()
	defer p.resumeInterrupts()
	for _, g := range p.guards.network {
		if err := g.PeerConnectionOpened(p.runCtx, caller); err != nil {
			return err
		}
	}
	return nil
}

func (p *Page) intervalScheduled() {
	caller := p.callerIdentity()
	for _, g := range p.guards.timer {
		g.IntervalScheduled(caller)
	}
}

func (p *Page) wasmInstantiated() error {
	caller := p.callerIdentity()
	p.pauseInterrupts()
	defer p.resumeInterrupts()
	for _, g := range p.guards.wasm {
		if err := g.ModuleInstantiated(p.runCtx, caller); err != nil {
			return err
		}
	}
	return nil
}

func (p *Page) canvasRead() bool {
	caller := p.callerIdentity()
	p.pauseInterrupts()
	defer p.resumeInterrupts()
	allowed := true
	for _, g := range p.guards.canvas {
		if !g.CanvasRead(p.runCtx, caller) {
			allowed = false
		}
	}
	return allowed
}

func (p *Page) webglParameterQueried(pname int) {
	caller := p.callerIdentity()
	for _, g := range p.guards.webgl {
		g.WebGLParameterQueried(caller, pname)
	}
}

func (p *Page) audioContextCreated() {
	caller := p.callerIdentity()
	for _, g := range p.guards.audio {
		g.AudioContextCreated(caller)
	}
}

// scriptSourceSet runs the src-assignment entry point: guards first,
// native effect only when nothing holds the script.
func (p *Page) scriptSourceSet(el *Element, src string) {
	caller := el.Creator
	if caller == "" {
		caller = p.callerIdentity()
	}

	hold := false
	for _, g := range p.guards.script {
		if g.ScriptSourceAssigned(el, src, caller) {
			hold = true
		}
	}
	if hold {
		return
	}
	p.applySource(el, src)
}

// attach runs the append/insert-before entry point.
func (p *Page) attach(op AttachOp, el, parent, ref *Element) {
	if el.IsScript() {
		caller := p.callerIdentity()
		hold := false
		for _, g := range p.guards.script {
			if g.ScriptAttached(op, el, parent, ref, caller) {
				hold = true
			}
		}
		if hold {
			return
		}
	}

	p.attachNative(op, el, parent, ref)

	if el.TagName == "iframe" {
		caller := p.callerIdentity()
		for _, g := range p.guards.frame {
			g.FrameAttached(caller, el)
		}
	}
}

// applySource performs the native src assignment. A script already in
// the document starts loading immediately; a detached one loads when it
// is attached, same as a live page.
func (p *Page) applySource(el *Element, src string) {
	el.Src = src
	el.Attributes["src"] = src
	if el.Attached {
		p.loadExternal(src, "script")
	}
}

func (p *Page) attachNative(op AttachOp, el, parent, ref *Element) {
	if op == OpInsertBefore {
		parent.InsertBefore(el, ref)
	} else {
		parent.AddChild(el)
	}
	if el.IsScript() {
		if el.Src != "" {
			p.loadExternal(el.Src, "script")
		} else if el.TextContent != "" {
			p.runSource(id.Inline(el.TextContent), el.TextContent)
		}
	}
}

// ----------------------------------------------------------------------
// Natives: unguarded replay operations for the timing controller.
// ----------------------------------------------------------------------

type natives struct{ p *Page }

// Natives returns the unguarded script operations used to replay a held
// script. They take the page's turn lock themselves.
func (p *Page) Natives() Natives { return natives{p} }

func (n natives) ApplySource(el *Element, src string) {
	n.p.mu.Lock()
	defer n.p.mu.Unlock()
	n.p.applySource(el, src)
}

func (n natives) Append(parent, el *Element) {
	n.p.mu.Lock()
	defer n.p.mu.Unlock()
	n.p.attachNative(OpAppend, el, parent, nil)
}

func (n natives) InsertBefore(parent, el, ref *Element) {
	n.p.mu.Lock()
	defer n.p.mu.Unlock()
	n.p.attachNative(OpInsertBefore, el, parent, ref)
}
