package page

import (
	"strings"
	"time"

	"github.com/dop251/goja"
)

// WebGL parameter codes for unmasked vendor/renderer queries. These two
// are the fingerprinting-relevant ones; all other codes pass through
// unflagged.
const (
	glUnmaskedVendor   = 37445
	glUnmaskedRenderer = 37446
)

// setupGlobals installs the page's capability surface into the VM. Every
// entry point funnels through the guarded methods on Page, which is what
// makes interception structural rather than monkey-patched.
func (p *Page) setupGlobals() error {
	vm := p.vm

	// Node-style globals have no place on a page.
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())

	if p.config.EnableConsole {
		console := vm.NewObject()
		for _, level := range []string{"log", "warn", "error", "info"} {
			console.Set(level, p.makeConsoleFunc(level))
		}
		vm.Set("console", console)
	}

	p.setupStorage()
	p.setupDocument()
	p.setupNavigator()
	p.setupTimers()
	p.setupLocation()

	if p.config.EnableWebRTC {
		p.setupWebRTC()
	}
	if p.config.EnableWASM {
		p.setupWASM()
	}
	if p.config.EnableAudio {
		p.setupAudio()
	}

	// window aliases the global object.
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	return nil
}

func (p *Page) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var sb strings.Builder
		for i, arg := range call.Arguments {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(arg.String())
		}

		p.consoleMu.Lock()
		p.console = append(p.console, LogEntry{
			Level:   level,
			Message: sb.String(),
			Script:  p.currentIdentity(),
			Time:    time.Now(),
		})
		p.consoleMu.Unlock()
		return goja.Undefined()
	}
}

func (p *Page) setupStorage() {
	p.vm.Set("localStorage", p.storageObject(p.localStorage))
	p.vm.Set("sessionStorage", p.storageObject(p.sessionStorage))
}

func (p *Page) storageObject(store map[string]string) *goja.Object {
	obj := p.vm.NewObject()
	obj.Set("getItem", func(key string) goja.Value {
		v, ok := p.storageRead(store, key)
		if !ok {
			return goja.Null()
		}
		return p.vm.ToValue(v)
	})
	obj.Set("setItem", func(key, value string) {
		p.storageWrite(store, key, value)
	})
	obj.Set("removeItem", func(key string) {
		delete(store, key)
	})
	obj.Set("clear", func() {
		for k := range store {
			delete(store, k)
		}
	})
	return obj
}

func (p *Page) setupDocument() {
	vm := p.vm
	doc := vm.NewObject()

	doc.Set("createElement", func(tag string) goja.Value {
		el := p.document.NewElement(tag)
		if el.IsScript() {
			el.Creator = p.currentIdentity()
		}
		return p.elementObject(el)
	})

	doc.Set("getElementById", func(id string) goja.Value {
		found := p.document.Query("#" + id)
		if len(found) == 0 {
			return goja.Null()
		}
		return p.elementObject(found[0])
	})

	doc.Set("querySelector", func(selector string) goja.Value {
		found := p.document.Query(selector)
		if len(found) == 0 {
			return goja.Null()
		}
		return p.elementObject(found[0])
	})

	doc.Set("querySelectorAll", func(selector string) goja.Value {
		found := p.document.Query(selector)
		objs := make([]interface{}, len(found))
		for i, el := range found {
			objs[i] = p.elementObject(el)
		}
		return vm.ToValue(objs)
	})

	doc.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		event := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			return goja.Undefined()
		}
		once := false
		if opts, isObj := call.Argument(2).(*goja.Object); isObj {
			once = opts.Get("once") != nil && opts.Get("once").ToBoolean()
		}
		p.AddEventListener(event, once, func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if _, err := fn(goja.Undefined()); err != nil {
				p.log.Debug("event listener error")
			}
		})
		return goja.Undefined()
	})

	doc.DefineAccessorProperty("body",
		vm.ToValue(func(goja.FunctionCall) goja.Value { return p.elementObject(p.document.Body()) }),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	doc.DefineAccessorProperty("head",
		vm.ToValue(func(goja.FunctionCall) goja.Value { return p.elementObject(p.document.Head()) }),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	// currentScript carries the identity of the script whose turn it is,
	// which is the tracker's preferred parent-attribution source.
	doc.DefineAccessorProperty("currentScript",
		vm.ToValue(func(goja.FunctionCall) goja.Value {
			identity := p.currentIdentity()
			if identity == "" {
				return goja.Null()
			}
			cur := vm.NewObject()
			cur.Set("src", identity)
			return cur
		}),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	vm.Set("document", doc)
}

func (p *Page) setupNavigator() {
	vm := p.vm
	nav := vm.NewObject()
	nav.Set("userAgent", "Mozilla/5.0 (compatible; scriptwarden)")
	nav.Set("sendBeacon", func(url string) bool {
		p.beaconSent(url)
		p.RecordTiming(ResourceEntry{Name: url, Initiator: "beacon"})
		return true
	})
	vm.Set("navigator", nav)

	vm.Set("fetch", func(call goja.FunctionCall) goja.Value {
		url := call.Argument(0).String()
		if opts, ok := call.Argument(1).(*goja.Object); ok {
			if ka := opts.Get("keepalive"); ka != nil && ka.ToBoolean() {
				p.beaconSent(url)
			}
		}

		entry := ResourceEntry{Name: url, Initiator: "fetch"}
		var body []byte
		if p.fetcher != nil {
			start := time.Now()
			fetched, _, err := p.fetcher.Fetch(p.runCtx, url)
			entry.Duration = time.Since(start)
			if err == nil {
				body = fetched
				entry.Size = int64(len(body))
			}
		}
		p.RecordTiming(entry)

		resp := vm.NewObject()
		resp.Set("ok", true)
		resp.Set("status", 200)
		text := string(body)
		resp.Set("text", func() string { return text })
		return resp
	})
}

func (p *Page) setupTimers() {
	vm := p.vm

	// Timers never actually schedule: the page runs to completion on its
	// own turn, and counting is all the monitor needs.
	vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		p.intervalScheduled()
		p.nextTimerID++
		return vm.ToValue(p.nextTimerID)
	})
	vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		p.nextTimerID++
		return vm.ToValue(p.nextTimerID)
	})
	vm.Set("clearInterval", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
	vm.Set("clearTimeout", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
}

func (p *Page) setupLocation() {
	loc := p.vm.NewObject()
	loc.Set("origin", p.config.Origin)
	loc.Set("href", p.config.Origin+"/")
	p.vm.Set("location", loc)
}

func (p *Page) setupWebRTC() {
	p.vm.Set("RTCPeerConnection", func(call goja.ConstructorCall) *goja.Object {
		if err := p.peerConnectionOpened(); err != nil {
			panic(p.vm.NewGoError(err))
		}
		obj := call.This
		obj.Set("createDataChannel", func(label string) goja.Value {
			ch := p.vm.NewObject()
			ch.Set("label", label)
			return ch
		})
		obj.Set("createOffer", func() goja.Value { return p.vm.NewObject() })
		obj.Set("close", func() {})
		return obj
	})
}

func (p *Page) setupWASM() {
	vm := p.vm
	wasm := vm.NewObject()

	instantiate := func(call goja.FunctionCall) goja.Value {
		if err := p.wasmInstantiated(); err != nil {
			panic(vm.NewGoError(err))
		}
		if url, ok := call.Argument(0).Export().(string); ok {
			p.RecordTiming(ResourceEntry{Name: url, Initiator: "wasm"})
		}
		result := vm.NewObject()
		instance := vm.NewObject()
		instance.Set("exports", vm.NewObject())
		result.Set("instance", instance)
		result.Set("module", vm.NewObject())
		return result
	}

	wasm.Set("instantiate", instantiate)
	wasm.Set("instantiateStreaming", instantiate)
	vm.Set("WebAssembly", wasm)
}

func (p *Page) setupAudio() {
	ctor := func(call goja.ConstructorCall) *goja.Object {
		p.audioContextCreated()
		obj := call.This
		obj.Set("sampleRate", 44100)
		obj.Set("createOscillator", func() goja.Value { return p.vm.NewObject() })
		obj.Set("createAnalyser", func() goja.Value { return p.vm.NewObject() })
		obj.Set("close", func() {})
		return obj
	}
	p.vm.Set("AudioContext", ctor)
	p.vm.Set("webkitAudioContext", ctor)
}

// elementObject wraps an element for the VM, caching the wrapper so
// object identity is stable across lookups.
func (p *Page) elementObject(el *Element) *goja.Object {
	if el == nil {
		return nil
	}
	if obj, ok := p.elObjs[el]; ok {
		return obj
	}

	vm := p.vm
	obj := vm.NewObject()
	p.elObjs[el] = obj
	p.objEls[obj] = el

	obj.Set("tagName", strings.ToUpper(el.TagName))
	obj.Set("id", el.ID)
	obj.Set("className", el.ClassName)

	obj.Set("getAttribute", func(name string) goja.Value {
		if v, ok := el.Attributes[name]; ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	obj.Set("setAttribute", func(name, value string) {
		// src on a script element is a loading entry point, same as the
		// property setter; everything else is plain attribute state.
		if el.IsScript() && name == "src" {
			p.scriptSourceSet(el, value)
			return
		}
		el.SetAttribute(name, value)
	})

	obj.DefineAccessorProperty("textContent",
		vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(el.TextContent) }),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			el.TextContent = call.Argument(0).String()
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)

	if el.IsScript() {
		obj.DefineAccessorProperty("src",
			vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(el.Src) }),
			vm.ToValue(func(call goja.FunctionCall) goja.Value {
				p.scriptSourceSet(el, call.Argument(0).String())
				return goja.Undefined()
			}),
			goja.FLAG_FALSE, goja.FLAG_TRUE)
	}

	obj.Set("style", vm.NewDynamicObject(&styleObject{el: el, vm: vm}))

	obj.Set("appendChild", func(child goja.Value) goja.Value {
		childEl := p.lookupElement(child)
		if childEl != nil {
			p.attach(OpAppend, childEl, el, nil)
		}
		return child
	})
	obj.Set("insertBefore", func(newNode, ref goja.Value) goja.Value {
		newEl := p.lookupElement(newNode)
		refEl := p.lookupElement(ref)
		if newEl != nil {
			p.attach(OpInsertBefore, newEl, el, refEl)
		}
		return newNode
	})
	obj.Set("remove", func() { el.Remove() })

	if el.TagName == "canvas" && p.config.EnableCanvas {
		p.bindCanvas(obj)
	}

	return obj
}

func (p *Page) lookupElement(v goja.Value) *Element {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return p.objEls[obj]
}

// bindCanvas installs the pixel-extraction surface. Denied reads return
// innocuous empty results instead of raising: breaking a caller over a
// canvas read is worse than feeding it nothing.
func (p *Page) bindCanvas(obj *goja.Object) {
	vm := p.vm

	obj.Set("toDataURL", func(call goja.FunctionCall) goja.Value {
		if !p.canvasRead() {
			return vm.ToValue("data:,")
		}
		return vm.ToValue("data:image/png;base64,iVBORw0KGgo=")
	})

	obj.Set("getContext", func(kind string) goja.Value {
		switch kind {
		case "2d":
			ctx := vm.NewObject()
			ctx.Set("fillRect", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
			ctx.Set("fillText", func(call goja.FunctionCall) goja.Value { return goja.Undefined() })
			ctx.Set("getImageData", func(call goja.FunctionCall) goja.Value {
				data := vm.NewObject()
				if !p.canvasRead() {
					data.Set("width", 1)
					data.Set("height", 1)
					data.Set("data", vm.NewArray())
					return data
				}
				data.Set("width", 16)
				data.Set("height", 16)
				data.Set("data", vm.NewArray())
				return data
			})
			return ctx
		case "webgl", "experimental-webgl":
			if !p.config.EnableWebGL {
				return goja.Null()
			}
			ctx := vm.NewObject()
			ctx.Set("getParameter", func(pname int) goja.Value {
				p.webglParameterQueried(pname)
				switch pname {
				case glUnmaskedVendor:
					return vm.ToValue("Vendor Inc.")
				case glUnmaskedRenderer:
					return vm.ToValue("Generic Renderer")
				}
				return goja.Null()
			})
			return ctx
		}
		return goja.Null()
	})
}

// styleObject exposes an element's style map as a live JS object.
type styleObject struct {
	el *Element
	vm *goja.Runtime
}

func (s *styleObject) Get(key string) goja.Value {
	if v, ok := s.el.Style[key]; ok {
		return s.vm.ToValue(v)
	}
	return goja.Undefined()
}

func (s *styleObject) Set(key string, val goja.Value) bool {
	s.el.Style[key] = val.String()
	return true
}

func (s *styleObject) Has(key string) bool {
	_, ok := s.el.Style[key]
	return ok
}

func (s *styleObject) Delete(key string) bool {
	delete(s.el.Style, key)
	return true
}

func (s *styleObject) Keys() []string {
	keys := make([]string, 0, len(s.el.Style))
	for k := range s.el.Style {
		keys = append(keys, k)
	}
	return keys
}
