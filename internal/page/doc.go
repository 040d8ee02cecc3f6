/*
Package page hosts one analyzed page: a goja JavaScript runtime, a
lightweight document tree, and the capability surface page scripts
execute against.

# Overview

A live browser extension intercepts capability use by monkey-patching
globals. This port makes interception structural instead: the page's
capability entry points (storage, document mutation, timers, beacons,
WebRTC, WebAssembly, canvas, WebGL, audio) are installed here as native
Go functions, and every registered guard sees each call before the
native effect runs. A script executing inside the VM has no
uninstrumented path to a capability, because the facade is the only
implementation there is.

# Attribution

Each script runs under its identity (URL or inline-<hash>) as the goja
source name, so call-stack inspection recovers the calling script for
most synchronous paths. Attribution stays best-effort: a frame without a
usable source name degrades to the "unknown" sentinel rather than
failing.

# Guards

Components implement the guard interfaces in types.go and register with
AddGuard. Gated capabilities (WebRTC, WASM, canvas) may block the
executing script's goroutine while a permission decision is pending;
denial either raises into the VM (WebRTC, WASM) or substitutes a benign
stub (canvas).

# Concurrency

The VM is single-threaded. A mutex serializes turns: script execution,
event dispatch, and held-script replay all take it. The timing feed,
console buffer, and listener table carry their own small locks so
snapshot readers never block the VM.
*/
package page
