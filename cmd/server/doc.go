// Package main is the entry point for the script governance server.
//
// The server hosts page analysis sessions: each session loads an HTML
// document into a sandboxed JavaScript runtime whose capability
// surfaces (storage, network, timers, WASM, canvas, WebGL, audio,
// script insertion) are intercepted, classified, and scored.
//
// The server provides:
//   - REST API for session lifecycle and script analysis
//   - WebSocket streaming for permission prompts and live events
//   - Per-script delay rules released by user interaction, scroll, or time
//   - Prometheus metrics
//   - Rate limiting and CORS
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
