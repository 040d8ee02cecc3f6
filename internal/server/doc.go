// Package server assembles the HTTP service: configuration, metrics,
// middleware, the session manager, REST handlers, and the WebSocket
// stream are wired here and nowhere else.
package server
