// Package http provides HTTP handlers and routing for the REST API.
//
// This package implements all HTTP endpoints using the Gin framework:
// session lifecycle, script scans, behavior flags, the dependency
// graph, permission responses, delay rules, and synthetic user events.
//
// Endpoints:
//   - Health: / and /health
//   - Sessions: /sessions, /sessions/:id
//   - Analysis: /sessions/:id/scripts, /sessions/:id/flags,
//     /sessions/:id/dependencies, /sessions/:id/dependencies/tree,
//     /sessions/:id/console, /sessions/:id/timings
//   - Control: /sessions/:id/permission-response,
//     /sessions/:id/settings/permission-prompt, /sessions/:id/delays,
//     /sessions/:id/events/click, /sessions/:id/events/scroll
//
// Example Usage:
//
//	handlers := http.NewHandlers(sessionMgr, logger)
//	router.GET("/health", handlers.Health)
//	router.POST("/sessions", handlers.CreateSession)
package http
