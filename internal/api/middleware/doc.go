// Package middleware provides the HTTP middleware stack for the
// governance API: CORS for cross-origin dashboard access and per-IP
// token bucket rate limiting.
package middleware
