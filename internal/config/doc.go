// Package config provides 12-factor configuration management.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Fetch: External script fetching (toggle, rate)
//   - Permission: Interactive prompt defaults and timeout
//   - Page: Script runtime limits
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - FETCH_ENABLED, FETCH_RPS
//   - PERMISSION_PROMPT, PERMISSION_TIMEOUT_SECONDS
//   - SCRIPT_TIMEOUT_SECONDS, MAX_CALL_STACK
package config
