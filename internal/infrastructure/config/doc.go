// Package config provides 12-factor configuration for the bridge server and CLI.
//
// Configuration is loaded from environment variables with sensible defaults.
// A YAML file passed on the command line is applied on top.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, CORS origins)
//   - Bridge: dispatch concurrency, console hook, call timeout
//   - Scripts: bootstrap script directory or URL
//   - Logging: log level and output format
//   - RateLimit: per-connection inbound frame limits
//   - Breaker: circuit breaker for outbound sends
//
// Environment Variables:
//   - PORT, HOST, ALLOWED_ORIGINS
//   - BRIDGE_MAX_DISPATCH, BRIDGE_CONSOLE_HOOK, BRIDGE_CALL_TIMEOUT
//   - BRIDGE_SCRIPT_DIR, BRIDGE_SCRIPT_URL, BRIDGE_SCRIPT_RETRIES, BRIDGE_SCRIPT_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_MPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - BREAKER_MAX_FAILURES, BREAKER_OPEN_TIMEOUT
package config
