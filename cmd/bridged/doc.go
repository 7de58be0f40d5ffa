// Package main is the entry point for the bridge server.
//
// The server accepts remote script environments over WebSocket (and over
// the gRPC pipe when a gRPC port is set), gives each one a bridge with the
// demo handlers, and injects the bootstrap scripts whenever the remote page
// becomes ready.
//
// Configuration:
//   - Environment variables (12-factor)
//   - An optional YAML file applied on top of the environment
//   - CLI flags (override both)
//
// Usage:
//
//	bridged --port 8000 --grpc-port 9000
//	bridged --config bridged.yaml --log-level debug
package main
