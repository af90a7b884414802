// Package main provides the entry point for sessionguard-server.
//
// sessionguard-server authenticates HTTP requests against in-memory
// sessions and keeps at most one active session per account: a new login
// evicts the previous one.
//
// Usage:
//
//	sessionguard-server [--config FILE] [--env-file FILE] [--set key=value ...] [command]
//	sessionguard-server --config /etc/sessionguard/config.yaml
//	sessionguard-server check-config --config config.yaml
//	sessionguard-server hash-password --stdin
//
// Build information is set via ldflags on the buildinfo package.
package main
