// Package logger builds the structured loggers of sessionguard.
//
// Every logger from New shares one process-wide level that the config
// watcher can move at runtime. Session tokens and values under secret-looking
// keys are masked before output, and records logged with a request context
// carry that request's ID and attached session ID.
//
//   - logger.go: handler construction, output formats, dynamic level
//   - context.go: request and session ID propagation into records
//   - redact.go: masking of session tokens and sensitive keys
package logger
