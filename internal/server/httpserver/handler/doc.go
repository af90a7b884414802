// Package handler provides the HTTP request handlers for sessionguard.
//
//   - auth.go: register, login, logout, account info, password change
//   - health.go: liveness and readiness checks
//
// Handlers parse the request, call AccountService and write the standard
// response envelope. Authentication is enforced by middleware before a
// handler runs; handlers read the caller from identity.FromContext.
package handler
