// Package domain defines the core domain models for sessionguard.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. This package contains:
//
//   - Session: server-side login record with a sliding deadline
//   - Principal: the authenticated identity captured at login
//   - Account: registered user with credentials and role
//   - Token: opaque credential generation and masking
//   - Errors: structured error codes, including the auth reject reasons
package domain
