// Package identity holds the process-wide registry of live logins and the
// per-request principal slot.
//
// Store keeps four tables (account to session, session to account, token
// to session, session to token) behind one mutex and guarantees that each
// account has at most one bound session. Binding a new session for an
// account evicts the old one in the same critical section.
//
// Slot carries the authenticated Principal for a single request through
// its context. Begin opens a slot, and the caller must Clear it when the
// request ends.
package identity
