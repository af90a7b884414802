// Package service provides the request-time identity services of sessionguard.
//
// AuthGate decides whether a request may reach a protected handler.
// ExpiryRefresher slides session deadlines forward on activity.
// LifecycleReaper drops identity bindings of sessions storage destroyed.
// AccountService runs registration, login, logout and password changes,
// and is the only component that binds identities.
package service
