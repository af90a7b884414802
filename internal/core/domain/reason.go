package domain

import "errors"

// RejectReason names why a request failed validation.
// It is used for logs and metrics only and never sent to clients.
type RejectReason string

// Reject reasons, in the order the checks run.
const (
	ReasonNone              RejectReason = ""
	ReasonUnauthenticated   RejectReason = "unauthenticated"
	ReasonSessionExpired    RejectReason = "session_expired"
	ReasonTokenInvalid      RejectReason = "token_invalid"
	ReasonSupersededSession RejectReason = "superseded_session"
)

// ReasonOf maps a validation error to its RejectReason.
// Errors that are not rejections yield ReasonNone.
func ReasonOf(err error) RejectReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrUnauthenticated):
		return ReasonUnauthenticated
	case errors.Is(err, ErrSessionExpired):
		return ReasonSessionExpired
	case errors.Is(err, ErrTokenInvalid):
		return ReasonTokenInvalid
	case errors.Is(err, ErrSessionSuperseded):
		return ReasonSupersededSession
	default:
		return ReasonNone
	}
}

// IsRejection reports whether err is one of the four validation rejections.
func IsRejection(err error) bool {
	return ReasonOf(err) != ReasonNone
}

// DestroyCause tells why session storage dropped a session.
type DestroyCause string

const (
	// CauseExpired means the session's deadline passed.
	CauseExpired DestroyCause = "expired"
	// CauseInvalidated means someone called Invalidate (logout, eviction, password change).
	CauseInvalidated DestroyCause = "invalidated"
)
