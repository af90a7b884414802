package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionIDPrefix is the prefix for session IDs.
const SessionIDPrefix = "sgss-"

// Session is the server-side record of one login.
//
// The deadline (ExpiresAt) is owned by session storage and only moves
// forward through a sliding refresh. Token and Principal are fixed at
// login and never change afterwards.
type Session struct {
	// ID is the opaque session identifier.
	// Format: sgss-{ulid_lowercase}, 31 characters total.
	ID string `json:"id"`

	// Token is the credential bound to this session at login.
	Token string `json:"-"`

	// Principal is the identity snapshot captured at login.
	Principal Principal `json:"principal"`

	// IPAddress is the client IP at login.
	IPAddress string `json:"ip_address,omitempty"`

	// UserAgent is the client user agent at login.
	UserAgent string `json:"user_agent,omitempty"`

	// CreatedAt is the login timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// LastAccessAt is the last time storage handed the session out (Unix milliseconds).
	LastAccessAt int64 `json:"last_access_at"`

	// ExpiresAt is the absolute deadline (Unix milliseconds).
	ExpiresAt int64 `json:"expires_at"`
}

// NewSession creates a session for principal bound to token, expiring window after now.
func NewSession(principal Principal, token string, window time.Duration, now time.Time) (*Session, error) {
	id, err := GenerateSessionID(now)
	if err != nil {
		return nil, err
	}

	ms := now.UnixMilli()
	return &Session{
		ID:           id,
		Token:        token,
		Principal:    principal,
		CreatedAt:    ms,
		LastAccessAt: ms,
		ExpiresAt:    now.Add(window).UnixMilli(),
	}, nil
}

// GenerateSessionID generates a new session ID using ULID.
// Format: sgss-{ulid_lowercase}, 31 characters total.
func GenerateSessionID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return SessionIDPrefix + strings.ToLower(id.String()), nil
}

// IsValidSessionID checks if a string is a well-formed session ID.
func IsValidSessionID(id string) bool {
	if !strings.HasPrefix(id, SessionIDPrefix) || len(id) != len(SessionIDPrefix)+ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(id[len(SessionIDPrefix):]))
	return err == nil
}

// Remaining returns the lifetime left before the deadline, measured from now.
// It is negative once the deadline has passed.
func (s *Session) Remaining(now time.Time) time.Duration {
	return time.Duration(s.ExpiresAt-now.UnixMilli()) * time.Millisecond
}

// IsExpired reports whether the deadline has passed at now.
func (s *Session) IsExpired(now time.Time) bool {
	return now.UnixMilli() > s.ExpiresAt
}

// Validate checks the invariants a session must satisfy before storage accepts it.
func (s *Session) Validate() error {
	var violations []string
	if !IsValidSessionID(s.ID) {
		violations = append(violations, "id is malformed")
	}
	if s.Token == "" {
		violations = append(violations, "token is required")
	}
	if s.Principal.IsZero() {
		violations = append(violations, "principal is required")
	}
	if s.ExpiresAt <= 0 {
		violations = append(violations, "expires_at is required")
	}
	if len(violations) > 0 {
		return ErrSessionValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// Clone returns a copy of the session.
func (s *Session) Clone() *Session {
	clone := *s
	return &clone
}

// ExpiresAtTime returns ExpiresAt as time.Time.
func (s *Session) ExpiresAtTime() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}

// CreatedAtTime returns CreatedAt as time.Time.
func (s *Session) CreatedAtTime() time.Time {
	return time.UnixMilli(s.CreatedAt)
}
