package service

import (
	"context"

	"github.com/yndnr/sessionguard/internal/core/domain"
)

// SessionStorage is the session store the login flow and the request
// pipeline run against. It owns each session's deadline.
type SessionStorage interface {
	// Create stores a new session.
	Create(ctx context.Context, session *domain.Session) error

	// Get returns a live session. Unknown and expired sessions yield
	// domain.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// SetDeadline moves the session's absolute deadline (Unix milliseconds).
	SetDeadline(ctx context.Context, id string, expiresAt int64) error

	// Invalidate destroys the session.
	Invalidate(ctx context.Context, id string) error
}

// DestroyListener is notified once for every session storage drops.
type DestroyListener func(sessionID string, cause domain.DestroyCause)

// DestroyNotifier is implemented by session storage that reports destruction.
type DestroyNotifier interface {
	OnDestroy(listener DestroyListener)
}

// IdentityRegistry is the subset of identity.Store the services depend on.
type IdentityRegistry interface {
	Bind(ctx context.Context, accountID, token string, session *domain.Session) error
	Unbind(session *domain.Session) bool
	UnbindBySessionID(sessionID string) bool
	ResolveSessionIDByToken(token string) (string, bool)
	CurrentSessionID(accountID string) (string, bool)
	IsCurrent(session *domain.Session) bool
}

// AccountRepository defines the storage interface for accounts.
type AccountRepository interface {
	// Create stores a new account. Duplicate usernames yield domain.ErrAccountConflict.
	Create(ctx context.Context, account *domain.Account) error

	// Get retrieves an account by ID.
	Get(ctx context.Context, id string) (*domain.Account, error)

	// GetByUsername retrieves an account by username.
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)

	// UpdatePassword replaces the password hash of an account.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Recorder receives counters from the services. telemetry/metric implements it.
type Recorder interface {
	RecordLogin(result string)
	RecordRejection(reason domain.RejectReason)
	RecordRefresh()
	RecordEviction()
	RecordReaped(cause domain.DestroyCause, unbound bool)
}

// Login results passed to Recorder.RecordLogin.
const (
	LoginSuccess     = "success"
	LoginFailed      = "failed"
	LoginRateLimited = "rate_limited"
)

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordLogin(string) {}
func (NopRecorder) RecordRejection(domain.RejectReason) {}
func (NopRecorder) RecordRefresh() {}
func (NopRecorder) RecordEviction() {}
func (NopRecorder) RecordReaped(domain.DestroyCause, bool) {}
