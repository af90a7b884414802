package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/yndnr/sessionguard/internal/core/domain"
)

// DefaultSessionWindow is the inactivity window applied when none is configured.
const DefaultSessionWindow = 20 * time.Minute

// DeadlineSetter moves a session's deadline.
type DeadlineSetter interface {
	SetDeadline(ctx context.Context, id string, expiresAt int64) error
}

// ExpiryRefresherConfig holds configuration for ExpiryRefresher.
type ExpiryRefresherConfig struct {
	// Window is the full inactivity window a refresh restores.
	Window time.Duration

	// Now returns the current time (default: time.Now).
	Now func() time.Time

	Recorder Recorder
	Logger   *slog.Logger
}

// ExpiryRefresher implements sliding expiration: once a session has less
// than a third of its window left, its deadline is pushed back to a full
// window from now.
type ExpiryRefresher struct {
	storage  DeadlineSetter
	window   time.Duration
	now      func() time.Time
	recorder Recorder
	logger   *slog.Logger
}

// NewExpiryRefresher creates an ExpiryRefresher.
func NewExpiryRefresher(storage DeadlineSetter, cfg ExpiryRefresherConfig) *ExpiryRefresher {
	r := &ExpiryRefresher{
		storage:  storage,
		window:   cfg.Window,
		now:      cfg.Now,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
	if r.window <= 0 {
		r.window = DefaultSessionWindow
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.recorder == nil {
		r.recorder = NopRecorder{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Window returns the configured inactivity window.
func (r *ExpiryRefresher) Window() time.Duration {
	return r.window
}

// Threshold returns the remaining lifetime below which a refresh happens.
func (r *ExpiryRefresher) Threshold() time.Duration {
	return r.window / 3
}

// Refresh extends session when its remaining lifetime is strictly below the
// threshold. A nil session, or one storage no longer knows, is ignored.
// On success the deadline of the passed session is updated as well.
func (r *ExpiryRefresher) Refresh(ctx context.Context, session *domain.Session) bool {
	if session == nil {
		return false
	}

	now := r.now()
	if session.Remaining(now) >= r.Threshold() {
		return false
	}

	deadline := now.Add(r.window).UnixMilli()
	if err := r.storage.SetDeadline(ctx, session.ID, deadline); err != nil {
		r.logger.Debug("session refresh skipped", "session_id", session.ID, "error", err)
		return false
	}

	session.ExpiresAt = deadline
	r.recorder.RecordRefresh()
	return true
}
