package service

import (
	"log/slog"

	"github.com/yndnr/sessionguard/internal/core/domain"
)

// LifecycleReaper purges identity bindings of sessions that storage has
// destroyed on its own, so no mapping outlives its session.
type LifecycleReaper struct {
	identities IdentityRegistry
	recorder   Recorder
	logger     *slog.Logger
}

// NewLifecycleReaper creates a LifecycleReaper. recorder and logger may be nil.
func NewLifecycleReaper(identities IdentityRegistry, recorder Recorder, logger *slog.Logger) *LifecycleReaper {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleReaper{
		identities: identities,
		recorder:   recorder,
		logger:     logger,
	}
}

// Attach subscribes the reaper to storage destruction events.
func (r *LifecycleReaper) Attach(src DestroyNotifier) {
	src.OnDestroy(r.OnSessionDestroyed)
}

// OnSessionDestroyed unbinds sessionID. Calling it for a session that was
// already evicted or logged out is a no-op.
func (r *LifecycleReaper) OnSessionDestroyed(sessionID string, cause domain.DestroyCause) {
	unbound := r.identities.UnbindBySessionID(sessionID)
	r.recorder.RecordReaped(cause, unbound)
	if unbound {
		r.logger.Debug("reaped identity binding", "session_id", sessionID, "cause", string(cause))
	}
}
