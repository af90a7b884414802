package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/internal/core/service"
	"github.com/yndnr/sessionguard/pkg/cmap"
)

// DefaultSweepInterval is how often the background sweeper scans for
// expired sessions.
const DefaultSweepInterval = 30 * time.Second

// SessionStore keeps sessions in memory and expires them by deadline.
//
// Stored sessions are never mutated in place: every change swaps in a new
// copy, so values handed out by Get stay stable.
type SessionStore struct {
	// Primary index: SessionID -> Session
	sessions *cmap.Map[string, *domain.Session]

	// Secondary index: AccountID -> set of SessionIDs
	accounts *accountIndex

	listenersMu sync.RWMutex
	listeners   []service.DestroyListener

	now           func() time.Time
	logger        *slog.Logger
	sweepInterval time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Option configures the SessionStore.
type Option func(*SessionStore)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SessionStore) {
		s.logger = logger
	}
}

// WithSweepInterval sets the background sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(s *SessionStore) {
		s.sweepInterval = d
	}
}

// New creates an empty SessionStore.
func New(opts ...Option) *SessionStore {
	s := &SessionStore{
		sessions:      cmap.New[string, *domain.Session](),
		accounts:      newAccountIndex(),
		now:           time.Now,
		logger:        slog.Default(),
		sweepInterval: DefaultSweepInterval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// OnDestroy registers a listener called once for every destroyed session,
// after it has been removed and with no store lock held.
func (s *SessionStore) OnDestroy(listener service.DestroyListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Create stores a new session.
func (s *SessionStore) Create(_ context.Context, session *domain.Session) error {
	if session == nil {
		return domain.ErrMissingArgument.WithDetails("session is required")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	if !s.sessions.SetIfAbsent(session.ID, session.Clone()) {
		return domain.ErrSessionConflict
	}
	s.accounts.add(session.Principal.AccountID, session.ID)
	return nil
}

// Get returns a copy of a live session and records the access time.
// A session found past its deadline is destroyed on the spot.
func (s *SessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	now := s.now()

	var (
		live    *domain.Session
		expired bool
	)
	s.sessions.Update(id, func(cur *domain.Session, exists bool) (*domain.Session, bool) {
		if !exists {
			return nil, false
		}
		if cur.IsExpired(now) {
			expired = true
			return cur, true
		}
		next := cur.Clone()
		next.LastAccessAt = now.UnixMilli()
		live = next
		return next, true
	})

	if expired {
		s.destroyIf(id, domain.CauseExpired, func(cur *domain.Session) bool {
			return cur.IsExpired(now)
		})
		return nil, domain.ErrSessionNotFound
	}
	if live == nil {
		return nil, domain.ErrSessionNotFound
	}
	return live.Clone(), nil
}

// SetDeadline moves the absolute deadline of a live session.
// An expired session cannot be revived.
func (s *SessionStore) SetDeadline(_ context.Context, id string, expiresAt int64) error {
	now := s.now()

	var found bool
	s.sessions.Update(id, func(cur *domain.Session, exists bool) (*domain.Session, bool) {
		if !exists {
			return nil, false
		}
		if cur.IsExpired(now) {
			return cur, true
		}
		next := cur.Clone()
		next.ExpiresAt = expiresAt
		found = true
		return next, true
	})

	if !found {
		return domain.ErrSessionNotFound
	}
	return nil
}

// Invalidate destroys a session.
func (s *SessionStore) Invalidate(_ context.Context, id string) error {
	if !s.destroyIf(id, domain.CauseInvalidated, nil) {
		return domain.ErrSessionNotFound
	}
	return nil
}

// SweepExpired destroys every session past its deadline and returns how
// many were removed.
func (s *SessionStore) SweepExpired() int {
	now := s.now()
	expired := func(cur *domain.Session) bool {
		return cur.IsExpired(now)
	}

	n := 0
	for _, id := range s.sessions.Collect(expired) {
		if s.destroyIf(id, domain.CauseExpired, expired) {
			n++
		}
	}
	return n
}

// MultiSessionAccounts returns how many accounts hold more than one stored
// session. Eviction destroys the previous session right after a login binds
// the next, so anything but a transient non-zero value means an evicted
// session survived in storage.
func (s *SessionStore) MultiSessionAccounts() int {
	return s.accounts.crowded()
}

// Count returns the number of stored sessions, expired ones included until
// they are swept.
func (s *SessionStore) Count() int {
	return s.sessions.Count()
}

// Start launches the background sweeper. It is a no-op after the first call.
func (s *SessionStore) Start() {
	s.startOnce.Do(func() {
		go s.sweepLoop()
	})
}

// Close stops the background sweeper and waits for it to exit.
func (s *SessionStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	started := true
	s.startOnce.Do(func() { started = false })
	if started {
		<-s.doneCh
	}
	return nil
}

// sweepLoop runs periodic expiry sweeps.
func (s *SessionStore) sweepLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.SweepExpired(); n > 0 {
				s.logger.Debug("expired sessions swept", "count", n)
			}

		case <-s.stopCh:
			return
		}
	}
}

// destroyIf removes id when pred accepts the stored value (or pred is nil)
// and notifies listeners. Only the caller that actually removed the
// session notifies.
func (s *SessionStore) destroyIf(id string, cause domain.DestroyCause, pred func(*domain.Session) bool) bool {
	if pred == nil {
		pred = func(*domain.Session) bool { return true }
	}

	session, ok := s.sessions.PopIf(id, pred)
	if !ok {
		return false
	}
	s.accounts.remove(session.Principal.AccountID, id)

	s.listenersMu.RLock()
	listeners := s.listeners
	s.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(id, cause)
	}
	return true
}
