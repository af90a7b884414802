package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yndnr/sessionguard/internal/core/domain"
)

// Invalidator destroys a session in the underlying storage.
type Invalidator interface {
	Invalidate(ctx context.Context, sessionID string) error
}

// EvictionHook is called after a bind evicted a previous session.
type EvictionHook func(accountID, evictedSessionID string)

// Store is the single source of truth for which session and credential
// belong to which account.
type Store struct {
	mu sync.Mutex

	accountToSession map[string]string
	sessionToAccount map[string]string
	tokenToSession   map[string]string
	sessionToToken   map[string]string

	invalidator Invalidator
	onEvict     EvictionHook
	logger      *slog.Logger
	strict      bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger used for eviction and repair messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithEvictionHook registers a callback invoked once per evicted session.
func WithEvictionHook(hook EvictionHook) Option {
	return func(s *Store) {
		s.onEvict = hook
	}
}

// WithStrictChecks makes the store verify table consistency after every
// mutation and panic on any violation.
func WithStrictChecks() Option {
	return func(s *Store) {
		s.strict = true
	}
}

// NewStore creates an empty Store. inv may be nil, in which case evicted
// sessions are only unmapped.
func NewStore(inv Invalidator, opts ...Option) *Store {
	s := &Store{
		accountToSession: make(map[string]string),
		sessionToAccount: make(map[string]string),
		tokenToSession:   make(map[string]string),
		sessionToToken:   make(map[string]string),
		invalidator:      inv,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Bind makes session, reachable through token, the one current session of accountID.
//
// If the account was bound to a different session, that session's four
// entries are removed in the same critical section that installs the new
// ones, and its storage object is invalidated before Bind returns.
// Invalidation errors are logged and otherwise ignored.
func (s *Store) Bind(ctx context.Context, accountID, token string, session *domain.Session) error {
	if accountID == "" || token == "" || session == nil || session.ID == "" {
		return domain.ErrMissingArgument.WithDetails("account id, token and session are required")
	}
	if session.Principal.AccountID != "" && session.Principal.AccountID != accountID {
		return domain.ErrInvalidArgument.WithDetails("session belongs to another account")
	}

	evicted := s.bind(accountID, token, session.ID)
	if evicted == "" {
		return nil
	}

	s.logger.InfoContext(ctx, "session evicted by new login",
		"account_id", accountID,
		"evicted_session_id", evicted,
		"session_id", session.ID,
	)

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, evicted); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate evicted session",
				"account_id", accountID,
				"session_id", evicted,
				"error", err,
			)
		}
	}
	if s.onEvict != nil {
		s.onEvict(accountID, evicted)
	}
	return nil
}

// bind updates the tables and returns the evicted session id, if any.
func (s *Store) bind(accountID, token, sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted string
	if prev, ok := s.accountToSession[accountID]; ok {
		if prev != sessionID {
			evicted = prev
		}
		s.removeLocked(accountID, prev)
	}

	// The session or token may still be mapped under another account if a
	// caller reuses identifiers. Drop those entries so the tables stay 1:1.
	if other, ok := s.sessionToAccount[sessionID]; ok {
		s.removeLocked(other, sessionID)
	}
	if other, ok := s.tokenToSession[token]; ok {
		s.removeLocked(s.sessionToAccount[other], other)
	}

	s.accountToSession[accountID] = sessionID
	s.sessionToAccount[sessionID] = accountID
	s.tokenToSession[token] = sessionID
	s.sessionToToken[sessionID] = token

	s.checkLocked(accountID)
	return evicted
}

// Unbind removes the binding of session's account if and only if session
// is still the account's current session. Unknown or superseded sessions
// are ignored, so a late logout never removes a newer login.
func (s *Store) Unbind(session *domain.Session) bool {
	if session == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accountID := session.Principal.AccountID
	if accountID == "" {
		accountID = s.sessionToAccount[session.ID]
	}
	return s.unbindLocked(accountID, session.ID)
}

// UnbindBySessionID is Unbind for callers that only hold the session id,
// such as a session that storage already destroyed.
func (s *Store) UnbindBySessionID(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, ok := s.sessionToAccount[sessionID]
	if !ok {
		return false
	}
	return s.unbindLocked(accountID, sessionID)
}

func (s *Store) unbindLocked(accountID, sessionID string) bool {
	if accountID == "" || sessionID == "" {
		return false
	}
	current, ok := s.accountToSession[accountID]
	if !ok || current != sessionID {
		if owner, mapped := s.sessionToAccount[sessionID]; mapped && owner == accountID {
			// Reverse entry without a forward one: a removal was not atomic.
			s.violation("session %s maps to account %s but account is bound to %q", sessionID, accountID, current)
			s.removeLocked(accountID, sessionID)
		}
		return false
	}

	s.removeLocked(accountID, sessionID)
	s.checkLocked(accountID)
	return true
}

// removeLocked deletes every entry belonging to sessionID, and the
// account entry when it still points at sessionID.
func (s *Store) removeLocked(accountID, sessionID string) {
	if s.accountToSession[accountID] == sessionID {
		delete(s.accountToSession, accountID)
	}
	delete(s.sessionToAccount, sessionID)
	if tok, ok := s.sessionToToken[sessionID]; ok {
		if s.tokenToSession[tok] == sessionID {
			delete(s.tokenToSession, tok)
		}
		delete(s.sessionToToken, sessionID)
	}
}

// ResolveSessionIDByToken returns the session a credential is bound to.
func (s *Store) ResolveSessionIDByToken(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokenToSession[token]
	return id, ok
}

// ResolveTokenBySessionID returns the credential bound to a session.
func (s *Store) ResolveTokenBySessionID(sessionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.sessionToToken[sessionID]
	return tok, ok
}

// CurrentSessionID returns the session currently bound to accountID.
func (s *Store) CurrentSessionID(accountID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.accountToSession[accountID]
	return id, ok
}

// IsCurrent reports whether session is the one currently bound for its account.
func (s *Store) IsCurrent(session *domain.Session) bool {
	if session == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accountID := session.Principal.AccountID
	if accountID == "" {
		accountID = s.sessionToAccount[session.ID]
	}
	current, ok := s.accountToSession[accountID]
	return ok && current == session.ID
}

// Count returns the number of bound accounts.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accountToSession)
}

// Verify checks every table against every other and returns the first
// inconsistency found.
func (s *Store) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyAllLocked()
}

func (s *Store) verifyAllLocked() error {
	if n := len(s.accountToSession); n != len(s.sessionToAccount) || n != len(s.tokenToSession) || n != len(s.sessionToToken) {
		return fmt.Errorf("table sizes differ: account=%d session=%d token=%d sessionToken=%d",
			n, len(s.sessionToAccount), len(s.tokenToSession), len(s.sessionToToken))
	}
	for accountID := range s.accountToSession {
		if err := s.verifyAccountLocked(accountID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) verifyAccountLocked(accountID string) error {
	sessionID, ok := s.accountToSession[accountID]
	if !ok {
		return nil
	}
	if owner := s.sessionToAccount[sessionID]; owner != accountID {
		return fmt.Errorf("session %s owned by %q, want %q", sessionID, owner, accountID)
	}
	tok, ok := s.sessionToToken[sessionID]
	if !ok {
		return fmt.Errorf("session %s has no token", sessionID)
	}
	if back := s.tokenToSession[tok]; back != sessionID {
		return fmt.Errorf("token of session %s resolves to %q", sessionID, back)
	}
	return nil
}

// checkLocked verifies the binding of accountID in strict mode.
func (s *Store) checkLocked(accountID string) {
	if !s.strict {
		return
	}
	if err := s.verifyAccountLocked(accountID); err != nil {
		s.violation("%v", err)
	}
	if err := s.verifyAllLocked(); err != nil {
		s.violation("%v", err)
	}
}

// violation reports a broken invariant. Correct code never reaches it.
func (s *Store) violation(format string, args ...any) {
	msg := fmt.Sprintf("identity store invariant violated: "+format, args...)
	if s.strict {
		panic(msg)
	}
	s.logger.Error(msg)
}
