package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/sessionguard/internal/core/domain"
)

// AccountServiceConfig holds configuration for AccountService.
type AccountServiceConfig struct {
	// Window is the inactivity window of new sessions (default: 20m).
	Window time.Duration

	// LoginRate is the sustained login attempts per second allowed for one
	// username and client IP (default: 0.2, one every five seconds).
	LoginRate float64

	// LoginBurst is the number of attempts allowed back to back (default: 5).
	LoginBurst int

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// DefaultAccountServiceConfig returns default configuration.
func DefaultAccountServiceConfig() *AccountServiceConfig {
	return &AccountServiceConfig{
		Window:     DefaultSessionWindow,
		LoginRate:  0.2,
		LoginBurst: 5,
		Now:        time.Now,
	}
}

// AccountService runs registration, login, logout and password changes.
// Login and logout are the only callers that bind and unbind identities
// directly; everything else goes through the reaper.
type AccountService struct {
	accounts   AccountRepository
	sessions   SessionStorage
	identities IdentityRegistry
	hasher     *PasswordHasher
	limiter    *RateLimiterRegistry
	recorder   Recorder
	logger     *slog.Logger
	window     time.Duration
	now        func() time.Time

	// dummyHash keeps unknown-user logins as slow as bad-password ones.
	dummyHash string
}

// AccountServiceDeps bundles the collaborators of AccountService.
type AccountServiceDeps struct {
	Accounts   AccountRepository
	Sessions   SessionStorage
	Identities IdentityRegistry
	Hasher     *PasswordHasher
	Recorder   Recorder
	Logger     *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(deps AccountServiceDeps, config *AccountServiceConfig) *AccountService {
	if config == nil {
		config = DefaultAccountServiceConfig()
	}

	s := &AccountService{
		accounts:   deps.Accounts,
		sessions:   deps.Sessions,
		identities: deps.Identities,
		hasher:     deps.Hasher,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		window:     config.Window,
		now:        config.Now,
	}
	if s.hasher == nil {
		s.hasher = NewPasswordHasher(nil)
	}
	if s.recorder == nil {
		s.recorder = NopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.window <= 0 {
		s.window = DefaultSessionWindow
	}
	if s.now == nil {
		s.now = time.Now
	}

	burst := config.LoginBurst
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Limit(config.LoginRate)
	if config.LoginRate <= 0 {
		limit = rate.Inf
	}
	s.limiter = NewRateLimiterRegistry(limit, burst, 10*time.Minute)

	s.dummyHash, _ = s.hasher.Hash("sessionguard-dummy-password1")
	return s
}

// Limiter exposes the login rate limiter registry for periodic pruning.
func (s *AccountService) Limiter() *RateLimiterRegistry {
	return s.limiter
}

// ============================================================================
// Register
// ============================================================================

// RegisterRequest contains parameters for account registration.
type RegisterRequest struct {
	Username string
	Password string
	Email    string
	Phone    string
}

// Register creates a regular user account.
func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (*domain.Account, error) {
	return s.create(ctx, req, domain.RoleUser)
}

func (s *AccountService) create(ctx context.Context, req *RegisterRequest, role domain.Role) (*domain.Account, error) {
	if req == nil {
		return nil, domain.ErrMissingArgument.WithDetails("request is required")
	}
	username := strings.TrimSpace(req.Username)
	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	if err := domain.ValidateContact(req.Email, req.Phone); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	account := domain.NewAccount(username, hash, role, s.now())
	account.Email = req.Email
	account.Phone = req.Phone

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID, "username", account.Username, "role", role.String())
	return account.Clone(), nil
}

// EnsureAdmin creates an admin account unless the username is taken.
// It reports whether an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if _, err := s.accounts.GetByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return false, err
	}

	_, err := s.create(ctx, &RegisterRequest{Username: username, Password: password}, domain.RoleAdmin)
	if errors.Is(err, domain.ErrAccountConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ============================================================================
// Login
// ============================================================================

// LoginRequest contains parameters for login.
type LoginRequest struct {
	Username  string
	Password  string
	ClientIP  string
	UserAgent string
}

// LoginResponse contains the result of a successful login.
type LoginResponse struct {
	Token     string // The plaintext token (only returned once)
	SessionID string
	Principal domain.Principal
	ExpiresAt int64 // Unix MS
	Session   *domain.Session
}

// Login verifies credentials, opens a new session and binds it to the
// account, evicting any session the account held before.
func (s *AccountService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if req == nil || req.Username == "" || req.Password == "" {
		s.recorder.RecordLogin(LoginFailed)
		return nil, domain.ErrInvalidCredentials
	}

	// 1. Throttle guessing per username and client
	if !s.limiter.Allow(req.Username + "|" + req.ClientIP) {
		s.recorder.RecordLogin(LoginRateLimited)
		return nil, domain.ErrRateLimited
	}

	// 2. Verify credentials
	account, err := s.accounts.GetByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		s.hasher.Verify(req.Password, s.dummyHash)
		s.recorder.RecordLogin(LoginFailed)
		return nil, domain.ErrInvalidCredentials
	}
	if !s.hasher.Verify(req.Password, account.PasswordHash) {
		s.recorder.RecordLogin(LoginFailed)
		return nil, domain.ErrInvalidCredentials
	}
	s.upgradeHash(ctx, account, req.Password)

	// 3. Open a session with a fresh credential
	tok, err := domain.GenerateToken()
	if err != nil {
		return nil, err
	}
	session, err := domain.NewSession(account.Principal(), tok, s.window, s.now())
	if err != nil {
		return nil, err
	}
	session.IPAddress = req.ClientIP
	session.UserAgent = req.UserAgent

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	// 4. Make it the account's only session
	if err := s.identities.Bind(ctx, account.ID, tok, session); err != nil {
		if invErr := s.sessions.Invalidate(ctx, session.ID); invErr != nil {
			s.logger.WarnContext(ctx, "drop unbound session failed", "session_id", session.ID, "error", invErr)
		}
		return nil, err
	}

	s.limiter.Reset(req.Username + "|" + req.ClientIP)
	s.recorder.RecordLogin(LoginSuccess)
	s.logger.InfoContext(ctx, "login",
		"account_id", account.ID,
		"session_id", session.ID,
		"client_ip", req.ClientIP,
	)

	return &LoginResponse{
		Token:     tok,
		SessionID: session.ID,
		Principal: session.Principal,
		ExpiresAt: session.ExpiresAt,
		Session:   session.Clone(),
	}, nil
}

func (s *AccountService) upgradeHash(ctx context.Context, account *domain.Account, password string) {
	if !s.hasher.NeedsRehash(account.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "account_id", account.ID, "error", err)
	}
}

// ============================================================================
// Logout
// ============================================================================

// Logout drops the binding of session and destroys it in storage.
// It is safe to call for a session that was already evicted.
func (s *AccountService) Logout(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return domain.ErrMissingArgument.WithDetails("session is required")
	}

	s.identities.Unbind(session)

	if err := s.sessions.Invalidate(ctx, session.ID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}

	s.logger.InfoContext(ctx, "logout", "account_id", session.Principal.AccountID, "session_id", session.ID)
	return nil
}

// ============================================================================
// Password change
// ============================================================================

// ChangePasswordRequest contains parameters for a password change.
type ChangePasswordRequest struct {
	Principal   domain.Principal
	Session     *domain.Session
	OldPassword string
	NewPassword string
}

// ChangePassword replaces the password after checking the old one, then
// ends the current session so the user signs in again.
func (s *AccountService) ChangePassword(ctx context.Context, req *ChangePasswordRequest) error {
	if req == nil || req.Principal.IsZero() {
		return domain.ErrMissingArgument.WithDetails("principal is required")
	}

	account, err := s.accounts.Get(ctx, req.Principal.AccountID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(req.OldPassword, account.PasswordHash) {
		return domain.ErrPasswordMismatch
	}
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return domain.ErrInternalServer.WithCause(err)
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return err
	}

	if req.Session != nil {
		return s.Logout(ctx, req.Session)
	}
	return nil
}

// ============================================================================
// Info
// ============================================================================

// Info returns the account of principal.
func (s *AccountService) Info(ctx context.Context, principal domain.Principal) (*domain.Account, error) {
	if principal.IsZero() {
		return nil, domain.ErrMissingArgument.WithDetails("principal is required")
	}
	account, err := s.accounts.Get(ctx, principal.AccountID)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}
