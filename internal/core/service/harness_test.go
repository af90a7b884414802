package service

import (
	"context"
	"testing"
	"time"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/internal/core/identity"
)

const testWindow = 300 * time.Second

type harness struct {
	clock      *fakeClock
	sessions   *fakeSessions
	identities *identity.Store
	recorder   *countingRecorder
	accounts   *AccountService
	gate       *AuthGate
	refresher  *ExpiryRefresher
	reaper     *LifecycleReaper
}

func testHasher() *PasswordHasher {
	return NewPasswordHasher(&PasswordHasherConfig{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:    newFakeClock(),
		recorder: newCountingRecorder(),
	}
	h.sessions = newFakeSessions(h.clock)
	h.identities = identity.NewStore(h.sessions,
		identity.WithStrictChecks(),
		identity.WithEvictionHook(func(string, string) { h.recorder.RecordEviction() }),
	)

	h.reaper = NewLifecycleReaper(h.identities, h.recorder, nil)
	h.reaper.Attach(h.sessions)

	h.gate = NewAuthGate(h.identities, h.recorder)
	h.refresher = NewExpiryRefresher(h.sessions, ExpiryRefresherConfig{
		Window:   testWindow,
		Now:      h.clock.Now,
		Recorder: h.recorder,
	})
	h.accounts = NewAccountService(AccountServiceDeps{
		Accounts:   newFakeAccounts(),
		Sessions:   h.sessions,
		Identities: h.identities,
		Hasher:     testHasher(),
		Recorder:   h.recorder,
	}, &AccountServiceConfig{
		Window:     testWindow,
		LoginRate:  100,
		LoginBurst: 100,
		Now:        h.clock.Now,
	})
	return h
}

const testPassword = "secret123"

func (h *harness) register(t *testing.T, username string) *domain.Account {
	t.Helper()
	acct, err := h.accounts.Register(context.Background(), &RegisterRequest{
		Username: username,
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return acct
}

func (h *harness) login(t *testing.T, username, ip string) *LoginResponse {
	t.Helper()
	return h.loginWith(t, username, testPassword, ip)
}

func (h *harness) loginWith(t *testing.T, username, password, ip string) *LoginResponse {
	t.Helper()
	resp, err := h.accounts.Login(context.Background(), &LoginRequest{
		Username: username,
		Password: password,
		ClientIP: ip,
	})
	if err != nil {
		t.Fatalf("Login(%s): %v", username, err)
	}
	return resp
}

// attached returns the session the request layer would attach for id,
// or nil when storage no longer has it.
func (h *harness) attached(id string) *domain.Session {
	s, err := h.sessions.Get(context.Background(), id)
	if err != nil {
		return nil
	}
	return s
}
