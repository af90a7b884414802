package service

import (
	"context"
	"sync"
	"time"

	"github.com/yndnr/sessionguard/internal/core/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeSessions is a minimal session storage with synchronous destroy
// notification.
type fakeSessions struct {
	mu        sync.Mutex
	sessions  map[string]*domain.Session
	listeners []DestroyListener
	clock     *fakeClock
	setErr    error
}

func newFakeSessions(clock *fakeClock) *fakeSessions {
	return &fakeSessions{
		sessions: make(map[string]*domain.Session),
		clock:    clock,
	}
}

func (f *fakeSessions) OnDestroy(l DestroyListener) {
	f.mu.Lock()
	f.listeners = append(f.listeners, l)
	f.mu.Unlock()
}

func (f *fakeSessions) Create(_ context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.ID]; ok {
		return domain.ErrSessionConflict
	}
	f.sessions[s.ID] = s.Clone()
	return nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	s, ok := f.sessions[id]
	f.mu.Unlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.IsExpired(f.clock.Now()) {
		f.destroy(id, domain.CauseExpired)
		return nil, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (f *fakeSessions) SetDeadline(_ context.Context, id string, expiresAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	next := s.Clone()
	next.ExpiresAt = expiresAt
	f.sessions[id] = next
	return nil
}

func (f *fakeSessions) Invalidate(_ context.Context, id string) error {
	if !f.destroy(id, domain.CauseInvalidated) {
		return domain.ErrSessionNotFound
	}
	return nil
}

// expire destroys id as if its deadline had passed.
func (f *fakeSessions) expire(id string) bool {
	return f.destroy(id, domain.CauseExpired)
}

func (f *fakeSessions) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[id]
	return ok
}

func (f *fakeSessions) destroy(id string, cause domain.DestroyCause) bool {
	f.mu.Lock()
	_, ok := f.sessions[id]
	delete(f.sessions, id)
	listeners := f.listeners
	f.mu.Unlock()

	if !ok {
		return false
	}
	for _, l := range listeners {
		l(id, cause)
	}
	return true
}

// countingRecorder counts recorder calls.
type countingRecorder struct {
	mu         sync.Mutex
	logins     map[string]int
	rejections map[domain.RejectReason]int
	refreshes  int
	evictions  int
	reaped     map[domain.DestroyCause]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		logins:     make(map[string]int),
		rejections: make(map[domain.RejectReason]int),
		reaped:     make(map[domain.DestroyCause]int),
	}
}

func (r *countingRecorder) RecordLogin(result string) {
	r.mu.Lock()
	r.logins[result]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordRejection(reason domain.RejectReason) {
	r.mu.Lock()
	r.rejections[reason]++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordRefresh() {
	r.mu.Lock()
	r.refreshes++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordEviction() {
	r.mu.Lock()
	r.evictions++
	r.mu.Unlock()
}

func (r *countingRecorder) RecordReaped(cause domain.DestroyCause, unbound bool) {
	if !unbound {
		return
	}
	r.mu.Lock()
	r.reaped[cause]++
	r.mu.Unlock()
}

// fakeAccounts is a map-backed AccountRepository.
type fakeAccounts struct {
	mu      sync.Mutex
	byID    map[string]*domain.Account
	byName  map[string]string
	updates int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byID:   make(map[string]*domain.Account),
		byName: make(map[string]string),
	}
}

func (f *fakeAccounts) Create(_ context.Context, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[a.Username]; ok {
		return domain.ErrAccountConflict
	}
	f.byID[a.ID] = a.Clone()
	f.byName[a.Username] = a.ID
	return nil
}

func (f *fakeAccounts) Get(_ context.Context, id string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (f *fakeAccounts) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	f.mu.Lock()
	id, ok := f.byName[username]
	f.mu.Unlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return f.Get(ctx, id)
}

func (f *fakeAccounts) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.PasswordHash = hash
	f.updates++
	return nil
}
