package identity

import (
	"context"
	"sync/atomic"

	"github.com/yndnr/sessionguard/internal/core/domain"
)

type slotKey struct{}

// Slot holds the authenticated principal of one request.
// It is safe to read from goroutines the handler spawns.
type Slot struct {
	principal atomic.Pointer[domain.Principal]
	cleared   atomic.Bool
}

// Begin attaches a new, empty slot to ctx.
// The caller owns the slot and must call Clear when the request finishes.
func Begin(ctx context.Context) (context.Context, *Slot) {
	slot := &Slot{}
	return context.WithValue(ctx, slotKey{}, slot), slot
}

// Run executes fn inside a fresh slot and clears it on every exit path,
// including a panic in fn.
func Run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, slot := Begin(ctx)
	defer slot.Clear()
	return fn(ctx)
}

// SlotFromContext returns the slot attached by Begin, or nil.
func SlotFromContext(ctx context.Context) *Slot {
	slot, _ := ctx.Value(slotKey{}).(*Slot)
	return slot
}

// Set stores p. It fails once the slot has been cleared or when a
// principal is already present.
func (s *Slot) Set(p domain.Principal) error {
	if p.IsZero() {
		return domain.ErrMissingArgument.WithDetails("principal is empty")
	}
	if s.cleared.Load() {
		return domain.ErrInvalidArgument.WithDetails("request identity already cleared")
	}
	if !s.principal.CompareAndSwap(nil, &p) {
		return domain.ErrInvalidArgument.WithDetails("request identity already set")
	}
	if s.cleared.Load() {
		s.principal.Store(nil)
		return domain.ErrInvalidArgument.WithDetails("request identity already cleared")
	}
	return nil
}

// Get returns the stored principal.
func (s *Slot) Get() (domain.Principal, bool) {
	if s == nil {
		return domain.Principal{}, false
	}
	p := s.principal.Load()
	if p == nil {
		return domain.Principal{}, false
	}
	return *p, true
}

// Clear drops the principal. Further Set calls fail. Safe to call twice.
func (s *Slot) Clear() {
	if s == nil {
		return
	}
	s.cleared.Store(true)
	s.principal.Store(nil)
}

// FromContext returns the principal of the request ctx belongs to.
func FromContext(ctx context.Context) (domain.Principal, bool) {
	return SlotFromContext(ctx).Get()
}

// MustFromContext is FromContext for handlers that only run behind authentication.
func MustFromContext(ctx context.Context) domain.Principal {
	p, ok := FromContext(ctx)
	if !ok {
		panic("identity: no principal in context")
	}
	return p
}
