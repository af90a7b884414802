package identity

import (
	"context"

	"github.com/yndnr/sessionguard/internal/core/domain"
)

type sessionKey struct{}

// WithSession attaches the live session resolved for a request.
func WithSession(ctx context.Context, session *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session attached by WithSession, or nil.
func SessionFromContext(ctx context.Context) *domain.Session {
	s, _ := ctx.Value(sessionKey{}).(*domain.Session)
	return s
}
