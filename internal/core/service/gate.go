package service

import (
	"context"
	"strings"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/internal/core/identity"
)

const bearerPrefix = "Bearer "

// ParseBearer extracts the credential from an Authorization header value.
// The prefix is case-sensitive. An empty credential, or one containing
// whitespace, is malformed.
func ParseBearer(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	tok := header[len(bearerPrefix):]
	if tok == "" || strings.ContainsAny(tok, " \t\r\n") {
		return "", false
	}
	return tok, true
}

// GateRequest is what the gate needs to know about an inbound request.
type GateRequest struct {
	// Authorization is the raw Authorization header value, possibly empty.
	Authorization string

	// Session is the live session attached to the request, or nil.
	Session *domain.Session
}

// AuthGate decides whether a request may reach a protected handler.
// It reads the identity registry but never mutates it.
type AuthGate struct {
	identities IdentityRegistry
	recorder   Recorder
}

// NewAuthGate creates an AuthGate. recorder may be nil.
func NewAuthGate(identities IdentityRegistry, recorder Recorder) *AuthGate {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &AuthGate{
		identities: identities,
		recorder:   recorder,
	}
}

// Validate runs the checks in order and returns the session's principal,
// or one of domain.ErrUnauthenticated, ErrSessionExpired, ErrTokenInvalid
// and ErrSessionSuperseded.
func (g *AuthGate) Validate(req GateRequest) (domain.Principal, error) {
	// 1. Credential present and well-formed
	tok, ok := ParseBearer(req.Authorization)
	if !ok {
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	// 2. A live session is attached
	session := req.Session
	if session == nil {
		return domain.Principal{}, domain.ErrSessionExpired
	}

	// 3. The credential is bound to this very session
	sessionID, ok := g.identities.ResolveSessionIDByToken(tok)
	if !ok && g.evictedByNewerLogin(session, tok) {
		return domain.Principal{}, domain.ErrSessionSuperseded
	}
	if !ok || sessionID != session.ID {
		return domain.Principal{}, domain.ErrTokenInvalid.WithDetails("credential not bound to session")
	}

	// 4. The session still carries the same credential
	if !domain.TokensEqual(session.Token, tok) {
		return domain.Principal{}, domain.ErrTokenInvalid.WithDetails("session credential mismatch")
	}

	// 5. No newer login has replaced the session
	if !g.identities.IsCurrent(session) {
		return domain.Principal{}, domain.ErrSessionSuperseded
	}

	// 6. The session knows who it belongs to
	if session.Principal.IsZero() {
		return domain.Principal{}, domain.ErrSessionExpired.WithDetails("session has no principal")
	}

	return session.Principal, nil
}

// evictedByNewerLogin reports whether tok is the credential session was
// issued with and the account has since bound a different session. Eviction
// drops the credential from the registry, so this is how a stale credential
// of an evicted session is told apart from a forged or foreign one.
func (g *AuthGate) evictedByNewerLogin(session *domain.Session, tok string) bool {
	if !domain.TokensEqual(session.Token, tok) || session.Principal.AccountID == "" {
		return false
	}
	current, ok := g.identities.CurrentSessionID(session.Principal.AccountID)
	return ok && current != session.ID
}

// Admit validates req and, on success, stores the principal in the
// request identity slot carried by ctx. Rejections are recorded.
func (g *AuthGate) Admit(ctx context.Context, req GateRequest) (domain.Principal, error) {
	p, err := g.Validate(req)
	if err != nil {
		g.recorder.RecordRejection(domain.ReasonOf(err))
		return domain.Principal{}, err
	}

	slot := identity.SlotFromContext(ctx)
	if slot == nil {
		return domain.Principal{}, domain.ErrInternalServer.WithDetails("request identity slot missing")
	}
	if err := slot.Set(p); err != nil {
		return domain.Principal{}, err
	}
	return p, nil
}
