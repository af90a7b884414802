package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/yndnr/sessionguard/internal/core/service"
	"github.com/yndnr/sessionguard/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Accounts serves the /auth endpoints.
	Accounts *service.AccountService

	// Sessions resolves the session named by the request.
	Sessions SessionLoader

	// Gate authenticates non-public requests.
	Gate *service.AuthGate

	// Refresher slides session deadlines on every request.
	Refresher *service.ExpiryRefresher

	// Limiters is the per-IP request limiter. Nil disables rate limiting.
	Limiters *service.RateLimiterRegistry

	// Observer receives per-request metrics. May be nil.
	Observer HTTPObserver

	// Metrics serves GET /metrics. Nil leaves the route unregistered.
	Metrics http.Handler

	// Ready backs GET /ready.
	Ready func(ctx context.Context) error

	// Logger for request logging.
	Logger *slog.Logger

	// PublicPaths skip authentication. Matched exactly.
	PublicPaths []string

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = allow all).
	CORSAllowedOrigins []string

	// TrustProxy honors X-Forwarded-For and X-Real-IP.
	TrustProxy bool

	// CookieName is the session cookie name.
	CookieName string

	// CookieSecure marks the session cookie Secure.
	CookieSecure bool
}

// DefaultPublicPaths are reachable without a login.
func DefaultPublicPaths() []string {
	return []string{"/auth/register", "/auth/login", "/health", "/ready", "/metrics"}
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		PublicPaths: DefaultPublicPaths(),
		CookieName:  DefaultSessionCookie,
	}
}

// NewRouter builds the handler tree with the full middleware chain.
//
// Order: Recover, RequestID, ClientIP, Audit, CORS, RateLimit, RequestScope,
// AttachSession, Refresh, Authenticate. Refresh runs on every path;
// Authenticate skips the public ones.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	publicPaths := cfg.PublicPaths
	if publicPaths == nil {
		publicPaths = DefaultPublicPaths()
	}

	h := handler.New(cfg.Accounts, handler.Config{
		CookieName:   cookieName,
		CookieSecure: cfg.CookieSecure,
		Ready:        cfg.Ready,
	}, log)

	mux := http.NewServeMux()
	mux.Handle("/", h)
	known := handler.Routes()
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
		known = append(known, "/metrics")
	}

	middlewares := []Middleware{
		Recover(log),
		RequestID(),
		ClientIP(cfg.TrustProxy),
		Audit(log, cfg.Observer, known),
		CORS(cfg.CORSAllowedOrigins),
	}
	if cfg.Limiters != nil {
		middlewares = append(middlewares, RateLimit(cfg.Limiters))
	}
	middlewares = append(middlewares,
		RequestScope(),
		AttachSession(cfg.Sessions, cookieName, log),
		Refresh(cfg.Refresher),
		Authenticate(cfg.Gate, publicPaths, log),
	)

	return Chain(mux, middlewares...)
}
