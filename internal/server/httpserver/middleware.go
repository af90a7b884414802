package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/internal/core/identity"
	"github.com/yndnr/sessionguard/internal/core/service"
	"github.com/yndnr/sessionguard/internal/server/httpserver/handler"
	"github.com/yndnr/sessionguard/internal/telemetry/logger"
	"github.com/yndnr/sessionguard/pkg/token"
)

// Context keys for request-scoped values.
type contextKey string

const (
	// ContextKeyStartTime is the context key for request start time.
	ContextKeyStartTime contextKey = "start_time"
)

const (
	// HeaderSessionID carries the session ID for clients that do not keep cookies.
	HeaderSessionID = "X-Session-ID"

	// DefaultSessionCookie is the session cookie name.
	DefaultSessionCookie = "SGSESSION"

	// relogin is the only message a rejected request ever sees.
	relogin = "please log in again"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together.
// The first middleware is the outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// SessionLoader looks up a live session by ID.
type SessionLoader interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
}

// HTTPObserver receives one observation per completed request.
type HTTPObserver interface {
	ObserveHTTPRequest(method, route string, status int, elapsed time.Duration)
}

// RequestID adds a unique request ID to each request.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" || len(requestID) > 64 {
				if id, err := token.GenerateWithLength(16); err == nil {
					requestID = "req-" + id
				} else {
					requestID = "req-unknown"
				}
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			ctx = context.WithValue(ctx, ContextKeyStartTime, time.Now())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Recover recovers from panics and returns 500 error.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.ErrorContext(r.Context(), "panic recovered",
						"error", err,
						"path", r.URL.Path,
					)
					writeAuthError(w, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Audit logs every request and reports it to obs, which may be nil.
// Routes outside known are reported as "unmatched" to bound label values.
func Audit(log *slog.Logger, obs HTTPObserver, known []string) Middleware {
	routes := make(map[string]struct{}, len(known))
	for _, route := range known {
		routes[route] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			startTime, ok := r.Context().Value(ContextKeyStartTime).(time.Time)
			if !ok {
				startTime = time.Now()
			}
			duration := time.Since(startTime)

			route := r.URL.Path
			if _, ok := routes[route]; !ok {
				route = "unmatched"
			}
			if obs != nil {
				obs.ObserveHTTPRequest(r.Method, route, wrapped.statusCode, duration)
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"client_ip", getClientIP(r),
			}
			if p, ok := wrapped.principal(); ok {
				attrs = append(attrs, "account_id", p.AccountID)
			}

			switch {
			case wrapped.statusCode >= 500:
				log.ErrorContext(r.Context(), "request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				log.WarnContext(r.Context(), "request completed with client error", attrs...)
			default:
				log.InfoContext(r.Context(), "request completed", attrs...)
			}
		})
	}
}

// CORS adds Cross-Origin Resource Sharing headers.
func CORS(allowedOrigins []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Empty means allow all
			allowed := len(allowedOrigins) == 0
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, "+HeaderSessionID)
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies per-client-IP token buckets from limiters.
func RateLimit(limiters *service.RateLimiterRegistry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.Allow(getClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				writeAuthError(w, domain.ErrRateLimited.Code, domain.ErrRateLimited.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestScope opens the request identity slot and clears it when the
// request ends, whether the handler returns, fails or panics.
func RequestScope() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, slot := identity.Begin(r.Context())
			defer slot.Clear()

			if rw, ok := w.(*responseWriter); ok {
				rw.slot = slot
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AttachSession resolves the session named by the session cookie or the
// X-Session-ID header. Unknown and expired sessions leave the request
// without one.
func AttachSession(sessions SessionLoader, cookieName string, log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sessionIDFromRequest(r, cookieName)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := sessions.Get(r.Context(), id)
			if err != nil {
				if !domain.IsDomainError(err, domain.ErrSessionNotFound.Code) {
					log.WarnContext(r.Context(), "session lookup failed",
						"error", err,
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := identity.WithSession(r.Context(), session)
			ctx = logger.WithSessionID(ctx, session.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Refresh slides the deadline of the attached session, if any.
// It runs on every path, public ones included.
func Refresh(refresher *service.ExpiryRefresher) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			refresher.Refresh(r.Context(), identity.SessionFromContext(r.Context()))
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate runs the auth gate on every path except publicPaths, which
// are matched exactly. All rejections look the same to the client.
func Authenticate(gate *service.AuthGate, publicPaths []string, log *slog.Logger) Middleware {
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := public[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			_, err := gate.Admit(r.Context(), service.GateRequest{
				Authorization: r.Header.Get("Authorization"),
				Session:       identity.SessionFromContext(r.Context()),
			})
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			if domain.IsRejection(err) {
				log.InfoContext(r.Context(), "request rejected",
					"path", r.URL.Path,
					"reason", string(domain.ReasonOf(err)),
					"client_ip", getClientIP(r),
				)
				writeAuthError(w, domain.ErrUnauthenticated.Code, relogin)
				return
			}

			log.ErrorContext(r.Context(), "authentication failed",
				"error", err,
			)
			writeAuthError(w, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message)
		})
	}
}

func sessionIDFromRequest(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return r.Header.Get(HeaderSessionID)
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool

	// slot is set by RequestScope so Audit can log who made the request.
	slot      *identity.Slot
	auditedAs domain.Principal
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
		w.capturePrincipal()
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// capturePrincipal copies the principal while the slot is still populated.
func (w *responseWriter) capturePrincipal() {
	if w.slot == nil {
		return
	}
	if p, ok := w.slot.Get(); ok {
		w.auditedAs = p
	}
}

func (w *responseWriter) principal() (domain.Principal, bool) {
	return w.auditedAs, !w.auditedAs.IsZero()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// writeAuthError writes a bare error body for requests rejected before
// reaching a handler.
func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)

	status := http.StatusUnauthorized
	switch {
	case strings.Contains(code, "-403"):
		status = http.StatusForbidden
	case strings.HasSuffix(code, "-4290"):
		status = http.StatusTooManyRequests
	case strings.Contains(code, "-SYS-5"):
		status = http.StatusInternalServerError
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

// getClientIP returns the address resolved by ClientIP, falling back to
// RemoteAddr.
func getClientIP(r *http.Request) string {
	if ip := handler.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return remoteIP(r)
}

// ClientIP resolves the client address once per request. With trustProxy
// set, X-Forwarded-For and X-Real-IP are honored.
func ClientIP(trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r)
			if trustProxy {
				if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
					ip = strings.TrimSpace(strings.Split(xff, ",")[0])
				} else if xri := r.Header.Get("X-Real-IP"); xri != "" {
					ip = strings.TrimSpace(xri)
				}
			}
			next.ServeHTTP(w, r.WithContext(handler.WithClientIP(r.Context(), ip)))
		})
	}
}

func remoteIP(r *http.Request) string {
	// net.SplitHostPort handles IPv6 addresses like [::1]:8080
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
