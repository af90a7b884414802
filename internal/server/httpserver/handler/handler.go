package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/internal/core/identity"
	"github.com/yndnr/sessionguard/internal/core/service"
	"github.com/yndnr/sessionguard/internal/telemetry/logger"
)

// maxBodyBytes bounds request bodies; every request body here is a small JSON object.
const maxBodyBytes = 1 << 16

// Config holds handler settings.
type Config struct {
	// CookieName is the session cookie set at login.
	CookieName string

	// CookieSecure marks the session cookie Secure.
	CookieSecure bool

	// Ready reports whether the server can take traffic. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Handler serves the sessionguard HTTP API.
type Handler struct {
	accounts *service.AccountService
	cfg      Config
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a Handler backed by accounts.
func New(accounts *service.AccountService, cfg Config, log *slog.Logger) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "SGSESSION"
	}
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		accounts: accounts,
		cfg:      cfg,
		logger:   log,
		mux:      http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Routes returns the path of every route the handler serves.
func Routes() []string {
	return []string{
		"/auth/register",
		"/auth/login",
		"/auth/logout",
		"/auth/info",
		"/auth/password",
		"/health",
		"/ready",
	}
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("POST /auth/register", h.handleRegister)
	h.mux.HandleFunc("POST /auth/login", h.handleLogin)
	h.mux.HandleFunc("POST /auth/logout", h.handleLogout)
	h.mux.HandleFunc("GET /auth/info", h.authenticated(h.handleInfo))
	h.mux.HandleFunc("POST /auth/password", h.authenticated(h.handleChangePassword))
}

// authenticated answers 401 when a request reaches next without a
// principal, so next may use identity.MustFromContext.
func (h *Handler) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identity.FromContext(r.Context()); !ok {
			h.handleServiceError(w, r, domain.ErrUnauthenticated)
			return
		}
		next(w, r)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	response := NewResponse(logger.RequestIDFromContext(r.Context()), data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	response := NewErrorResponse(logger.RequestIDFromContext(r.Context()), code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := errorCodeToHTTPStatus(de.Code)
		if status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "request failed", "error", err)
			h.writeError(w, r, status, de.Code, de.Message, nil)
			return
		}
		var details any
		if de.Details != "" {
			details = de.Details
		}
		h.writeError(w, r, status, de.Code, de.Message, details)
		return
	}

	h.logger.ErrorContext(r.Context(), "internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"), strings.HasSuffix(code, "-4041"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"), strings.HasSuffix(code, "-4091"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"), strings.HasSuffix(code, "-4002"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"), strings.HasSuffix(code, "-4012"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"):
		return http.StatusForbidden
	case strings.HasPrefix(code, "SG-ARG-"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type clientIPKey struct{}

// WithClientIP records the resolved client address on ctx.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address stored by WithClientIP.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// getClientIP returns the resolved client address, falling back to RemoteAddr.
func getClientIP(r *http.Request) string {
	if ip := ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
