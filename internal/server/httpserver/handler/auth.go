package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/internal/core/identity"
	"github.com/yndnr/sessionguard/internal/core/service"
)

// handleRegister handles POST /auth/register.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid request body", nil)
		return
	}

	account, err := h.accounts.Register(r.Context(), &service.RegisterRequest{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, accountToResponse(account))
}

// handleLogin handles POST /auth/login.
// The session ID goes into the session cookie; the token is returned in
// the body for use as a bearer credential.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid request body", nil)
		return
	}

	resp, err := h.accounts.Login(r.Context(), &service.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		ClientIP:  getClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(resp.SessionID, 0))
	h.writeJSON(w, r, http.StatusOK, LoginResponse{
		Token:     resp.Token,
		SessionID: resp.SessionID,
		Username:  resp.Principal.Username,
		Role:      resp.Principal.Role.String(),
		ExpiresAt: time.UnixMilli(resp.ExpiresAt),
	})
}

// handleLogout handles POST /auth/logout.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	session := identity.SessionFromContext(r.Context())
	if session == nil {
		h.handleServiceError(w, r, domain.ErrUnauthenticated)
		return
	}

	if err := h.accounts.Logout(r.Context(), session); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	h.writeJSON(w, r, http.StatusOK, nil)
}

// handleInfo handles GET /auth/info.
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Info(r.Context(), identity.MustFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, accountToResponse(account))
}

// handleChangePassword handles POST /auth/password.
// A successful change ends the current session.
func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := identity.MustFromContext(r.Context())

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid request body", nil)
		return
	}

	err := h.accounts.ChangePassword(r.Context(), &service.ChangePasswordRequest{
		Principal:   principal,
		Session:     identity.SessionFromContext(r.Context()),
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	h.writeJSON(w, r, http.StatusOK, nil)
}

func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
