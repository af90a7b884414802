package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes follow the format SG-<AREA>-<http status><seq>.
type DomainError struct {
	Code    string // Error code (e.g., "SG-SESS-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches another DomainError by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Authentication rejections (AUTH / SESS / TOKN)
// These are the only four outcomes of a failed request validation.
// ============================================================================

var (
	// ErrUnauthenticated indicates a missing or malformed bearer credential.
	ErrUnauthenticated = NewDomainError("SG-AUTH-4010", "authentication required")

	// ErrSessionExpired indicates the request carried no live session.
	ErrSessionExpired = NewDomainError("SG-SESS-4011", "session expired")

	// ErrTokenInvalid indicates the credential does not belong to the request's session.
	ErrTokenInvalid = NewDomainError("SG-TOKN-4010", "invalid token")

	// ErrSessionSuperseded indicates a newer login for the same account evicted this session.
	ErrSessionSuperseded = NewDomainError("SG-SESS-4012", "signed in elsewhere")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionNotFound indicates the requested session was not found.
	ErrSessionNotFound = NewDomainError("SG-SESS-4040", "session not found")

	// ErrSessionConflict indicates the session ID already exists.
	ErrSessionConflict = NewDomainError("SG-SESS-4090", "session id conflict")

	// ErrSessionValidation indicates session data validation failed.
	ErrSessionValidation = NewDomainError("SG-SESS-4001", "session validation failed")
)

// ============================================================================
// Account Errors (ACCT)
// ============================================================================

var (
	// ErrAccountNotFound indicates the account does not exist.
	ErrAccountNotFound = NewDomainError("SG-ACCT-4040", "account not found")

	// ErrAccountConflict indicates the username is already taken.
	ErrAccountConflict = NewDomainError("SG-ACCT-4090", "username already exists")

	// ErrAccountValidation indicates registration or profile data is invalid.
	ErrAccountValidation = NewDomainError("SG-ACCT-4001", "account validation failed")

	// ErrInvalidCredentials indicates a login with an unknown user or a wrong password.
	ErrInvalidCredentials = NewDomainError("SG-ACCT-4011", "invalid username or password")

	// ErrPasswordMismatch indicates the current password supplied for a change was wrong.
	ErrPasswordMismatch = NewDomainError("SG-ACCT-4002", "current password is incorrect")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("SG-SYS-5000", "internal server error")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("SG-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("SG-SYS-4290", "too many requests")

	// ErrUnavailable indicates the server is not ready to take traffic.
	ErrUnavailable = NewDomainError("SG-SYS-5030", "service unavailable")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("SG-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("SG-ARG-1002", "missing required argument")
)
