// Package domain defines the core domain models for moonlink.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a client-side error with a structured error code.
//
// Codes follow the format ML-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "ML-AUTH-4010")
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

// Is implements errors.Is() support. Two DomainErrors match when their codes match.
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

// IsUnauthorized reports whether err means the server rejected the token.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrUnauthorized indicates the server rejected the bearer token.
	// Receiving it forces a logout.
	ErrUnauthorized = NewDomainError("ML-AUTH-4010", "unauthorized")

	// ErrNotAuthenticated indicates an operation needs a token but none is held.
	ErrNotAuthenticated = NewDomainError("ML-AUTH-4011", "not authenticated")

	// ErrSignInRejected indicates the server refused the supplied credentials.
	ErrSignInRejected = NewDomainError("ML-AUTH-4000", "sign in rejected")
)

// ============================================================================
// Live Channel Errors (LIVE)
// ============================================================================

var (
	// ErrMalformedMessage indicates an inbound frame could not be parsed.
	ErrMalformedMessage = NewDomainError("ML-LIVE-4000", "malformed push message")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrTransient indicates a network or server failure unrelated to auth.
	ErrTransient = NewDomainError("ML-SYS-5030", "service unavailable")

	// ErrTokenStore indicates the durable token store failed.
	ErrTokenStore = NewDomainError("ML-SYS-5001", "token store error")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("ML-ARG-1001", "invalid argument")
)
