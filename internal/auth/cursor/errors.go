package cursor

import (
	"errors"
	"fmt"
)

// AuthenticationError represents a failure of the deep-login handshake.
type AuthenticationError struct {
	// Type is the machine-readable error kind.
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Code carries the HTTP status for http_status_failure, otherwise a suggested status.
	Code int `json:"code"`
	// Cause is the underlying error that caused this authentication error.
	Cause error `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AuthenticationError of the same Type,
// so errors.Is(err, ErrPollTimeout) matches any poll timeout.
func (e *AuthenticationError) Is(target error) bool {
	var other *AuthenticationError
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Type == other.Type
}

// Error kinds produced by the handshake.
var (
	// ErrPKCEGenerationFailed aborts Start; it is never retried.
	ErrPKCEGenerationFailed = &AuthenticationError{
		Type:    "pkce_generation_failed",
		Message: "Failed to generate PKCE codes",
		Code:    500,
	}

	// ErrNetworkFailure covers DNS, connection and body read failures.
	ErrNetworkFailure = &AuthenticationError{
		Type:    "network_failure",
		Message: "Network request failed",
		Code:    502,
	}

	// ErrHTTPStatusFailure is the template for non-200 poll responses.
	ErrHTTPStatusFailure = &AuthenticationError{
		Type:    "http_status_failure",
		Message: "Unexpected HTTP status",
		Code:    502,
	}

	// ErrJSONParseFailure is returned when a 200 response is not valid JSON.
	ErrJSONParseFailure = &AuthenticationError{
		Type:    "json_parse_failure",
		Message: "Failed to parse JSON response",
		Code:    502,
	}

	// ErrTimeoutFailure is returned when a poll request gets no response in time.
	ErrTimeoutFailure = &AuthenticationError{
		Type:    "timeout_failure",
		Message: "Request timed out",
		Code:    504,
	}

	// ErrPollExhausted wraps the request error of the final poll attempt.
	ErrPollExhausted = &AuthenticationError{
		Type:    "poll_exhausted",
		Message: "polling failed",
		Code:    502,
	}

	// ErrPollTimeout means every attempt completed without an access token.
	ErrPollTimeout = &AuthenticationError{
		Type:    "poll_timeout",
		Message: "polling timed out, make sure you clicked the login button",
		Code:    408,
	}
)

// NewAuthenticationError creates a new authentication error with a cause based on a base error.
func NewAuthenticationError(baseErr *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: baseErr.Message,
		Code:    baseErr.Code,
		Cause:   cause,
	}
}

// NewHTTPStatusError builds an http_status_failure carrying the status code and text.
func NewHTTPStatusError(statusCode int, statusText string) *AuthenticationError {
	return &AuthenticationError{
		Type:    ErrHTTPStatusFailure.Type,
		Message: fmt.Sprintf("HTTP %d: %s", statusCode, statusText),
		Code:    statusCode,
	}
}

// IsAuthenticationError checks if an error is an authentication error.
func IsAuthenticationError(err error) bool {
	var authenticationError *AuthenticationError
	return errors.As(err, &authenticationError)
}

// GetUserFriendlyMessage returns a user-facing message for a handshake error.
func GetUserFriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		return fmt.Sprintf("Cursor authentication failed: %v", err)
	}
	switch authErr.Type {
	case ErrPKCEGenerationFailed.Type:
		return "Could not initialise the login session. Please try again."
	case ErrPollExhausted.Type:
		return fmt.Sprintf("Polling failed: %s", causeMessage(authErr.Cause))
	case ErrPollTimeout.Type:
		return "Polling timed out. Make sure you clicked the login button in the browser."
	case ErrNetworkFailure.Type:
		return "Network request failed. Check your connection or proxy settings."
	case ErrTimeoutFailure.Type:
		return "The request timed out."
	case ErrJSONParseFailure.Type:
		return "The server returned an unreadable response."
	case ErrHTTPStatusFailure.Type:
		return authErr.Message
	default:
		return "Cursor authentication failed. Please try again."
	}
}

// causeMessage renders the innermost meaningful message of a poll cause.
func causeMessage(cause error) string {
	if cause == nil {
		return "unknown error"
	}
	maskErrorURL(cause)
	var authErr *AuthenticationError
	if errors.As(cause, &authErr) {
		if authErr.Type == ErrHTTPStatusFailure.Type || authErr.Cause == nil {
			return authErr.Message
		}
		return fmt.Sprintf("%s: %v", authErr.Message, authErr.Cause)
	}
	return cause.Error()
}
