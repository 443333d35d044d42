package gate

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain-level errors (no HTTP status codes)
var (
	ErrConfigurationError = errors.New("configuration error")
	ErrMissingSiteKey     = errors.New("turnstile site key is required")
	ErrMissingSecretKey   = errors.New("turnstile secret key is required")
	ErrSessionNotFound    = errors.New("session not found")
	ErrStoreUnavailable   = errors.New("session store unavailable")
	ErrVerifierTransport  = errors.New("verification endpoint unreachable")
	ErrVerifierProtocol   = errors.New("unexpected verification response")
)

// HTTPError provides structured error information for HTTP responses
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *HTTPError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// ErrorToHTTPStatus maps domain errors to HTTP status codes
func ErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrVerifierTransport):
		return http.StatusServiceUnavailable

	case errors.Is(err, ErrVerifierProtocol):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// ErrorToHTTPError converts domain errors to structured HTTP errors
func ErrorToHTTPError(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		return &HTTPError{Code: "STORE_UNAVAILABLE", Message: "Session store is currently unavailable"}
	case errors.Is(err, ErrVerifierTransport):
		return &HTTPError{Code: "VERIFIER_UNAVAILABLE", Message: "Verification service is currently unavailable"}
	case errors.Is(err, ErrConfigurationError):
		return &HTTPError{Code: "CONFIGURATION_ERROR", Message: "Service configuration error"}
	default:
		return &HTTPError{Code: "INTERNAL_ERROR", Message: "Internal gate error", Details: err.Error()}
	}
}
