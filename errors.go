package deployment

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrUnknownDeployment indicates the requested deployment name was never registered.
	ErrUnknownDeployment = errors.New("deployment: unknown deployment")

	// ErrDeploymentUnavailable indicates the deployment is registered but not configured or reachable.
	ErrDeploymentUnavailable = errors.New("deployment: deployment unavailable")

	// ErrUnsupportedOperation indicates the adapter does not offer the requested capability.
	ErrUnsupportedOperation = errors.New("deployment: unsupported operation")

	// ErrInvalidRequest indicates the request was constructed incorrectly.
	ErrInvalidRequest = errors.New("deployment: invalid request")

	// ErrInvalidAPIKey indicates the API key is missing, malformed, or unauthorized.
	ErrInvalidAPIKey = errors.New("deployment: invalid API key")

	// ErrRateLimited indicates the upstream rate limit has been exceeded.
	ErrRateLimited = errors.New("deployment: rate limit exceeded")

	// ErrProviderUnavailable indicates the upstream service is down or unreachable.
	ErrProviderUnavailable = errors.New("deployment: provider unavailable")

	// ErrTimeout indicates the upstream call did not complete in time.
	ErrTimeout = errors.New("deployment: upstream timeout")
)

// DeploymentError is returned by the registry before any event is produced.
type DeploymentError struct {
	Name   string // The deployment that was requested
	Reason string // Human-readable explanation
	Err    error  // ErrUnknownDeployment or ErrDeploymentUnavailable
}

func (e *DeploymentError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("deployment '%s': %s (%v)", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("deployment '%s': %v", e.Name, e.Err)
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

// UnsupportedOperationError reports a capability the adapter does not offer.
type UnsupportedOperationError struct {
	Deployment string
	Operation  string // "rerank", "search_queries"
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("deployment '%s' does not support %s", e.Deployment, e.Operation)
}

func (e *UnsupportedOperationError) Unwrap() error {
	return ErrUnsupportedOperation
}

// ValidationError represents an error in request validation.
type ValidationError struct {
	Field  string // The field that failed validation
	Value  any    // The invalid value
	Reason string // Human-readable explanation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for '%s' (value: %v): %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// ProviderError represents an error from the underlying provider API.
type ProviderError struct {
	Provider   string // The provider name
	StatusCode int    // HTTP status code (if applicable)
	Message    string // Error message from provider
	Retryable  bool   // Whether this error is potentially retryable
	Err        error  // Wrapped sentinel error (ErrRateLimited, ErrProviderUnavailable, etc.)
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider '%s' error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider '%s' error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking stream producer.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("stream producer panicked: %v", e.Value)
}

// ErrorKind classifies a StreamError event.
type ErrorKind string

const (
	ErrorKindProtocolViolation ErrorKind = "PROTOCOL_VIOLATION" // adapter broke event ordering
	ErrorKindAdapterFault      ErrorKind = "ADAPTER_FAULT"      // adapter failed instead of emitting StreamError
	ErrorKindIncompleteStream  ErrorKind = "INCOMPLETE_STREAM"  // adapter stopped without a terminal event
	ErrorKindRateLimited       ErrorKind = "RATE_LIMITED"
	ErrorKindTransient         ErrorKind = "TRANSIENT"
	ErrorKindTimeout           ErrorKind = "TIMEOUT"
	ErrorKindInvalidRequest    ErrorKind = "INVALID_REQUEST"
	ErrorKindUnauthorized      ErrorKind = "UNAUTHORIZED"
	ErrorKindCancelled         ErrorKind = "CANCELLED"
)

// Retryable reports whether a caller may reasonably retry a request that
// ended with this kind of error.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindRateLimited, ErrorKindTransient, ErrorKindTimeout, ErrorKindIncompleteStream:
		return true
	default:
		return false
	}
}

// ErrorKindFor maps an upstream error to the StreamError kind adapters emit.
func ErrorKindFor(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindAdapterFault
	case errors.Is(err, context.Canceled):
		return ErrorKindCancelled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return ErrorKindTimeout
	case errors.Is(err, ErrRateLimited):
		return ErrorKindRateLimited
	case IsAuthError(err):
		return ErrorKindUnauthorized
	case IsInvalidRequest(err):
		return ErrorKindInvalidRequest
	case IsRetryable(err):
		return ErrorKindTransient
	default:
		return ErrorKindAdapterFault
	}
}

// IsRetryable checks if an error is potentially retryable.
// Returns true for rate limits, temporary unavailability, timeouts.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}

	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsInvalidRequest checks if an error indicates an invalid request.
// These errors are not retryable and require request changes.
func IsInvalidRequest(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidRequest) {
		return true
	}

	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsAuthError checks if an error is related to authentication.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidAPIKey) {
		return true
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		// HTTP 401/403 indicate auth issues
		return providerErr.StatusCode == 401 || providerErr.StatusCode == 403
	}

	return false
}

// ProviderErrorFromStatus builds a ProviderError for an HTTP status code
// returned by a hosted backend.
func ProviderErrorFromStatus(provider string, status int, message string, cause error) *ProviderError {
	pe := &ProviderError{
		Provider:   provider,
		StatusCode: status,
		Message:    message,
	}
	if pe.Message == "" && cause != nil {
		pe.Message = cause.Error()
	}

	switch {
	case status == 401 || status == 403:
		pe.Err = ErrInvalidAPIKey
	case status == 429:
		pe.Err = ErrRateLimited
		pe.Retryable = true
	case status == 408 || status == 504:
		pe.Err = ErrTimeout
		pe.Retryable = true
	case status >= 500:
		pe.Err = ErrProviderUnavailable
		pe.Retryable = true
	case status >= 400:
		pe.Err = ErrInvalidRequest
	default:
		pe.Err = ErrProviderUnavailable
	}
	return pe
}
