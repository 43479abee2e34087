package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeStatus represents a non-success HTTP status from the portal
	ErrorTypeStatus ErrorType = "status"
	// ErrorTypeParsing represents markup or payload parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeExport represents output persistence errors
	ErrorTypeExport ErrorType = "export"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = stderrors.New("retry attempts exhausted")

	// ErrBlocked is returned while the portal is marked as rate limited.
	ErrBlocked = stderrors.New("portal temporarily blocked")
)

// ScrapeError represents a scraper-specific error
type ScrapeError struct {
	Type      ErrorType
	Component string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeStatus, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, component, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(component, message string, err error) *ScrapeError {
	return New(ErrorTypeNetwork, component, message, err)
}

// NewStatus creates a new error for an unexpected HTTP status
func NewStatus(component string, status int) *ScrapeError {
	return New(ErrorTypeStatus, component, fmt.Sprintf("unexpected status code: %d", status), nil)
}

// NewParsing creates a new parsing error
func NewParsing(component, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, component, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(component string, duration time.Duration) *ScrapeError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, component, message, nil)
}

// NewCache creates a new cache error
func NewCache(component, message string, err error) *ScrapeError {
	return New(ErrorTypeCache, component, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(component, message string, err error) *ScrapeError {
	return New(ErrorTypePublisher, component, message, err)
}

// NewExport creates a new export error
func NewExport(format, message string, err error) *ScrapeError {
	return New(ErrorTypeExport, format, message, err)
}

// NewValidation creates a new validation error
func NewValidation(component, message string) *ScrapeError {
	return New(ErrorTypeValidation, component, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "config", message, err)
}

// TransientFetchError is returned once a request has failed with retryable
// errors on every allowed attempt.
type TransientFetchError struct {
	Endpoint string
	Attempts int
	Err      error
}

// Error implements the error interface
func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempts: %v", e.Endpoint, ErrRetryExhausted, e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error
func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// Is reports ErrRetryExhausted as a match
func (e *TransientFetchError) Is(target error) bool {
	return target == ErrRetryExhausted
}

// IsTransient reports whether err is, or wraps, a TransientFetchError
func IsTransient(err error) bool {
	var tfe *TransientFetchError
	return stderrors.As(err, &tfe)
}

// IsRetryable reports whether another attempt may succeed. A ScrapeError
// decides by its type, so a request timeout wrapped as a network error still
// retries. Bare context errors never retry and anything else does.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.IsRetryable()
	}
	return !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded)
}

// IsType reports whether err wraps a ScrapeError of the given type
func IsType(err error, errType ErrorType) bool {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Type == errType
	}
	return false
}
