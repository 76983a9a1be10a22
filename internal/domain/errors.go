package domain

import (
	"errors"
	"strconv"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a transport-level failure (connect, timeout,
// cancellation) that may be retriable. The underlying cause is preserved
// for errors.Is/As but never contains credential material.
type NetworkError struct {
	Op        string // Operation that failed (e.g., "connect", "read", "send")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return "network error [" + e.Op + "]: " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError rejects a structurally invalid request before any
// network call is made. Field names the offending parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error [" + e.Field + "]: " + e.Reason
}

func (e *ValidationError) IsRetriable() bool {
	return false
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ApiError carries an exchange-side rejection: the exchange's numeric
// error code and message plus the HTTP status it arrived with.
type ApiError struct {
	Code       int
	Message    string
	HTTPStatus int
}

func (e *ApiError) Error() string {
	return "api error: status=" + strconv.Itoa(e.HTTPStatus) +
		" code=" + strconv.Itoa(e.Code) + " msg=" + e.Message
}

// IsRetriable reports whether the rejection is worth retrying: server-side
// failures, rate limiting, and the exchange's transient codes qualify;
// everything else is a caller mistake.
func (e *ApiError) IsRetriable() bool {
	if e.HTTPStatus >= 500 || e.HTTPStatus == 429 || e.HTTPStatus == 418 {
		return true
	}
	switch e.Code {
	case -1001, -1003, -1015, -1016:
		return true
	}
	return false
}

// ProtocolError indicates a 2xx response whose body did not match the
// expected shape. Non-retriable: it signals contract drift, not a blip.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return "protocol error [" + e.Op + "]: " + e.Err.Error()
}

func (e *ProtocolError) IsRetriable() bool {
	return false
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

var (
	// ErrSymbolNotFound is returned when a symbol is not listed on the exchange. Not retriable.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrStreamAlreadyRunning is returned when a user-data stream worker is started twice
	ErrStreamAlreadyRunning = errors.New("user-data stream already running")

	// ErrConfigNotFound is returned when the configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
