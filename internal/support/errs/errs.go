// Package errs provides the typed error values used throughout gridpulse.
// Errors are categorized by Kind so the cycle runner can decide which
// sub-tasks failed and whether the process may continue.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	// KindFetch marks upstream data-fetch failures: unreachable provider,
	// bad credentials, malformed payload.
	KindFetch Kind = iota
	// KindStorage marks persistent-store failures: connection acquisition
	// timeout, migration failure, write failure.
	KindStorage
	// KindAvailability marks zero-usable-rows conditions: empty dataset after
	// filtering, no overlap between joined series.
	KindAvailability
	// KindConfig marks invalid or incomplete configuration. Always fatal at
	// startup, never raised mid-cycle.
	KindConfig
	// KindInternal marks in-process failures that are neither upstream nor
	// storage related: chart rendering, file export, post delivery.
	KindInternal
)

// String returns the canonical name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindStorage:
		return "storage"
	case KindAvailability:
		return "availability"
	case KindConfig:
		return "config"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the application error type. It records the module that raised it,
// a concise message, the classification Kind and the wrapped cause.
type Error struct {
	// Module indicates where the error occurred (e.g. "store", "nrc", "syncer").
	Module string
	// Message is a concise description of the error.
	Message string
	// Kind classifies the error for the caller's handling policy.
	Kind Kind
	// Err is the wrapped original error, may be nil.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Module, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Module, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// New creates a typed error.
func New(kind Kind, module, message string, cause error) *Error {
	return &Error{Module: module, Message: message, Kind: kind, Err: cause}
}

// Newf creates a typed error with a formatted message.
func Newf(kind Kind, module, format string, a ...interface{}) *Error {
	return &Error{Module: module, Message: fmt.Sprintf(format, a...), Kind: kind}
}

// FetchError creates a KindFetch error.
func FetchError(module, message string, cause error) *Error {
	return New(KindFetch, module, message, cause)
}

// StorageError creates a KindStorage error.
func StorageError(module, message string, cause error) *Error {
	return New(KindStorage, module, message, cause)
}

// AvailabilityError creates a KindAvailability error.
func AvailabilityError(module, message string, cause error) *Error {
	return New(KindAvailability, module, message, cause)
}

// ConfigError creates a KindConfig error.
func ConfigError(module, message string, cause error) *Error {
	return New(KindConfig, module, message, cause)
}

// InternalError creates a KindInternal error.
func InternalError(module, message string, cause error) *Error {
	return New(KindInternal, module, message, cause)
}

// IsKind reports whether err (or anything it wraps) is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// IsFetch reports whether err is classified as a fetch error.
func IsFetch(err error) bool { return IsKind(err, KindFetch) }

// IsStorage reports whether err is classified as a storage error.
func IsStorage(err error) bool { return IsKind(err, KindStorage) }

// IsAvailability reports whether err is classified as a data-availability error.
func IsAvailability(err error) bool { return IsKind(err, KindAvailability) }

// IsConfig reports whether err is classified as a configuration error.
func IsConfig(err error) bool { return IsKind(err, KindConfig) }
