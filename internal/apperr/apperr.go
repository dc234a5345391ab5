// Package apperr holds the error taxonomy shared by the session core, the
// approval workflows and the gateway client.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated indicates a missing or authoritatively rejected token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates a valid identity lacking a capability.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a locally rejected request.
	ErrValidation = errors.New("validation failed")
	// ErrTransient indicates a failure presumed recoverable by retry.
	ErrTransient = errors.New("transient network error")
	// ErrStale is returned alongside a retained cached identity after a transient failure.
	ErrStale = fmt.Errorf("using cached identity: %w", ErrTransient)
)

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Kind buckets errors for policy lookups.
type Kind string

const (
	KindNone            Kind = ""
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not-found"
	KindValidation      Kind = "validation"
	KindTransient       Kind = "transient"
	KindUnknown         Kind = "unknown"
)

// KindOf classifies err. Unclassified errors report KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}
