// Package errors provides error handling for stratum.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Errorf       = crdb.Errorf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors shared across stratum.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested record or version does not exist
	ErrNotFound = New("not found")

	// ErrAlreadyExists indicates an identity collision on create
	ErrAlreadyExists = New("already exists")

	// ErrVersionConflict indicates a stale optimistic-concurrency token on
	// an ontology update
	ErrVersionConflict = New("version conflict")

	// ErrConcurrentModification indicates an entity write lost a race and
	// should be retried by the caller
	ErrConcurrentModification = New("concurrent modification")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrUnresolvedReference indicates ontology reference resolution ran
	// out of depth before reaching a terminal data type
	ErrUnresolvedReference = New("unresolved reference")

	// ErrInvalidPath indicates a query path that cannot be resolved at
	// compile time
	ErrInvalidPath = New("invalid query path")

	// ErrTypeNotFound indicates the type fetcher found no schema at the URL
	ErrTypeNotFound = New("type not found")

	// ErrUnreachable indicates the type fetcher could not reach its source
	ErrUnreachable = New("type source unreachable")

	// ErrInvalidSchema indicates a fetched document is not a valid schema
	ErrInvalidSchema = New("invalid schema")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsAlreadyExistsError checks if an error is or wraps ErrAlreadyExists.
func IsAlreadyExistsError(err error) bool {
	return err != nil && Is(err, ErrAlreadyExists)
}

// IsVersionConflictError checks if an error is or wraps ErrVersionConflict.
func IsVersionConflictError(err error) bool {
	return err != nil && Is(err, ErrVersionConflict)
}

// IsConcurrentModificationError reports whether the caller should retry the
// mutation that produced err.
func IsConcurrentModificationError(err error) bool {
	return err != nil && Is(err, ErrConcurrentModification)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}
