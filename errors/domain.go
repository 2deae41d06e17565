package errors

import (
	"fmt"
	"strings"
)

// NotFoundError reports a missing record, naming what was looked up.
// Matches ErrNotFound under errors.Is.
type NotFoundError struct {
	Kind string // "entity", "data type", "property type", "entity type", "account"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadyExistsError reports an identity collision on create.
// Matches ErrAlreadyExists under errors.Is.
type AlreadyExistsError struct {
	Kind string
	ID   string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.ID)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// VersionConflictError reports a stale optimistic-concurrency token on an
// ontology update. Matches ErrVersionConflict under errors.Is.
type VersionConflictError struct {
	BaseURL  string
	Expected uint32 // version the store would have accepted
	Actual   uint32 // version the caller supplied
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %q: expected version %d, got %d",
		e.BaseURL, e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// ConcurrentModificationError reports an entity write that lost a race with
// another writer. The caller decides whether to retry. Matches
// ErrConcurrentModification under errors.Is.
type ConcurrentModificationError struct {
	EntityID string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification of entity %q", e.EntityID)
}

func (e *ConcurrentModificationError) Unwrap() error { return ErrConcurrentModification }

// Violation codes reported by ValidationError.
const (
	ViolationMissingRequiredProperty = "missing-required-property"
	ViolationUnexpectedProperty      = "unexpected-property"
	ViolationWrongDataType           = "wrong-data-type"
	ViolationNotAnArray              = "not-an-array"
	ViolationArrayTooShort           = "array-too-short"
	ViolationArrayTooLong            = "array-too-long"
	ViolationUnknownPropertyRef      = "unknown-property-reference"
)

// Violation is one schema violation found while validating an entity.
type Violation struct {
	Code     string
	Path     string // slash-separated path into the property tree
	Expected string
	Actual   string
}

func (v Violation) String() string {
	s := v.Code
	if v.Path != "" {
		s += " at " + v.Path
	}
	if v.Expected != "" {
		s += fmt.Sprintf(" (expected %s", v.Expected)
		if v.Actual != "" {
			s += ", got " + v.Actual
		}
		s += ")"
	} else if v.Actual != "" {
		s += fmt.Sprintf(" (got %s)", v.Actual)
	}
	return s
}

// ValidationError enumerates every violation found while validating an
// entity against its resolved schema, not just the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("validation failed with %d violation(s): %s",
		len(e.Violations), strings.Join(parts, "; "))
}

// Add appends a violation.
func (e *ValidationError) Add(v Violation) {
	e.Violations = append(e.Violations, v)
}

// OrNil returns nil when no violations were collected, so callers can
// return the result directly.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Violations) == 0 {
		return nil
	}
	return e
}

// TypeMismatchError reports a link whose shape its source entity type does
// not allow: either the link type itself is not declared on the source, or
// the destination's entity type is outside the allowed set.
type TypeMismatchError struct {
	Endpoint string // "link", "left", or "right"
	Expected []string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	expected := "any"
	if len(e.Expected) > 0 {
		expected = strings.Join(e.Expected, ", ")
	}
	return fmt.Sprintf("%s entity type mismatch: expected one of [%s], got %q",
		e.Endpoint, expected, e.Actual)
}

// UnresolvedReferenceError reports an ontology reference that could not be
// resolved within the hop budget.
type UnresolvedReferenceError struct {
	Reference string
	Depth     int
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference %q: resolution depth %d exhausted",
		e.Reference, e.Depth)
}

func (e *UnresolvedReferenceError) Unwrap() error { return ErrUnresolvedReference }

// InvalidPathError reports a query attribute path rejected at compile time.
type InvalidPathError struct {
	Path    []string
	Segment string
	Reason  string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid query path %v at segment %q: %s",
		e.Path, e.Segment, e.Reason)
}

func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }

// InvalidSchemaError reports a fetched document that failed schema decoding
// or whose $id does not match the requested URL.
type InvalidSchemaError struct {
	URL    string
	Reason string
}

func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("invalid schema at %q: %s", e.URL, e.Reason)
}

func (e *InvalidSchemaError) Unwrap() error { return ErrInvalidSchema }
