/*
errors.go - Centralized error types for the hall operations engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Core functions return these instead of panicking; the HTTP layer maps
  them to status codes.

ERROR CATEGORIES:
  1. Validation errors   - Shape or cross-reference failures, reported as
                           a complete list of path-tagged issues
  2. Precondition errors - One descriptive client error (no draft, missing
                           version, box over limit, missing field)
  3. Integrity errors    - Domain rejections carrying the offending entity
                           (restricted player, unverified check, variance)
  4. Store errors        - Not found, conflict, failed transaction

USAGE:
    if errors.Is(err, generic.ErrPrecondition) { ... }

    var verr *generic.ValidationError
    if errors.As(err, &verr) {
        for _, issue := range verr.Issues { ... }
    }

SEE ALSO:
  - opsschema/validate.go: Produces ValidationError
  - shift/totals.go: Produces PreconditionError
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrPrecondition is wrapped by every PreconditionError.
	ErrPrecondition = errors.New("precondition failed")

	// ErrIntegrity is wrapped by every IntegrityError.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write collides with existing state
	// (e.g. a second ACTIVE version).
	ErrConflict = errors.New("conflict")

	// ErrTransactionFailed is returned when a multi-record write could not
	// be committed. Prior state is left intact.
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// VALIDATION - Path-tagged issue lists
// =============================================================================

// Path locates a field inside a document. Elements are object keys
// (string) or array indexes (int).
type Path []any

// String renders the path as a dotted accessor, e.g. timeline.flowSegments[2].rate_card_id.
func (p Path) String() string {
	var b strings.Builder
	for _, el := range p {
		switch v := el.(type) {
		case int:
			b.WriteString("[" + strconv.Itoa(v) + "]")
		default:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(fmt.Sprint(v))
		}
	}
	return b.String()
}

// Issue is a single validation problem.
type Issue struct {
	Path    Path   `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewPath copies its arguments into a fresh Path so callers can keep
// appending to a shared prefix.
func NewPath(prefix Path, elems ...any) Path {
	p := make(Path, 0, len(prefix)+len(elems))
	p = append(p, prefix...)
	return append(p, elems...)
}

// ValidationError carries every issue found in one pass.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	first := e.Issues[0]
	if len(e.Issues) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", first.Path, first.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s (and %d more)", first.Path, first.Message, len(e.Issues)-1)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// =============================================================================
// PRECONDITION - Single client error with context
// =============================================================================

// PreconditionError reports an operation that cannot proceed given the
// current input or state.
type PreconditionError struct {
	Op      string         // e.g. "publish_schedule", "compute_totals"
	Reason  string         // human readable
	Context map[string]any // offending values / ids
}

func (e *PreconditionError) Error() string {
	if e.Op == "" {
		return e.Reason
	}
	return e.Op + ": " + e.Reason
}

func (e *PreconditionError) Unwrap() error {
	return ErrPrecondition
}

// Precondition builds a PreconditionError. kv is a flat list of
// key/value pairs added to Context.
func Precondition(op, reason string, kv ...any) *PreconditionError {
	e := &PreconditionError{Op: op, Reason: reason}
	if len(kv) > 0 {
		e.Context = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Context[fmt.Sprint(kv[i])] = kv[i+1]
		}
	}
	return e
}

// =============================================================================
// INTEGRITY - Domain rejection carrying the offending entity
// =============================================================================

// IntegrityError rejects a submission because of a domain rule.
type IntegrityError struct {
	Kind    string // e.g. "restricted_player", "unverified_check"
	Message string
	Entity  any
}

func (e *IntegrityError) Error() string {
	return e.Message
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPrecondition) ||
		errors.Is(err, ErrIntegrity)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error indicates conflicting state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
