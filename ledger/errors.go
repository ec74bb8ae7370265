/*
errors.go - Centralized error taxonomy for the settlement engine

PURPOSE:
  All error kinds in one place so callers can classify failures without
  string matching. The taxonomy follows the operational contract:

  1. Validation errors - rejected before any write (bad date, bad enum,
     missing linkage, malformed pricing)
  2. Not-found errors - entity absent or out of the caller's tenant
  3. Conflict errors - duplicate active enrollment, re-freezing a frozen
     month, payout exceeding remaining share; callers may retry with
     different input but not the same one
  4. Idempotent replay - a duplicate payment key is NOT an error; the
     recorder resolves it to "return the original record"

USAGE:
  Handlers map the classes to HTTP statuses:

    if ledger.IsNotFound(err)   -> 404
    if ledger.IsConflict(err)   -> 409
    if ledger.IsValidation(err) -> 400

SEE ALSO:
  - store.go: which operations surface which errors
  - api/handlers.go: the HTTP mapping
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEnrollmentNotFound is returned when an enrollment does not exist or
	// belongs to a different school than the caller's.
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrClassNotFound is returned when a referenced class doesn't exist in
	// the caller's school.
	ErrClassNotFound = errors.New("class not found")

	// ErrStudentNotFound is returned when a referenced student has no records
	// in the caller's school.
	ErrStudentNotFound = errors.New("student not found")

	// ErrDuplicateActiveEnrollment is returned when creating a second active
	// enrollment for the same (student, class) pair.
	ErrDuplicateActiveEnrollment = errors.New("student already has an active enrollment in this class")

	// ErrDuplicatePaymentKey is returned by the store when a payment insert
	// collides on (enrollment, idempotency key). The recorder resolves this
	// to an idempotent replay; it never reaches API callers as an error.
	ErrDuplicatePaymentKey = errors.New("duplicate payment idempotency key")

	// ErrMonthFrozen is returned when freezing a month that already has a
	// frozen summary. Freezing is deliberately not idempotent so operators
	// notice accidental double-freezes.
	ErrMonthFrozen = errors.New("month is already frozen")

	// ErrPayoutExceedsRemaining is returned when a teacher payout is larger
	// than the teacher's remaining unpaid share.
	ErrPayoutExceedsRemaining = errors.New("payout exceeds remaining unpaid share")

	// ErrEnrollmentHasDependents is returned when deleting an enrollment
	// without cascading while payments or attendance still reference it.
	ErrEnrollmentHasDependents = errors.New("enrollment still has payments or attendance")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError reports client input rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// PayoutError carries the figures behind ErrPayoutExceedsRemaining so the
// caller can render what was actually available.
type PayoutError struct {
	Teacher   TeacherID
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *PayoutError) Error() string {
	return fmt.Sprintf("payout of %s exceeds remaining %s for teacher %s", e.Requested, e.Remaining, e.Teacher)
}

func (e *PayoutError) Unwrap() error { return ErrPayoutExceedsRemaining }

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsNotFound reports whether the error means "entity absent or out of tenant
// scope", a 404-equivalent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEnrollmentNotFound) ||
		errors.Is(err, ErrClassNotFound) ||
		errors.Is(err, ErrStudentNotFound)
}

// IsConflict reports whether the error is a state conflict, distinct from
// validation so callers can decide retry-with-different-input vs terminal.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateActiveEnrollment) ||
		errors.Is(err, ErrMonthFrozen) ||
		errors.Is(err, ErrPayoutExceedsRemaining) ||
		errors.Is(err, ErrEnrollmentHasDependents)
}

// IsValidation reports whether the error is rejected client input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
