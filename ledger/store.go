/*
store.go - Persistence interfaces for the settlement ledger

PURPOSE:
  Defines the contract between the settlement logic and the database. The
  Ledger Store is the source of truth; everything speaking to it goes
  through these interfaces so the sqlite implementation can be swapped.

ATOMICITY CONTRACT:
  The Payment Recorder and Attendance Reconciler each apply several writes
  as ONE logical unit (payment insert + balance increment + debt upsert;
  attendance upsert + counter delta + balance delta). TxStore.WithTx makes
  the group atomic: partial application is a correctness bug, not an
  acceptable outcome.

ADDITIVE UPDATES:
  AddToBalance, ApplyCounterDelta and ApplyDebtDelta are increments executed
  in the database, not read-modify-write on a value fetched earlier in the
  request. Concurrent payments for the same enrollment interleave without
  lost updates; counter deltas computed inside WithTx see the prior
  attendance state re-read under the same transaction.

TENANT SCOPING:
  Every method takes the SchoolID and filters by it in the query itself.
  Cross-tenant access is impossible by construction.

IMPLEMENTATIONS:
  - store/sqlite: production store (WAL mode, unique indexes enforcing the
    idempotency and one-mark-per-day invariants)

SEE ALSO:
  - types.go: the entities
  - billing: the write-side components built on this
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Source-of-truth persistence
// =============================================================================

type Store interface {
	// ---- classes (collaborator view: pricing config + absence rule) ----

	SaveClass(ctx context.Context, c Class) error
	GetClass(ctx context.Context, school SchoolID, id ClassID) (*Class, error)

	// ---- enrollments ----

	// CreateEnrollment persists a new enrollment. Returns
	// ErrDuplicateActiveEnrollment if the (student, class) pair already has
	// an active one.
	CreateEnrollment(ctx context.Context, e Enrollment) error

	// GetEnrollment returns nil, nil when absent (including out-of-tenant).
	GetEnrollment(ctx context.Context, school SchoolID, id EnrollmentID) (*Enrollment, error)

	ListEnrollmentsByClass(ctx context.Context, school SchoolID, class ClassID) ([]Enrollment, error)

	// AddToBalance increments the enrollment balance in place (additive,
	// executed in the database).
	AddToBalance(ctx context.Context, school SchoolID, id EnrollmentID, delta decimal.Decimal) error

	// ApplyCounterDelta adjusts the attended/absent counters and max-updates
	// lastAttendanceDate (it never moves backward). Deltas may be negative.
	ApplyCounterDelta(ctx context.Context, school SchoolID, id EnrollmentID, attended, absent int, seen DateKey) error

	SetEnrollmentStatus(ctx context.Context, school SchoolID, id EnrollmentID, status EnrollmentStatus) error

	// DeleteEnrollment removes the enrollment row only. Dependents must be
	// deleted first (cascade handled by billing.Enrollments inside WithTx);
	// returns ErrEnrollmentHasDependents otherwise.
	DeleteEnrollment(ctx context.Context, school SchoolID, id EnrollmentID) error

	// ---- payments ----

	// InsertPayment writes an immutable payment record. Returns
	// ErrDuplicatePaymentKey on an (enrollment, idempotency key) collision.
	InsertPayment(ctx context.Context, p Payment) error

	// GetPaymentByKey returns nil, nil when no payment carries the key.
	GetPaymentByKey(ctx context.Context, school SchoolID, enrollment EnrollmentID, key string) (*Payment, error)

	ListPaymentsByEnrollment(ctx context.Context, school SchoolID, enrollment EnrollmentID) ([]Payment, error)

	DeletePaymentsByEnrollment(ctx context.Context, school SchoolID, enrollment EnrollmentID) error

	// SumPaymentsTaken totals the cash taken in a month for class-linked,
	// non-debt payments. Used by the monthly aggregator.
	SumPaymentsTaken(ctx context.Context, school SchoolID, year int, month time.Month) (decimal.Decimal, error)

	// ---- attendance ----

	// UpsertAttendance creates or overwrites the (enrollment, date) mark.
	UpsertAttendance(ctx context.Context, a Attendance) error

	// GetAttendance returns nil, nil when the day is unmarked.
	GetAttendance(ctx context.Context, school SchoolID, enrollment EnrollmentID, date DateKey) (*Attendance, error)

	// DeleteAttendance removes the mark; reports whether a row existed.
	DeleteAttendance(ctx context.Context, school SchoolID, enrollment EnrollmentID, date DateKey) (bool, error)

	ListAttendanceByClassDate(ctx context.Context, school SchoolID, class ClassID, date DateKey) ([]Attendance, error)

	DeleteAttendanceByEnrollment(ctx context.Context, school SchoolID, enrollment EnrollmentID) error

	// ---- student financials ----

	// ApplyDebtDelta upserts the per-student debt aggregate by delta. A zero
	// delta still touches the row so UpdatedAt reflects the latest payment.
	ApplyDebtDelta(ctx context.Context, school SchoolID, student StudentID, delta decimal.Decimal) error

	// GetStudentFinancial returns nil, nil when the student has no record.
	GetStudentFinancial(ctx context.Context, school SchoolID, student StudentID) (*StudentFinancial, error)

	// TotalStudentDebt sums outstanding debt across the school (point in
	// time, used by the monthly aggregator).
	TotalStudentDebt(ctx context.Context, school SchoolID) (decimal.Decimal, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support. fn runs against a Store view
// bound to one database transaction; an error rolls everything back.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
