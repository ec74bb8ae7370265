/*
Package ledger defines the data model for the settlement engine.

PURPOSE:
  This package contains the entities the settlement engine persists and the
  invariants they carry. The Ledger Store (store.go) is the source of truth
  for enrollment balances, payment records, attendance marks, student debt,
  and frozen monthly summaries.

KEY CONCEPTS IN THIS FILE (types.go):
  - Enrollment: one student's active relationship to one class, carrying an
    immutable pricing snapshot and a running session-credit balance
  - Payment: immutable audit record of money received
  - Attendance: one (enrollment, calendar date) mark
  - StudentFinancial: per-student aggregate debt, maintained by deltas

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every amount, price, balance and debt;
     fractional session credit is legitimate (partial payments)
  2. Tenant scoping: every entity carries its SchoolID; stores filter by it
     at query level, never as an afterthought check
  3. Immutability: payments are written once; corrections happen through new
     records, not edits
  4. Auditability: every payment carries the debt delta it applied, so
     StudentFinancial can be reconstructed by replaying payments

SEE ALSO:
  - date.go: DateKey, the timezone-neutral calendar date
  - store.go: persistence interfaces
  - errors.go: error taxonomy
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	SchoolID     string
	StudentID    string
	ClassID      string
	TeacherID    string
	EnrollmentID string
	PaymentID    string
)

// MustParseDecimal parses s, returning zero on failure. For constants and
// trusted storage values only; request input goes through DTO validation.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// PRICING SNAPSHOT - copied onto the enrollment at creation time
// =============================================================================

type PricingModel string

const (
	PerSession PricingModel = "per_session"
	PerCycle   PricingModel = "per_cycle"
)

// PricingSnapshot is an immutable copy of a class's billing terms, taken when
// the enrollment is created. Later class price edits never touch it.
//
// Exactly one of the per-session or per-cycle field groups is populated,
// matching Model.
type PricingSnapshot struct {
	Model        PricingModel
	SessionPrice decimal.Decimal // per_session only
	CycleSize    int             // per_cycle only, sessions per cycle
	CyclePrice   decimal.Decimal // per_cycle only
}

// Validate rejects snapshots whose populated fields do not match the declared
// model. Enrollment creation fails on an invalid snapshot.
func (p PricingSnapshot) Validate() error {
	switch p.Model {
	case PerSession:
		if !p.SessionPrice.IsPositive() {
			return &ValidationError{Field: "session_price", Reason: "per_session pricing requires a positive session price"}
		}
	case PerCycle:
		if p.CycleSize <= 0 {
			return &ValidationError{Field: "cycle_size", Reason: "per_cycle pricing requires a positive cycle size"}
		}
		if !p.CyclePrice.IsPositive() {
			return &ValidationError{Field: "cycle_price", Reason: "per_cycle pricing requires a positive cycle price"}
		}
	default:
		return &ValidationError{Field: "model", Reason: "unknown pricing model"}
	}
	return nil
}

// PerSessionPrice returns the effective price of a single session, or zero if
// the snapshot cannot express one (malformed or zero-size cycle).
func (p PricingSnapshot) PerSessionPrice() decimal.Decimal {
	switch p.Model {
	case PerSession:
		return p.SessionPrice
	case PerCycle:
		if p.CycleSize > 0 {
			return p.CyclePrice.Div(decimal.NewFromInt(int64(p.CycleSize)))
		}
	}
	return decimal.Zero
}

// =============================================================================
// CLASS - pricing configuration + absence-billing rule
// =============================================================================

// Class holds the slice of class configuration the settlement engine consumes:
// current pricing (source of enrollment snapshots), the absence-billing rule,
// and tenant/teacher ownership. Class CRUD and scheduling live outside the
// engine; this is the collaborator view of a class.
type Class struct {
	ID            ClassID
	School        SchoolID
	Name          string
	Pricing       PricingSnapshot
	BillsAbsences bool // absences count as charged sessions
	Teacher       TeacherID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// =============================================================================
// ENROLLMENT - student's relationship to a class
// =============================================================================

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentPaused    EnrollmentStatus = "paused"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

func (s EnrollmentStatus) Valid() bool {
	return s == EnrollmentActive || s == EnrollmentPaused || s == EnrollmentCompleted
}

// SessionCounters are the prematerialized attendance counters kept on the
// enrollment. Every mutation goes through the store's ApplyCounterDelta so
// they cannot drift from the attendance records.
type SessionCounters struct {
	Attended           int
	Absent             int
	LastAttendanceDate *DateKey // max-updated, never moves backward
}

// Enrollment is one student's relationship to one class.
//
// INVARIANT: at most one active enrollment per (student, class) pair.
// Balance is a signed number of consumable sessions; negative means the
// student owes sessions. Fractional balance is legitimate.
type Enrollment struct {
	ID       EnrollmentID
	School   SchoolID
	Student  StudentID
	Class    ClassID
	Pricing  PricingSnapshot
	Balance  decimal.Decimal
	Counters SessionCounters
	Status   EnrollmentStatus

	CreatedAt time.Time
}

// =============================================================================
// PAYMENT - immutable audit record of money received
// =============================================================================

type PaymentKind string

const (
	PaySessions PaymentKind = "pay_sessions"
	PayCycles   PaymentKind = "pay_cycles"
	DebtPayment PaymentKind = "debt_payment"
)

func (k PaymentKind) Valid() bool {
	return k == PaySessions || k == PayCycles || k == DebtPayment
}

type UnitType string

const (
	UnitSession UnitType = "session"
	UnitCycle   UnitType = "cycle"
)

// Payment records money received. Created once by the Payment Recorder;
// never updated afterwards; deleted only when its enrollment cascades away.
//
// INVARIANT: per enrollment, at most one payment per non-empty idempotency
// key. A duplicate submission with the same key returns the original record.
type Payment struct {
	ID         PaymentID
	School     SchoolID
	Class      ClassID      // empty for pure debt payments
	Student    StudentID
	Enrollment EnrollmentID // empty for pure debt payments

	Kind          PaymentKind
	UnitType      UnitType        // what was purchased, if unit-based
	Units         decimal.Decimal // how many units, if unit-based
	Amount        decimal.Decimal // expected price for the purchased units
	ExpectedPrice decimal.Decimal
	Taken         decimal.Decimal // actual cash received
	DebtDelta     decimal.Decimal // taken - expectedPrice

	IdempotencyKey string
	CreatedBy      string
	CreatedAt      time.Time
}

// =============================================================================
// ATTENDANCE - one (enrollment, calendar date) mark
// =============================================================================

type AttendanceStatus string

const (
	Present AttendanceStatus = "present"
	Absent  AttendanceStatus = "absent"
)

func (s AttendanceStatus) Valid() bool { return s == Present || s == Absent }

// Attendance is one mark. At most one record exists per (enrollment, date);
// "mark" overwrites, "undo" deletes and reverses the counter/balance effects.
type Attendance struct {
	School     SchoolID
	Class      ClassID
	Student    StudentID
	Enrollment EnrollmentID
	Date       DateKey
	Status     AttendanceStatus
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// =============================================================================
// STUDENT FINANCIAL - per-student aggregate debt
// =============================================================================

// StudentFinancial is the per (school, student) debt aggregate.
// Debt > 0 means the student owes the school; < 0 means the school owes the
// student. It is only ever moved by payment debt deltas (taken -
// expectedPrice), so it stays cheap to maintain and can be audited by
// replaying those deltas.
type StudentFinancial struct {
	School    SchoolID
	Student   StudentID
	Debt      decimal.Decimal
	UpdatedAt time.Time
}
