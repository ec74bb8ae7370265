/*
enrollments.go - Enrollment lifecycle with pricing snapshot capture

PURPOSE:
  Creates enrollments with an immutable copy of the class's pricing taken at
  that instant, so later class price edits never retroactively change what an
  existing student pays. Also owns status changes and cascade deletion.

INVARIANTS:
  1. At most one ACTIVE enrollment per (student, class); historical ones may
     coexist. Enforced by a partial unique index, surfaced as a conflict.
  2. The snapshot is validated against its declared model before the
     enrollment is written: a per_session class with no session price cannot
     be enrolled into.
  3. Deletion cascades: payments and attendance go first, in the same
     transaction, so the ledger never holds orphaned dependents.

SEE ALSO:
  - ledger/types.go: PricingSnapshot.Validate
  - recorder.go, attendance.go: the components that mutate what this creates
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/classledger/settlement-engine/ledger"
)

// Enrollments manages the enrollment lifecycle.
type Enrollments struct {
	store ledger.TxStore
}

func NewEnrollments(store ledger.TxStore) *Enrollments {
	return &Enrollments{store: store}
}

// CreateEnrollmentInput identifies who is enrolling into what.
type CreateEnrollmentInput struct {
	School  ledger.SchoolID
	Student ledger.StudentID
	Class   ledger.ClassID
}

// Create enrolls a student, copying the class's current pricing into the new
// enrollment by value. Returns ErrClassNotFound, a validation error for
// malformed pricing, or ErrDuplicateActiveEnrollment.
func (e *Enrollments) Create(ctx context.Context, in CreateEnrollmentInput) (*ledger.Enrollment, error) {
	if in.Student == "" {
		return nil, &ledger.ValidationError{Field: "student", Reason: "required"}
	}

	class, err := e.store.GetClass(ctx, in.School, in.Class)
	if err != nil {
		return nil, fmt.Errorf("lookup class: %w", err)
	}
	if class == nil {
		return nil, ledger.ErrClassNotFound
	}

	// Snapshot capture: reject enrollment if the class has no valid pricing
	// for its declared model.
	if err := class.Pricing.Validate(); err != nil {
		return nil, err
	}

	enr := ledger.Enrollment{
		ID:        ledger.EnrollmentID(uuid.NewString()),
		School:    in.School,
		Student:   in.Student,
		Class:     in.Class,
		Pricing:   class.Pricing,
		Status:    ledger.EnrollmentActive,
		CreatedAt: time.Now().UTC(),
	}

	if err := e.store.CreateEnrollment(ctx, enr); err != nil {
		return nil, err
	}
	return &enr, nil
}

// SetStatus moves an enrollment between active/paused/completed.
func (e *Enrollments) SetStatus(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID, status ledger.EnrollmentStatus) error {
	if !status.Valid() {
		return &ledger.ValidationError{Field: "status", Reason: "must be active, paused or completed"}
	}
	enr, err := e.store.GetEnrollment(ctx, school, id)
	if err != nil {
		return err
	}
	if enr == nil {
		return ledger.ErrEnrollmentNotFound
	}
	return e.store.SetEnrollmentStatus(ctx, school, id, status)
}

// Delete removes an enrollment and its dependents (payments, attendance) in
// one transaction. The enrollment row itself goes last.
func (e *Enrollments) Delete(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID) error {
	enr, err := e.store.GetEnrollment(ctx, school, id)
	if err != nil {
		return err
	}
	if enr == nil {
		return ledger.ErrEnrollmentNotFound
	}

	return e.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.DeletePaymentsByEnrollment(ctx, school, id); err != nil {
			return err
		}
		if err := tx.DeleteAttendanceByEnrollment(ctx, school, id); err != nil {
			return err
		}
		return tx.DeleteEnrollment(ctx, school, id)
	})
}
