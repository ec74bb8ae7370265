/*
attendance.go - Attendance Reconciler

PURPOSE:
  Applies attendance marks to enrollments and keeps the derived counters and
  session-credit balance consistent with them.

STATE MACHINE (per enrollment per date):

    unmarked --mark present--> present    (attended+1, balance-1)
    unmarked --mark absent--->  absent     (absent+1)
    present  --mark absent--->  absent     (attended-1, absent+1, balance+1)
    absent   --mark present--> present    (absent-1, attended+1, balance-1)
    same status re-marked                  no-op, prior record untouched
    any      --undo----------> unmarked   (exact reverse of the mark)

  Only PRESENT consumes credit. Absences affect the charged count on the
  read side when the class bills absences, never the stored balance.

CONCURRENCY:
  The prior mark is re-read INSIDE the transaction, and counters/balance move
  by additive deltas in the store, so two teachers marking the same roster
  concurrently cannot clobber each other's counts.

SEE ALSO:
  - summary.go: how the resulting counters are read back
  - ledger/store.go: ApplyCounterDelta / AddToBalance contracts
*/
package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/classledger/settlement-engine/ledger"
)

var (
	creditOne      = decimal.NewFromInt(1)
	creditMinusOne = decimal.NewFromInt(-1)
)

// Reconciler applies and reverses attendance marks.
type Reconciler struct {
	store   ledger.TxStore
	summary *SummaryBuilder
	sink    ActivitySink
}

func NewReconciler(store ledger.TxStore, sink ActivitySink) *Reconciler {
	if sink == nil {
		sink = NopSink{}
	}
	return &Reconciler{store: store, summary: NewSummaryBuilder(store), sink: sink}
}

// MarkInput identifies one (enrollment, date) cell and the status to set.
type MarkInput struct {
	School     ledger.SchoolID
	Enrollment ledger.EnrollmentID
	Date       ledger.DateKey
	Status     ledger.AttendanceStatus
	MarkedBy   string
}

// Mark sets the attendance status for one enrollment on one date, adjusting
// counters and balance by the transition's exact delta. Re-marking the same
// status is a no-op. Returns the refreshed roster for the class and date so
// the caller renders the post-mark state in one round trip.
func (r *Reconciler) Mark(ctx context.Context, in MarkInput) (*RosterView, error) {
	if !in.Status.Valid() {
		return nil, &ledger.ValidationError{Field: "status", Reason: "must be present or absent"}
	}
	if in.Date.IsZero() {
		return nil, &ledger.ValidationError{Field: "date", Reason: "required"}
	}

	enr, err := r.store.GetEnrollment(ctx, in.School, in.Enrollment)
	if err != nil {
		return nil, err
	}
	if enr == nil {
		return nil, ledger.ErrEnrollmentNotFound
	}

	var (
		overridden  bool
		priorStatus ledger.AttendanceStatus
		applied     ledger.Attendance
	)
	err = r.store.WithTx(ctx, func(tx ledger.Store) error {
		prior, err := tx.GetAttendance(ctx, in.School, in.Enrollment, in.Date)
		if err != nil {
			return err
		}
		if prior != nil && prior.Status == in.Status {
			return nil // same status, nothing to do
		}

		now := time.Now().UTC()
		rec := ledger.Attendance{
			School:     in.School,
			Class:      enr.Class,
			Student:    enr.Student,
			Enrollment: in.Enrollment,
			Date:       in.Date,
			Status:     in.Status,
			CreatedBy:  in.MarkedBy,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if prior != nil {
			rec.CreatedBy = prior.CreatedBy
			rec.CreatedAt = prior.CreatedAt
			overridden = true
			priorStatus = prior.Status
		}
		if err := tx.UpsertAttendance(ctx, rec); err != nil {
			return err
		}
		applied = rec

		attended, absent, balance := transitionDeltas(prior, in.Status)
		if err := tx.ApplyCounterDelta(ctx, in.School, in.Enrollment, attended, absent, in.Date); err != nil {
			return err
		}
		if !balance.IsZero() {
			return tx.AddToBalance(ctx, in.School, in.Enrollment, balance)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if overridden {
		r.sink.AttendanceOverridden(ctx, applied, priorStatus)
	}

	return r.summary.ClassRoster(ctx, in.School, enr.Class, in.Date)
}

// Undo removes the mark for (enrollment, date) and reverses its effects.
// Returns (roster, true) when a mark was actually removed and (nil, false)
// when the cell was already unmarked.
func (r *Reconciler) Undo(ctx context.Context, school ledger.SchoolID, enrollment ledger.EnrollmentID, date ledger.DateKey) (*RosterView, bool, error) {
	enr, err := r.store.GetEnrollment(ctx, school, enrollment)
	if err != nil {
		return nil, false, err
	}
	if enr == nil {
		return nil, false, ledger.ErrEnrollmentNotFound
	}

	var removed bool
	err = r.store.WithTx(ctx, func(tx ledger.Store) error {
		prior, err := tx.GetAttendance(ctx, school, enrollment, date)
		if err != nil {
			return err
		}
		if prior == nil {
			return nil
		}

		deleted, err := tx.DeleteAttendance(ctx, school, enrollment, date)
		if err != nil {
			return err
		}
		if !deleted {
			return nil
		}
		removed = true

		switch prior.Status {
		case ledger.Present:
			if err := tx.ApplyCounterDelta(ctx, school, enrollment, -1, 0, date); err != nil {
				return err
			}
			return tx.AddToBalance(ctx, school, enrollment, creditOne)
		case ledger.Absent:
			return tx.ApplyCounterDelta(ctx, school, enrollment, 0, -1, date)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !removed {
		return nil, false, nil
	}

	roster, err := r.summary.ClassRoster(ctx, school, enr.Class, date)
	if err != nil {
		return nil, false, err
	}
	return roster, true, nil
}

// transitionDeltas maps (prior status, new status) onto counter and balance
// deltas. prior == nil means the cell was unmarked.
func transitionDeltas(prior *ledger.Attendance, next ledger.AttendanceStatus) (attended, absent int, balance decimal.Decimal) {
	balance = decimal.Zero
	switch {
	case prior == nil && next == ledger.Present:
		return 1, 0, creditMinusOne
	case prior == nil && next == ledger.Absent:
		return 0, 1, decimal.Zero
	case prior.Status == ledger.Present && next == ledger.Absent:
		return -1, 1, creditOne
	case prior.Status == ledger.Absent && next == ledger.Present:
		return 1, -1, creditMinusOne
	}
	return 0, 0, decimal.Zero
}
