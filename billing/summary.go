/*
summary.go - Derived Billing Views

PURPOSE:
  Computes the read-side projections of the settlement model:

    charged        = attended + absent            (if the class bills absences)
                   = attended                      (otherwise)
    sessionsCovered = floor over aggregated payments per the pricing snapshot
    owedSessions   = max(0, charged - sessionsCovered)
    owedAmount     = owedSessions x sessionPrice  (per-session classes only)

  All fields here are DERIVED: nothing in this file writes. The stored
  balance and counters on the enrollment are the source; payments are
  re-aggregated on each read so coverage never drifts from the records.

SEE ALSO:
  - pricing.go: sessionsCovered derivation
  - attendance.go: the writes these views summarize
*/
package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/classledger/settlement-engine/ledger"
)

// EnrollmentSummary is the billing position of one enrollment.
type EnrollmentSummary struct {
	Enrollment ledger.Enrollment `json:"enrollment"`

	Charged         int `json:"charged"`
	SessionsCovered int `json:"sessions_covered"`
	OwedSessions    int `json:"owed_sessions"`

	// OwedAmount is only meaningful for per-session pricing; nil for
	// per-cycle classes where owed money is not well-defined.
	OwedAmount *decimal.Decimal `json:"owed_amount,omitempty"`

	Balance decimal.Decimal `json:"balance"`
}

// RosterEntry pairs a summary with the student's attendance status on a
// given date. Status is nil when the student is unmarked.
type RosterEntry struct {
	Summary EnrollmentSummary        `json:"summary"`
	Status  *ledger.AttendanceStatus `json:"status,omitempty"`
}

// RosterView is the per-date view of a class used by the marking UI.
type RosterView struct {
	Class   ledger.Class   `json:"class"`
	Date    ledger.DateKey `json:"date"`
	Entries []RosterEntry  `json:"entries"`
}

// SummaryBuilder assembles the derived views above from the store.
type SummaryBuilder struct {
	store ledger.Store
}

func NewSummaryBuilder(store ledger.Store) *SummaryBuilder {
	return &SummaryBuilder{store: store}
}

// EnrollmentSummary computes the billing position for one enrollment.
func (b *SummaryBuilder) EnrollmentSummary(ctx context.Context, school ledger.SchoolID, id ledger.EnrollmentID) (*EnrollmentSummary, error) {
	enr, err := b.store.GetEnrollment(ctx, school, id)
	if err != nil {
		return nil, err
	}
	if enr == nil {
		return nil, ledger.ErrEnrollmentNotFound
	}
	cls, err := b.store.GetClass(ctx, school, enr.Class)
	if err != nil {
		return nil, err
	}
	if cls == nil {
		return nil, ledger.ErrClassNotFound
	}
	return b.summarize(ctx, enr, cls)
}

func (b *SummaryBuilder) summarize(ctx context.Context, enr *ledger.Enrollment, cls *ledger.Class) (*EnrollmentSummary, error) {
	payments, err := b.store.ListPaymentsByEnrollment(ctx, enr.School, enr.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	charged := enr.Counters.Attended
	if cls.BillsAbsences {
		charged += enr.Counters.Absent
	}

	covered := sessionsCovered(enr.Pricing, payments)

	owed := charged - covered
	if owed < 0 {
		owed = 0
	}

	s := &EnrollmentSummary{
		Enrollment:      *enr,
		Charged:         charged,
		SessionsCovered: covered,
		OwedSessions:    owed,
		Balance:         enr.Balance,
	}
	if enr.Pricing.Model == ledger.PerSession {
		amount := enr.Pricing.SessionPrice.Mul(decimal.NewFromInt(int64(owed)))
		s.OwedAmount = &amount
	}
	return s, nil
}

// ClassRoster builds the per-date marking view: every enrollment in the
// class, each with its billing position and its status on that date.
func (b *SummaryBuilder) ClassRoster(ctx context.Context, school ledger.SchoolID, class ledger.ClassID, date ledger.DateKey) (*RosterView, error) {
	cls, err := b.store.GetClass(ctx, school, class)
	if err != nil {
		return nil, err
	}
	if cls == nil {
		return nil, ledger.ErrClassNotFound
	}

	enrollments, err := b.store.ListEnrollmentsByClass(ctx, school, class)
	if err != nil {
		return nil, err
	}
	marks, err := b.store.ListAttendanceByClassDate(ctx, school, class, date)
	if err != nil {
		return nil, err
	}
	byEnrollment := make(map[ledger.EnrollmentID]ledger.AttendanceStatus, len(marks))
	for _, m := range marks {
		byEnrollment[m.Enrollment] = m.Status
	}

	view := &RosterView{Class: *cls, Date: date, Entries: make([]RosterEntry, 0, len(enrollments))}
	for i := range enrollments {
		enr := &enrollments[i]
		sum, err := b.summarize(ctx, enr, cls)
		if err != nil {
			return nil, err
		}
		entry := RosterEntry{Summary: *sum}
		if st, ok := byEnrollment[enr.ID]; ok {
			status := st
			entry.Status = &status
		}
		view.Entries = append(view.Entries, entry)
	}
	return view, nil
}
