/*
aggregator.go - Monthly Aggregator & Freezer

PURPOSE:
  Rolls one (school, year, month) of money movement into a MonthlySummary
  and manages its two-state lifecycle:

    live   -> recomputed from the records on every read
    frozen -> stored once, returned verbatim forever

  The transition is one-way and explicit. Freezing an already-frozen month
  is a CONFLICT, not a no-op: a second freeze attempt is an operator mistake
  that should surface, never silently overwrite audited figures.

PAYOUT GUARD:
  A teacher payout may not exceed the teacher's remaining unpaid share
  (lifetime earnings minus lifetime payouts). Violations reject with a
  structured PayoutError before any write.

SEE ALSO:
  - types.go: MonthlySummary field semantics
  - ledger/store.go: SumPaymentsTaken / TotalStudentDebt
*/
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classledger/settlement-engine/ledger"
)

// Aggregator computes, records, and freezes monthly money views.
type Aggregator struct {
	ledger ledger.Store
	fin    Store
}

func NewAggregator(ledgerStore ledger.Store, finStore Store) *Aggregator {
	return &Aggregator{ledger: ledgerStore, fin: finStore}
}

// =============================================================================
// Recording
// =============================================================================

// RecordEntryInput describes one manual income or expense line.
type RecordEntryInput struct {
	School     ledger.SchoolID
	Kind       EntryKind
	Amount     decimal.Decimal
	Note       string
	Date       ledger.DateKey
	RecordedBy string
}

func (a *Aggregator) RecordEntry(ctx context.Context, in RecordEntryInput) (*CashEntry, error) {
	if !in.Kind.Valid() {
		return nil, &ledger.ValidationError{Field: "kind", Reason: "must be income or expense"}
	}
	if !in.Amount.IsPositive() {
		return nil, &ledger.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if in.Date.IsZero() {
		return nil, &ledger.ValidationError{Field: "date", Reason: "required"}
	}
	e := CashEntry{
		ID:        uuid.NewString(),
		School:    in.School,
		Kind:      in.Kind,
		Amount:    in.Amount,
		Note:      in.Note,
		Date:      in.Date,
		CreatedBy: in.RecordedBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.fin.InsertCashEntry(ctx, e); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreditEarningInput credits a calculated share to a teacher.
type CreditEarningInput struct {
	School  ledger.SchoolID
	Teacher ledger.TeacherID
	Amount  decimal.Decimal
	Note    string
	Date    ledger.DateKey
}

func (a *Aggregator) CreditEarning(ctx context.Context, in CreditEarningInput) (*TeacherEarning, error) {
	if in.Teacher == "" {
		return nil, &ledger.ValidationError{Field: "teacher_id", Reason: "required"}
	}
	if !in.Amount.IsPositive() {
		return nil, &ledger.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if in.Date.IsZero() {
		return nil, &ledger.ValidationError{Field: "date", Reason: "required"}
	}
	e := TeacherEarning{
		ID:        uuid.NewString(),
		School:    in.School,
		Teacher:   in.Teacher,
		Amount:    in.Amount,
		Note:      in.Note,
		Date:      in.Date,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.fin.InsertTeacherEarning(ctx, e); err != nil {
		return nil, err
	}
	return &e, nil
}

// RecordPayoutInput pays out part of a teacher's accumulated share.
type RecordPayoutInput struct {
	School     ledger.SchoolID
	Teacher    ledger.TeacherID
	Calculated decimal.Decimal // share being settled; defaults to Paid when zero
	Paid       decimal.Decimal
	Date       ledger.DateKey
	RecordedBy string
}

// RecordPayout rejects payouts exceeding the teacher's remaining unpaid
// share and writes nothing in that case.
func (a *Aggregator) RecordPayout(ctx context.Context, in RecordPayoutInput) (*TeacherPayout, error) {
	if in.Teacher == "" {
		return nil, &ledger.ValidationError{Field: "teacher_id", Reason: "required"}
	}
	if !in.Paid.IsPositive() {
		return nil, &ledger.ValidationError{Field: "paid", Reason: "must be positive"}
	}
	if in.Date.IsZero() {
		return nil, &ledger.ValidationError{Field: "date", Reason: "required"}
	}

	earned, err := a.fin.SumTeacherEarnings(ctx, in.School, in.Teacher)
	if err != nil {
		return nil, fmt.Errorf("sum earnings: %w", err)
	}
	paidOut, err := a.fin.SumTeacherPayoutsPaid(ctx, in.School, in.Teacher)
	if err != nil {
		return nil, fmt.Errorf("sum payouts: %w", err)
	}
	remaining := earned.Sub(paidOut)
	if in.Paid.GreaterThan(remaining) {
		return nil, &ledger.PayoutError{Teacher: in.Teacher, Requested: in.Paid, Remaining: remaining}
	}

	calculated := in.Calculated
	if calculated.IsZero() {
		calculated = in.Paid
	}
	p := TeacherPayout{
		ID:         uuid.NewString(),
		School:     in.School,
		Teacher:    in.Teacher,
		Calculated: calculated,
		Paid:       in.Paid,
		Date:       in.Date,
		CreatedBy:  in.RecordedBy,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.fin.InsertTeacherPayout(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RecordSalaryInput records one salary installment.
type RecordSalaryInput struct {
	School     ledger.SchoolID
	Employee   string
	Calculated decimal.Decimal
	Paid       decimal.Decimal
	Date       ledger.DateKey
	RecordedBy string
}

func (a *Aggregator) RecordSalary(ctx context.Context, in RecordSalaryInput) (*SalaryPayment, error) {
	if in.Employee == "" {
		return nil, &ledger.ValidationError{Field: "employee", Reason: "required"}
	}
	if !in.Paid.IsPositive() {
		return nil, &ledger.ValidationError{Field: "paid", Reason: "must be positive"}
	}
	if in.Date.IsZero() {
		return nil, &ledger.ValidationError{Field: "date", Reason: "required"}
	}
	calculated := in.Calculated
	if calculated.IsZero() {
		calculated = in.Paid
	}
	s := SalaryPayment{
		ID:         uuid.NewString(),
		School:     in.School,
		Employee:   in.Employee,
		Calculated: calculated,
		Paid:       in.Paid,
		Date:       in.Date,
		CreatedBy:  in.RecordedBy,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.fin.InsertSalaryPayment(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// =============================================================================
// Aggregation
// =============================================================================

// ComputeLiveMonth rebuilds the month's summary from the records as they
// stand right now. OutstandingDebt is point-in-time, not month-scoped.
func (a *Aggregator) ComputeLiveMonth(ctx context.Context, school ledger.SchoolID, year int, month time.Month) (*MonthlySummary, error) {
	if !ledger.ValidMonth(year, int(month)) {
		return nil, &ledger.ValidationError{Field: "month", Reason: "out of range"}
	}

	payments, err := a.ledger.SumPaymentsTaken(ctx, school, year, month)
	if err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}
	manualIncome, err := a.fin.SumCashEntries(ctx, school, EntryIncome, year, month)
	if err != nil {
		return nil, fmt.Errorf("sum income entries: %w", err)
	}
	manualExpense, err := a.fin.SumCashEntries(ctx, school, EntryExpense, year, month)
	if err != nil {
		return nil, fmt.Errorf("sum expense entries: %w", err)
	}
	payoutsCalc, payoutsPaid, err := a.fin.SumPayoutsByMonth(ctx, school, year, month)
	if err != nil {
		return nil, fmt.Errorf("sum payouts: %w", err)
	}
	salariesCalc, salariesPaid, err := a.fin.SumSalariesByMonth(ctx, school, year, month)
	if err != nil {
		return nil, fmt.Errorf("sum salaries: %w", err)
	}
	debt, err := a.ledger.TotalStudentDebt(ctx, school)
	if err != nil {
		return nil, fmt.Errorf("total debt: %w", err)
	}

	income := payments.Add(manualIncome)
	expenses := manualExpense.Add(payoutsPaid).Add(salariesPaid)

	return &MonthlySummary{
		School:             school,
		Year:               year,
		Month:              month,
		StudentPayments:    payments,
		ManualIncome:       manualIncome,
		ManualExpense:      manualExpense,
		PayoutsCalculated:  payoutsCalc,
		PayoutsPaid:        payoutsPaid,
		SalariesCalculated: salariesCalc,
		SalariesPaid:       salariesPaid,
		OutstandingDebt:    debt,
		Income:             income,
		Expenses:           expenses,
		NetBalance:         income.Sub(expenses),
	}, nil
}

// Freeze recomputes the month and persists it as the permanent record.
// Fails with ErrMonthFrozen if the month was already frozen; the stored
// snapshot is never touched in that case.
func (a *Aggregator) Freeze(ctx context.Context, school ledger.SchoolID, year int, month time.Month, actor string) (*MonthlySummary, error) {
	existing, err := a.fin.GetFrozenSummary(ctx, school, year, month)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ledger.ErrMonthFrozen
	}

	s, err := a.ComputeLiveMonth(ctx, school, year, month)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	s.Frozen = true
	s.FrozenAt = &now
	s.FrozenBy = actor

	if err := a.fin.InsertFrozenSummary(ctx, *s); err != nil {
		return nil, err
	}
	return s, nil
}

// MonthView returns the frozen snapshot verbatim when one exists, and a
// live recomputation otherwise.
func (a *Aggregator) MonthView(ctx context.Context, school ledger.SchoolID, year int, month time.Month) (*MonthlySummary, error) {
	frozen, err := a.fin.GetFrozenSummary(ctx, school, year, month)
	if err != nil {
		return nil, err
	}
	if frozen != nil {
		return frozen, nil
	}
	return a.ComputeLiveMonth(ctx, school, year, month)
}
