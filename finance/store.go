/*
store.go - Finance Persistence Contract

PURPOSE:
  What the aggregator and the recording helpers need from storage. Like the
  ledger contract, every method takes the school id and the implementation
  must scope at the query level.

  Frozen summaries are insert-once: InsertFrozenSummary must fail with
  ErrMonthFrozen when a row already exists for the (school, year, month),
  and nothing else ever writes to that table.

SEE ALSO:
  - ledger/store.go: the companion contract one implementation serves
  - store/sqlite: the implementation
*/
package finance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/classledger/settlement-engine/ledger"
)

// Store is the persistence surface for the finance records.
type Store interface {
	// =========================================================================
	// Manual cash entries
	// =========================================================================

	InsertCashEntry(ctx context.Context, e CashEntry) error

	// SumCashEntries totals manual entries of one kind within a month.
	SumCashEntries(ctx context.Context, school ledger.SchoolID, kind EntryKind, year int, month time.Month) (decimal.Decimal, error)

	ListCashEntriesByMonth(ctx context.Context, school ledger.SchoolID, year int, month time.Month) ([]CashEntry, error)

	// =========================================================================
	// Teacher earnings and payouts
	// =========================================================================

	InsertTeacherEarning(ctx context.Context, e TeacherEarning) error

	InsertTeacherPayout(ctx context.Context, p TeacherPayout) error

	// SumTeacherEarnings totals all earnings ever credited to the teacher.
	SumTeacherEarnings(ctx context.Context, school ledger.SchoolID, teacher ledger.TeacherID) (decimal.Decimal, error)

	// SumTeacherPayoutsPaid totals all cash ever paid out to the teacher.
	SumTeacherPayoutsPaid(ctx context.Context, school ledger.SchoolID, teacher ledger.TeacherID) (decimal.Decimal, error)

	// SumPayoutsByMonth returns (calculated, paid) totals across all
	// teachers for the month.
	SumPayoutsByMonth(ctx context.Context, school ledger.SchoolID, year int, month time.Month) (calculated, paid decimal.Decimal, err error)

	// =========================================================================
	// Employee salaries
	// =========================================================================

	InsertSalaryPayment(ctx context.Context, s SalaryPayment) error

	// SumSalariesByMonth returns (calculated, paid) salary totals for the
	// month.
	SumSalariesByMonth(ctx context.Context, school ledger.SchoolID, year int, month time.Month) (calculated, paid decimal.Decimal, err error)

	// =========================================================================
	// Frozen monthly summaries
	// =========================================================================

	// GetFrozenSummary returns (nil, nil) when the month was never frozen.
	GetFrozenSummary(ctx context.Context, school ledger.SchoolID, year int, month time.Month) (*MonthlySummary, error)

	// InsertFrozenSummary persists a frozen summary. Fails with
	// ledger.ErrMonthFrozen if the month already has one.
	InsertFrozenSummary(ctx context.Context, s MonthlySummary) error

	// ListActiveSchools returns the schools with any financial activity
	// (payments taken, cash entries, earnings, payouts or salaries) in the
	// month. Used by the freeze scheduler to find months worth closing.
	ListActiveSchools(ctx context.Context, year int, month time.Month) ([]ledger.SchoolID, error)
}
