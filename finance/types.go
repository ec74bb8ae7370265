/*
types.go - Finance Domain Model

PURPOSE:
  Records the money flows that live OUTSIDE the enrollment ledger: manual
  income/expense entries, teacher payouts against their earned share, and
  employee salary payments, plus the monthly summary they roll up into.

  Every record carries a calendar date so it lands in exactly one monthly
  bucket, and a school id so tenancy is enforced at the query level like
  everywhere else.

SEE ALSO:
  - aggregator.go: how these roll up into MonthlySummary
  - store.go: persistence contract
*/
package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/classledger/settlement-engine/ledger"
)

// EntryKind classifies a manual cash entry.
type EntryKind string

const (
	EntryIncome  EntryKind = "income"
	EntryExpense EntryKind = "expense"
)

func (k EntryKind) Valid() bool {
	return k == EntryIncome || k == EntryExpense
}

// CashEntry is a manual income or expense line recorded by an operator,
// outside the student-payment flow.
type CashEntry struct {
	ID     string          `json:"id"`
	School ledger.SchoolID `json:"school_id"`
	Kind   EntryKind       `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
	Date   ledger.DateKey  `json:"date"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TeacherEarning is a calculated share credited to a teacher, typically a
// cut of class income. Earnings accumulate; payouts draw them down.
type TeacherEarning struct {
	ID      string           `json:"id"`
	School  ledger.SchoolID  `json:"school_id"`
	Teacher ledger.TeacherID `json:"teacher_id"`
	Amount  decimal.Decimal  `json:"amount"`
	Note    string           `json:"note,omitempty"`
	Date    ledger.DateKey   `json:"date"`

	CreatedAt time.Time `json:"created_at"`
}

// TeacherPayout is cash actually handed to a teacher. Paid may differ from
// the calculated share being settled; both are kept for the
// calculated-vs-paid breakdown.
type TeacherPayout struct {
	ID         string           `json:"id"`
	School     ledger.SchoolID  `json:"school_id"`
	Teacher    ledger.TeacherID `json:"teacher_id"`
	Calculated decimal.Decimal  `json:"calculated"`
	Paid       decimal.Decimal  `json:"paid"`
	Date       ledger.DateKey   `json:"date"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SalaryPayment is a salary installment for a non-teaching employee.
type SalaryPayment struct {
	ID         string          `json:"id"`
	School     ledger.SchoolID `json:"school_id"`
	Employee   string          `json:"employee"`
	Calculated decimal.Decimal `json:"calculated"`
	Paid       decimal.Decimal `json:"paid"`
	Date       ledger.DateKey  `json:"date"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MonthlySummary is the rolled-up money view of one (school, year, month).
//
// While live it is recomputed on every read. Once frozen it is stored and
// returned verbatim forever; the freeze fields are set exactly once.
type MonthlySummary struct {
	School ledger.SchoolID `json:"school_id"`
	Year   int             `json:"year"`
	Month  time.Month      `json:"month"`

	StudentPayments decimal.Decimal `json:"student_payments"`
	ManualIncome    decimal.Decimal `json:"manual_income"`
	ManualExpense   decimal.Decimal `json:"manual_expense"`

	PayoutsCalculated  decimal.Decimal `json:"payouts_calculated"`
	PayoutsPaid        decimal.Decimal `json:"payouts_paid"`
	SalariesCalculated decimal.Decimal `json:"salaries_calculated"`
	SalariesPaid       decimal.Decimal `json:"salaries_paid"`

	// OutstandingDebt is point-in-time at computation: what students owed
	// the school when the summary was (re)built or frozen.
	OutstandingDebt decimal.Decimal `json:"outstanding_debt"`

	Income     decimal.Decimal `json:"income"`
	Expenses   decimal.Decimal `json:"expenses"`
	NetBalance decimal.Decimal `json:"net_balance"`

	Frozen   bool       `json:"frozen"`
	FrozenAt *time.Time `json:"frozen_at,omitempty"`
	FrozenBy string     `json:"frozen_by,omitempty"`
}
