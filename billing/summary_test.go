package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classledger/settlement-engine/billing"
	"github.com/classledger/settlement-engine/ledger"
)

func summarize(t *testing.T, store ledger.Store, enr ledger.EnrollmentID) *billing.EnrollmentSummary {
	t.Helper()
	sum, err := billing.NewSummaryBuilder(store).EnrollmentSummary(context.Background(), testSchool, enr)
	require.NoError(t, err)
	return sum
}

// =============================================================================
// CHARGED / COVERED / OWED
// =============================================================================

func TestSummary_OwedSessions_PerSession(t *testing.T) {
	// GIVEN: 2 sessions paid (1000 at 500), 3 attended
	// WHEN: summarizing
	// THEN: charged=3, covered=2, owed=1, owedAmount=500

	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")
	paySessions(t, store, enr.ID, 2, "1000")

	r := newReconciler(store)
	mark(t, r, enr.ID, ledger.NewDateKey(2026, 3, 2), ledger.Present)
	mark(t, r, enr.ID, ledger.NewDateKey(2026, 3, 4), ledger.Present)
	mark(t, r, enr.ID, ledger.NewDateKey(2026, 3, 6), ledger.Present)

	sum := summarize(t, store, enr.ID)
	assert.Equal(t, 3, sum.Charged)
	assert.Equal(t, 2, sum.SessionsCovered)
	assert.Equal(t, 1, sum.OwedSessions)
	require.NotNil(t, sum.OwedAmount)
	requireDecimalEqual(t, "500", *sum.OwedAmount)
}

func TestSummary_OwedNeverNegative(t *testing.T) {
	// Overpayment yields zero owed, not negative.

	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")
	paySessions(t, store, enr.ID, 10, "5000")

	mark(t, newReconciler(store), enr.ID, ledger.NewDateKey(2026, 3, 2), ledger.Present)

	sum := summarize(t, store, enr.ID)
	assert.Equal(t, 1, sum.Charged)
	assert.Equal(t, 10, sum.SessionsCovered)
	assert.Equal(t, 0, sum.OwedSessions)
	requireDecimalEqual(t, "0", *sum.OwedAmount)
}

func TestSummary_AbsenceBillingRule(t *testing.T) {
	// The same attendance history charges differently depending on the
	// class's absence-billing flag.

	for _, tc := range []struct {
		name          string
		billsAbsences bool
		wantCharged   int
	}{
		{"absences charged", true, 3},
		{"absences free", false, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t)
			enr := enrollStudent(t, store, perSessionClass("math", "500", tc.billsAbsences), "student-1")
			paySessions(t, store, enr.ID, 5, "2500")

			r := newReconciler(store)
			mark(t, r, enr.ID, ledger.NewDateKey(2026, 3, 2), ledger.Present)
			mark(t, r, enr.ID, ledger.NewDateKey(2026, 3, 4), ledger.Present)
			mark(t, r, enr.ID, ledger.NewDateKey(2026, 3, 6), ledger.Absent)

			sum := summarize(t, store, enr.ID)
			assert.Equal(t, tc.wantCharged, sum.Charged)
		})
	}
}

// =============================================================================
// COVERAGE DERIVATION PER PRICING MODEL
// =============================================================================

func TestSummary_CoverageFloors_PerSession(t *testing.T) {
	// 1250 of session payments at 500/session covers floor(2.5) = 2.

	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")

	rec := billing.NewPaymentRecorder(store, billing.NopSink{})
	_, err := rec.Record(context.Background(), billing.RecordPaymentInput{
		School:     testSchool,
		Enrollment: enr.ID,
		Amount:     ledger.MustParseDecimal("1250"),
		Kind:       ledger.PaySessions,
	})
	require.NoError(t, err)

	sum := summarize(t, store, enr.ID)
	assert.Equal(t, 2, sum.SessionsCovered)
}

func TestSummary_CoverageFloors_PerCycle(t *testing.T) {
	// 3000 of cycle payments at 2000/cycle covers floor(1.5) = 1 whole
	// cycle = 4 sessions. OwedAmount is undefined for per-cycle pricing.

	store := newTestStore(t)
	enr := enrollStudent(t, store, perCycleClass("chem", 4, "2000"), "student-1")

	rec := billing.NewPaymentRecorder(store, billing.NopSink{})
	_, err := rec.Record(context.Background(), billing.RecordPaymentInput{
		School:     testSchool,
		Enrollment: enr.ID,
		Amount:     ledger.MustParseDecimal("3000"),
		Kind:       ledger.PayCycles,
	})
	require.NoError(t, err)

	sum := summarize(t, store, enr.ID)
	assert.Equal(t, 4, sum.SessionsCovered)
	assert.Nil(t, sum.OwedAmount)
}

func TestSummary_DebtPaymentsExcludedFromCoverage(t *testing.T) {
	// A debt settlement is cash, not session coverage.

	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")

	rec := billing.NewPaymentRecorder(store, billing.NopSink{})
	_, err := rec.Record(context.Background(), billing.RecordPaymentInput{
		School:     testSchool,
		Enrollment: enr.ID,
		Amount:     ledger.MustParseDecimal("1000"),
		Kind:       ledger.DebtPayment,
	})
	require.NoError(t, err)

	sum := summarize(t, store, enr.ID)
	assert.Equal(t, 0, sum.SessionsCovered)
}

// =============================================================================
// STEADY-STATE AGREEMENT
// =============================================================================

func TestSummary_BalanceAgreesWithRecomputation(t *testing.T) {
	// The running balance and the point-in-time recomputation tell the
	// same story: covered - charged == balance in the steady state.

	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")
	paySessions(t, store, enr.ID, 4, "2000")

	r := newReconciler(store)
	mark(t, r, enr.ID, ledger.NewDateKey(2026, 3, 2), ledger.Present)
	mark(t, r, enr.ID, ledger.NewDateKey(2026, 3, 4), ledger.Present)
	mark(t, r, enr.ID, ledger.NewDateKey(2026, 3, 6), ledger.Present)

	sum := summarize(t, store, enr.ID)
	assert.Equal(t, 3, sum.Charged)
	assert.Equal(t, 4, sum.SessionsCovered)
	requireDecimalEqual(t, "1", sum.Balance)
}

// =============================================================================
// ROSTER VIEW
// =============================================================================

func TestSummary_ClassRoster(t *testing.T) {
	store := newTestStore(t)
	class := perSessionClass("math", "500", false)
	a := enrollStudent(t, store, class, "student-a")
	enrollStudent(t, store, class, "student-b")
	paySessions(t, store, a.ID, 2, "1000")

	date := ledger.NewDateKey(2026, 3, 10)
	mark(t, newReconciler(store), a.ID, date, ledger.Present)

	roster, err := billing.NewSummaryBuilder(store).ClassRoster(context.Background(), testSchool, class.ID, date)
	require.NoError(t, err)
	require.Len(t, roster.Entries, 2)
	assert.Equal(t, class.ID, roster.Class.ID)

	byStudent := map[ledger.StudentID]billing.RosterEntry{}
	for _, e := range roster.Entries {
		byStudent[e.Summary.Enrollment.Student] = e
	}
	require.NotNil(t, byStudent["student-a"].Status)
	assert.Equal(t, ledger.Present, *byStudent["student-a"].Status)
	assert.Nil(t, byStudent["student-b"].Status)

	_, err = billing.NewSummaryBuilder(store).ClassRoster(context.Background(), testSchool, "missing", date)
	assert.ErrorIs(t, err, ledger.ErrClassNotFound)
}
