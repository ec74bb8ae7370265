package finance_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classledger/settlement-engine/billing"
	"github.com/classledger/settlement-engine/finance"
	"github.com/classledger/settlement-engine/ledger"
	"github.com/classledger/settlement-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testSchool = ledger.SchoolID("school-1")

func newTestAggregator(t *testing.T) (*finance.Aggregator, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return finance.NewAggregator(store, store), store
}

func dec(s string) decimal.Decimal { return ledger.MustParseDecimal(s) }

// thisMonth returns the current accounting month; payments recorded "now"
// land in it.
func thisMonth() (int, time.Month, ledger.DateKey) {
	now := time.Now().UTC()
	return now.Year(), now.Month(), ledger.DateKeyOf(now)
}

// seedClassPayment enrolls a student and records a class-linked payment of
// the given taken amount, dated now.
func seedClassPayment(t *testing.T, store *sqlite.Store, student, taken string) {
	t.Helper()
	ctx := context.Background()

	class := ledger.Class{
		ID:     "math",
		School: testSchool,
		Name:   "Math",
		Pricing: ledger.PricingSnapshot{
			Model:        ledger.PerSession,
			SessionPrice: dec("500"),
		},
	}
	require.NoError(t, store.SaveClass(ctx, class))

	enr, err := billing.NewEnrollments(store).Create(ctx, billing.CreateEnrollmentInput{
		School:  testSchool,
		Student: ledger.StudentID(student),
		Class:   class.ID,
	})
	require.NoError(t, err)

	_, err = billing.NewPaymentRecorder(store, billing.NopSink{}).Record(ctx, billing.RecordPaymentInput{
		School:     testSchool,
		Enrollment: enr.ID,
		Amount:     dec(taken),
		Kind:       ledger.PaySessions,
	})
	require.NoError(t, err)
}

// =============================================================================
// LIVE MONTH COMPUTATION
// =============================================================================

func TestAggregator_ComputeLiveMonth(t *testing.T) {
	// GIVEN: a class payment, manual entries, a payout and a salary in the
	//        current month
	// WHEN: computing the live view
	// THEN: income = payments + manual income; expenses = manual expense +
	//       payouts paid + salaries paid; net = income - expenses

	agg, store := newTestAggregator(t)
	ctx := context.Background()
	year, month, today := thisMonth()

	seedClassPayment(t, store, "student-1", "1500")

	_, err := agg.RecordEntry(ctx, finance.RecordEntryInput{
		School: testSchool, Kind: finance.EntryIncome, Amount: dec("200"),
		Note: "book sale", Date: today,
	})
	require.NoError(t, err)
	_, err = agg.RecordEntry(ctx, finance.RecordEntryInput{
		School: testSchool, Kind: finance.EntryExpense, Amount: dec("100"),
		Note: "supplies", Date: today,
	})
	require.NoError(t, err)

	_, err = agg.CreditEarning(ctx, finance.CreditEarningInput{
		School: testSchool, Teacher: "teacher-1", Amount: dec("600"), Date: today,
	})
	require.NoError(t, err)
	_, err = agg.RecordPayout(ctx, finance.RecordPayoutInput{
		School: testSchool, Teacher: "teacher-1", Paid: dec("400"), Date: today,
	})
	require.NoError(t, err)

	_, err = agg.RecordSalary(ctx, finance.RecordSalaryInput{
		School: testSchool, Employee: "janitor", Paid: dec("300"), Date: today,
	})
	require.NoError(t, err)

	sum, err := agg.ComputeLiveMonth(ctx, testSchool, year, month)
	require.NoError(t, err)

	assert.True(t, dec("1500").Equal(sum.StudentPayments), "payments: %s", sum.StudentPayments)
	assert.True(t, dec("200").Equal(sum.ManualIncome))
	assert.True(t, dec("100").Equal(sum.ManualExpense))
	assert.True(t, dec("400").Equal(sum.PayoutsPaid))
	assert.True(t, dec("300").Equal(sum.SalariesPaid))
	assert.True(t, dec("1700").Equal(sum.Income), "income: %s", sum.Income)
	assert.True(t, dec("800").Equal(sum.Expenses), "expenses: %s", sum.Expenses)
	assert.True(t, dec("900").Equal(sum.NetBalance), "net: %s", sum.NetBalance)
	assert.False(t, sum.Frozen)
}

func TestAggregator_ComputeLiveMonth_ScopesTenant(t *testing.T) {
	// Another school's records never leak into the month view.

	agg, store := newTestAggregator(t)
	ctx := context.Background()
	year, month, today := thisMonth()

	seedClassPayment(t, store, "student-1", "1500")
	_, err := agg.RecordEntry(ctx, finance.RecordEntryInput{
		School: "school-2", Kind: finance.EntryIncome, Amount: dec("9999"), Date: today,
	})
	require.NoError(t, err)

	sum, err := agg.ComputeLiveMonth(ctx, testSchool, year, month)
	require.NoError(t, err)
	assert.True(t, sum.ManualIncome.IsZero())
	assert.True(t, dec("1500").Equal(sum.Income))
}

func TestAggregator_RecordEntry_Validation(t *testing.T) {
	agg, _ := newTestAggregator(t)
	_, _, today := thisMonth()

	_, err := agg.RecordEntry(context.Background(), finance.RecordEntryInput{
		School: testSchool, Kind: "donation", Amount: dec("10"), Date: today,
	})
	assert.True(t, ledger.IsValidation(err))

	_, err = agg.RecordEntry(context.Background(), finance.RecordEntryInput{
		School: testSchool, Kind: finance.EntryIncome, Amount: dec("0"), Date: today,
	})
	assert.True(t, ledger.IsValidation(err))
}

// =============================================================================
// PAYOUT GUARD
// =============================================================================

func TestAggregator_Payout_ExceedingRemainingShare_Conflict(t *testing.T) {
	// GIVEN: teacher earned 500 total
	// WHEN: paying out 600
	// THEN: conflict with the figures attached, and nothing is written

	agg, store := newTestAggregator(t)
	ctx := context.Background()
	_, _, today := thisMonth()

	_, err := agg.CreditEarning(ctx, finance.CreditEarningInput{
		School: testSchool, Teacher: "teacher-1", Amount: dec("500"), Date: today,
	})
	require.NoError(t, err)

	_, err = agg.RecordPayout(ctx, finance.RecordPayoutInput{
		School: testSchool, Teacher: "teacher-1", Paid: dec("600"), Date: today,
	})
	require.Error(t, err)
	assert.True(t, ledger.IsConflict(err), "expected conflict, got %v", err)

	var payoutErr *ledger.PayoutError
	require.ErrorAs(t, err, &payoutErr)
	assert.True(t, dec("600").Equal(payoutErr.Requested))
	assert.True(t, dec("500").Equal(payoutErr.Remaining))

	paid, err := store.SumTeacherPayoutsPaid(ctx, testSchool, "teacher-1")
	require.NoError(t, err)
	assert.True(t, paid.IsZero(), "no payout should be written, got %s", paid)
}

func TestAggregator_Payout_DrawsDownRemaining(t *testing.T) {
	// Consecutive payouts draw the share down to exactly zero; one more
	// unit fails.

	agg, _ := newTestAggregator(t)
	ctx := context.Background()
	_, _, today := thisMonth()

	_, err := agg.CreditEarning(ctx, finance.CreditEarningInput{
		School: testSchool, Teacher: "teacher-1", Amount: dec("500"), Date: today,
	})
	require.NoError(t, err)

	_, err = agg.RecordPayout(ctx, finance.RecordPayoutInput{
		School: testSchool, Teacher: "teacher-1", Paid: dec("300"), Date: today,
	})
	require.NoError(t, err)
	_, err = agg.RecordPayout(ctx, finance.RecordPayoutInput{
		School: testSchool, Teacher: "teacher-1", Paid: dec("200"), Date: today,
	})
	require.NoError(t, err)

	_, err = agg.RecordPayout(ctx, finance.RecordPayoutInput{
		School: testSchool, Teacher: "teacher-1", Paid: dec("1"), Date: today,
	})
	assert.ErrorIs(t, err, ledger.ErrPayoutExceedsRemaining)
}

// =============================================================================
// FREEZE STATE MACHINE
// =============================================================================

func TestAggregator_Freeze_OneWayTransition(t *testing.T) {
	// GIVEN: a live month
	// WHEN: frozen, then frozen again
	// THEN: first freeze persists the snapshot; second is a conflict and
	//       leaves the stored snapshot untouched

	agg, store := newTestAggregator(t)
	ctx := context.Background()
	year, month, _ := thisMonth()

	seedClassPayment(t, store, "student-1", "1500")

	frozen, err := agg.Freeze(ctx, testSchool, year, month, "owner@school")
	require.NoError(t, err)
	assert.True(t, frozen.Frozen)
	require.NotNil(t, frozen.FrozenAt)
	assert.Equal(t, "owner@school", frozen.FrozenBy)

	_, err = agg.Freeze(ctx, testSchool, year, month, "owner@school")
	assert.ErrorIs(t, err, ledger.ErrMonthFrozen)
	assert.True(t, ledger.IsConflict(err))
}

func TestAggregator_FrozenMonth_ReturnedVerbatim(t *testing.T) {
	// GIVEN: a frozen month
	// WHEN: more payments land in that month afterwards
	// THEN: the view still shows the frozen figures, not a recomputation

	agg, store := newTestAggregator(t)
	ctx := context.Background()
	year, month, _ := thisMonth()

	seedClassPayment(t, store, "student-1", "1500")
	_, err := agg.Freeze(ctx, testSchool, year, month, "owner@school")
	require.NoError(t, err)

	seedClassPayment(t, store, "student-2", "9000")

	view, err := agg.MonthView(ctx, testSchool, year, month)
	require.NoError(t, err)
	assert.True(t, view.Frozen)
	assert.True(t, dec("1500").Equal(view.StudentPayments),
		"frozen figure changed: %s", view.StudentPayments)

	// The live recomputation does see the new payment.
	live, err := agg.ComputeLiveMonth(ctx, testSchool, year, month)
	require.NoError(t, err)
	assert.True(t, dec("10500").Equal(live.StudentPayments))
}

func TestAggregator_MonthView_FallsBackToLive(t *testing.T) {
	// Historic months without a freeze are recomputed so the system works
	// before anyone remembers to freeze.

	agg, store := newTestAggregator(t)
	ctx := context.Background()
	year, month, _ := thisMonth()

	seedClassPayment(t, store, "student-1", "1500")

	view, err := agg.MonthView(ctx, testSchool, year, month)
	require.NoError(t, err)
	assert.False(t, view.Frozen)
	assert.True(t, dec("1500").Equal(view.StudentPayments))
}

func TestAggregator_Freeze_InvalidMonth(t *testing.T) {
	agg, _ := newTestAggregator(t)
	_, err := agg.Freeze(context.Background(), testSchool, 1995, time.March, "x")
	assert.True(t, ledger.IsValidation(err))
}

// =============================================================================
// OUTSTANDING DEBT
// =============================================================================

func TestAggregator_OutstandingDebt_PointInTime(t *testing.T) {
	// A payment taken above its expected price raises the student's debt
	// aggregate, which the month view reports point-in-time.

	agg, store := newTestAggregator(t)
	ctx := context.Background()
	year, month, _ := thisMonth()

	class := ledger.Class{
		ID: "math", School: testSchool, Name: "Math",
		Pricing: ledger.PricingSnapshot{Model: ledger.PerSession, SessionPrice: dec("500")},
	}
	require.NoError(t, store.SaveClass(ctx, class))
	enr, err := billing.NewEnrollments(store).Create(ctx, billing.CreateEnrollmentInput{
		School: testSchool, Student: "student-1", Class: class.ID,
	})
	require.NoError(t, err)

	expected := dec("1000")
	taken := dec("1200")
	_, err = billing.NewPaymentRecorder(store, billing.NopSink{}).Record(ctx, billing.RecordPaymentInput{
		School: testSchool, Enrollment: enr.ID,
		Amount: dec("1000"), Kind: ledger.PaySessions,
		ExpectedPrice: &expected, Taken: &taken,
	})
	require.NoError(t, err)

	sum, err := agg.ComputeLiveMonth(ctx, testSchool, year, month)
	require.NoError(t, err)
	assert.True(t, dec("200").Equal(sum.OutstandingDebt), "debt: %s", sum.OutstandingDebt)
}
