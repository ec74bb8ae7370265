package billing_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/classledger/settlement-engine/billing"
	"github.com/classledger/settlement-engine/ledger"
	"github.com/classledger/settlement-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testSchool = ledger.SchoolID("school-1")

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func perSessionClass(id, price string, billsAbsences bool) ledger.Class {
	return ledger.Class{
		ID:     ledger.ClassID(id),
		School: testSchool,
		Name:   "Math " + id,
		Pricing: ledger.PricingSnapshot{
			Model:        ledger.PerSession,
			SessionPrice: ledger.MustParseDecimal(price),
		},
		BillsAbsences: billsAbsences,
		Teacher:       "teacher-1",
	}
}

func perCycleClass(id string, cycleSize int, cyclePrice string) ledger.Class {
	return ledger.Class{
		ID:     ledger.ClassID(id),
		School: testSchool,
		Name:   "Chemistry " + id,
		Pricing: ledger.PricingSnapshot{
			Model:      ledger.PerCycle,
			CycleSize:  cycleSize,
			CyclePrice: ledger.MustParseDecimal(cyclePrice),
		},
		Teacher: "teacher-2",
	}
}

// enrollStudent saves the class and enrolls the student into it.
func enrollStudent(t *testing.T, store *sqlite.Store, c ledger.Class, student string) *ledger.Enrollment {
	ctx := context.Background()
	require.NoError(t, store.SaveClass(ctx, c))

	enr, err := billing.NewEnrollments(store).Create(ctx, billing.CreateEnrollmentInput{
		School:  testSchool,
		Student: ledger.StudentID(student),
		Class:   c.ID,
	})
	require.NoError(t, err)
	return enr
}

// paySessions records a units-based session payment.
func paySessions(t *testing.T, store *sqlite.Store, enr ledger.EnrollmentID, units int64, amount string) *billing.RecordPaymentResult {
	rec := billing.NewPaymentRecorder(store, billing.NopSink{})
	res, err := rec.Record(context.Background(), billing.RecordPaymentInput{
		School:     testSchool,
		Enrollment: enr,
		Amount:     ledger.MustParseDecimal(amount),
		Kind:       ledger.PaySessions,
		UnitType:   ledger.UnitSession,
		Units:      decimal.NewFromInt(units),
	})
	require.NoError(t, err)
	return res
}

// requireDecimalEqual compares by value, not string form ("3" vs "3.0").
func requireDecimalEqual(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, ledger.MustParseDecimal(want).Equal(got),
		"expected %s, got %s", want, got.String())
}
