/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario loader sets up the state it promises:
	- Enrollments exist with the documented balances
	- Debt directions show up on student financials
	- The month-close dataset freezes into sensible figures
*/
package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classledger/settlement-engine/billing"
	"github.com/classledger/settlement-engine/ledger"
	"github.com/classledger/settlement-engine/store/sqlite"
)

func setupTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewHandler(store, store, billing.NopSink{})
}

func TestScenario_SmallStudio(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()

	ids, err := h.loadSmallStudio(ctx, "demo-test")
	require.NoError(t, err)
	require.Len(t, ids, 3)

	// amal: 4 sessions paid, 2 attended.
	amal, err := h.Store.GetEnrollment(ctx, "demo-test", ids[0])
	require.NoError(t, err)
	assert.Equal(t, "2", amal.Balance.String())
	assert.Equal(t, 2, amal.Counters.Attended)

	// boris: 2 paid, 3 attended; balance went negative.
	boris, err := h.Store.GetEnrollment(ctx, "demo-test", ids[1])
	require.NoError(t, err)
	assert.Equal(t, "-1", boris.Balance.String())
	sum, err := h.Summary.EnrollmentSummary(ctx, "demo-test", ids[1])
	require.NoError(t, err)
	assert.Equal(t, 1, sum.OwedSessions)

	// chen: one absence in an absence-billing class, nothing covered.
	chen, err := h.Summary.EnrollmentSummary(ctx, "demo-test", ids[2])
	require.NoError(t, err)
	assert.Equal(t, 1, chen.Charged)
	assert.Equal(t, 0, chen.SessionsCovered)
}

func TestScenario_CycleAcademy(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()

	ids, err := h.loadCycleAcademy(ctx, "demo-test")
	require.NoError(t, err)
	require.Len(t, ids, 2)

	// One full cycle of credit each, two sessions attended.
	dana, err := h.Store.GetEnrollment(ctx, "demo-test", ids[0])
	require.NoError(t, err)
	assert.Equal(t, "6", dana.Balance.String())

	// dana paid 200 under the expected price, erik 100 over.
	danaFin, err := h.Store.GetStudentFinancial(ctx, "demo-test", "dana")
	require.NoError(t, err)
	require.NotNil(t, danaFin)
	assert.Equal(t, "-200", danaFin.Debt.String())

	erikFin, err := h.Store.GetStudentFinancial(ctx, "demo-test", "erik")
	require.NoError(t, err)
	require.NotNil(t, erikFin)
	assert.Equal(t, "100", erikFin.Debt.String())
}

func TestScenario_MonthClose(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()

	_, err := h.loadMonthClose(ctx, "demo-test")
	require.NoError(t, err)

	now := time.Now().UTC()
	sum, err := h.Aggregator.Freeze(ctx, "demo-test", now.Year(), now.Month(), "test")
	require.NoError(t, err)

	// 2400 tuition + 350 manual income; 180 + 800 payout + 900 salary out.
	assert.Equal(t, "2750", sum.Income.String())
	assert.Equal(t, "1880", sum.Expenses.String())
	assert.Equal(t, "870", sum.NetBalance.String())
	assert.True(t, sum.Frozen)
}

func TestScenario_LoadsAreIsolated(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()

	_, err := h.loadSmallStudio(ctx, "demo-a")
	require.NoError(t, err)
	_, err = h.loadSmallStudio(ctx, "demo-b")
	require.NoError(t, err)

	roster, err := h.Summary.ClassRoster(ctx, "demo-a", "guitar", ledger.Today())
	require.NoError(t, err)
	assert.Len(t, roster.Entries, 3)
}
