package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classledger/settlement-engine/billing"
	"github.com/classledger/settlement-engine/ledger"
)

func newReconciler(store ledger.TxStore) *billing.Reconciler {
	return billing.NewReconciler(store, billing.NopSink{})
}

func mark(t *testing.T, r *billing.Reconciler, enr ledger.EnrollmentID, date ledger.DateKey, status ledger.AttendanceStatus) *billing.RosterView {
	t.Helper()
	roster, err := r.Mark(context.Background(), billing.MarkInput{
		School:     testSchool,
		Enrollment: enr,
		Date:       date,
		Status:     status,
		MarkedBy:   "manager-1",
	})
	require.NoError(t, err)
	return roster
}

// =============================================================================
// STATE MACHINE TRANSITIONS
// =============================================================================

func TestReconciler_FreshPresent_ConsumesOneSession(t *testing.T) {
	// GIVEN: 3 sessions of prepaid balance
	// WHEN: marking present on one date
	// THEN: attended=1, balance 3 -> 2

	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")
	paySessions(t, store, enr.ID, 3, "1500")

	mark(t, newReconciler(store), enr.ID, ledger.NewDateKey(2026, 3, 10), ledger.Present)

	reread, err := store.GetEnrollment(context.Background(), testSchool, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reread.Counters.Attended)
	assert.Equal(t, 0, reread.Counters.Absent)
	requireDecimalEqual(t, "2", reread.Balance)
}

func TestReconciler_FreshAbsent_NoConsumption(t *testing.T) {
	// Absences never debit the balance; absence charging is a reporting
	// concern on the summary side.

	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", true), "student-1")
	paySessions(t, store, enr.ID, 3, "1500")

	mark(t, newReconciler(store), enr.ID, ledger.NewDateKey(2026, 3, 10), ledger.Absent)

	reread, err := store.GetEnrollment(context.Background(), testSchool, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reread.Counters.Attended)
	assert.Equal(t, 1, reread.Counters.Absent)
	requireDecimalEqual(t, "3", reread.Balance)
}

func TestReconciler_SameStatusRemark_NoOp(t *testing.T) {
	// Re-marking the same status consumes nothing further.

	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")
	paySessions(t, store, enr.ID, 3, "1500")

	r := newReconciler(store)
	date := ledger.NewDateKey(2026, 3, 10)
	mark(t, r, enr.ID, date, ledger.Present)
	mark(t, r, enr.ID, date, ledger.Present)

	reread, err := store.GetEnrollment(context.Background(), testSchool, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reread.Counters.Attended)
	requireDecimalEqual(t, "2", reread.Balance)
}

func TestReconciler_PresentToAbsent_RefundsSession(t *testing.T) {
	// GIVEN: a present mark (one session consumed)
	// WHEN: corrected to absent
	// THEN: counters swap, the session comes back

	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")
	paySessions(t, store, enr.ID, 3, "1500")

	r := newReconciler(store)
	date := ledger.NewDateKey(2026, 3, 10)
	mark(t, r, enr.ID, date, ledger.Present)
	mark(t, r, enr.ID, date, ledger.Absent)

	reread, err := store.GetEnrollment(context.Background(), testSchool, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reread.Counters.Attended)
	assert.Equal(t, 1, reread.Counters.Absent)
	requireDecimalEqual(t, "3", reread.Balance)
}

func TestReconciler_AbsentToPresent_ConsumesSession(t *testing.T) {
	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")
	paySessions(t, store, enr.ID, 3, "1500")

	r := newReconciler(store)
	date := ledger.NewDateKey(2026, 3, 10)
	mark(t, r, enr.ID, date, ledger.Absent)
	mark(t, r, enr.ID, date, ledger.Present)

	reread, err := store.GetEnrollment(context.Background(), testSchool, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reread.Counters.Attended)
	assert.Equal(t, 0, reread.Counters.Absent)
	requireDecimalEqual(t, "2", reread.Balance)
}

// =============================================================================
// UNDO
// =============================================================================

func TestReconciler_Undo_ReversesPresentMark(t *testing.T) {
	// GIVEN: a present mark
	// WHEN: undone
	// THEN: the cell is unmarked and the state matches never-marked exactly

	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")
	paySessions(t, store, enr.ID, 3, "1500")

	r := newReconciler(store)
	date := ledger.NewDateKey(2026, 3, 10)
	mark(t, r, enr.ID, date, ledger.Present)

	roster, removed, err := r.Undo(context.Background(), testSchool, enr.ID, date)
	require.NoError(t, err)
	assert.True(t, removed)
	require.NotNil(t, roster)

	reread, err := store.GetEnrollment(context.Background(), testSchool, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reread.Counters.Attended)
	requireDecimalEqual(t, "3", reread.Balance)

	gone, err := store.GetAttendance(context.Background(), testSchool, enr.ID, date)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestReconciler_Undo_AbsentMark_NoBalanceChange(t *testing.T) {
	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")
	paySessions(t, store, enr.ID, 3, "1500")

	r := newReconciler(store)
	date := ledger.NewDateKey(2026, 3, 10)
	mark(t, r, enr.ID, date, ledger.Absent)

	_, removed, err := r.Undo(context.Background(), testSchool, enr.ID, date)
	require.NoError(t, err)
	assert.True(t, removed)

	reread, err := store.GetEnrollment(context.Background(), testSchool, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reread.Counters.Absent)
	requireDecimalEqual(t, "3", reread.Balance)
}

func TestReconciler_Undo_UnmarkedCell_IsNoOp(t *testing.T) {
	// "Nothing to undo" is a signal, not an error.

	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")

	roster, removed, err := newReconciler(store).Undo(
		context.Background(), testSchool, enr.ID, ledger.NewDateKey(2026, 3, 10))
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Nil(t, roster)
}

// =============================================================================
// LAST ATTENDANCE DATE
// =============================================================================

func TestReconciler_LastAttendanceDate_NeverMovesBackward(t *testing.T) {
	// Marking an older date after a newer one leaves the high-water mark.

	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")
	paySessions(t, store, enr.ID, 5, "2500")

	r := newReconciler(store)
	newer := ledger.NewDateKey(2026, 3, 20)
	older := ledger.NewDateKey(2026, 3, 5)
	mark(t, r, enr.ID, newer, ledger.Present)
	mark(t, r, enr.ID, older, ledger.Present)

	reread, err := store.GetEnrollment(context.Background(), testSchool, enr.ID)
	require.NoError(t, err)
	require.NotNil(t, reread.Counters.LastAttendanceDate)
	assert.True(t, reread.Counters.LastAttendanceDate.Equal(newer),
		"expected %s, got %s", newer, reread.Counters.LastAttendanceDate)
}

// =============================================================================
// ROSTER RETURN
// =============================================================================

func TestReconciler_Mark_ReturnsFreshRoster(t *testing.T) {
	// The returned roster reflects the mark just applied, so the caller
	// renders the post-mark state in one round trip.

	store := newTestStore(t)
	class := perSessionClass("math", "500", false)
	enr := enrollStudent(t, store, class, "student-1")
	enrollStudent(t, store, class, "student-2")
	paySessions(t, store, enr.ID, 3, "1500")

	date := ledger.NewDateKey(2026, 3, 10)
	roster := mark(t, newReconciler(store), enr.ID, date, ledger.Present)

	require.Len(t, roster.Entries, 2)
	assert.True(t, roster.Date.Equal(date))

	var marked, unmarked int
	for _, e := range roster.Entries {
		if e.Status != nil {
			marked++
			assert.Equal(t, ledger.Present, *e.Status)
		} else {
			unmarked++
		}
	}
	assert.Equal(t, 1, marked)
	assert.Equal(t, 1, unmarked)
}

func TestReconciler_Mark_Validation(t *testing.T) {
	store := newTestStore(t)
	enr := enrollStudent(t, store, perSessionClass("math", "500", false), "student-1")
	r := newReconciler(store)

	_, err := r.Mark(context.Background(), billing.MarkInput{
		School: testSchool, Enrollment: enr.ID,
		Date: ledger.NewDateKey(2026, 3, 10), Status: "late",
	})
	assert.True(t, ledger.IsValidation(err))

	_, err = r.Mark(context.Background(), billing.MarkInput{
		School: testSchool, Enrollment: enr.ID, Status: ledger.Present,
	})
	assert.True(t, ledger.IsValidation(err), "zero date: %v", err)

	_, err = r.Mark(context.Background(), billing.MarkInput{
		School: testSchool, Enrollment: "missing",
		Date: ledger.NewDateKey(2026, 3, 10), Status: ledger.Present,
	})
	assert.ErrorIs(t, err, ledger.ErrEnrollmentNotFound)
}
