package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classledger/settlement-engine/billing"
	"github.com/classledger/settlement-engine/ledger"
)

// =============================================================================
// PRICING SNAPSHOT CAPTURE
// =============================================================================

func TestEnrollments_Create_SnapshotSurvivesPriceEdit(t *testing.T) {
	// GIVEN: a student enrolled into a class priced at 500/session
	// WHEN: the class price is later changed to 750
	// THEN: the enrollment's snapshot still says 500

	store := newTestStore(t)
	ctx := context.Background()

	class := perSessionClass("math", "500", false)
	enr := enrollStudent(t, store, class, "student-1")
	requireDecimalEqual(t, "500", enr.Pricing.SessionPrice)

	class.Pricing.SessionPrice = ledger.MustParseDecimal("750")
	require.NoError(t, store.SaveClass(ctx, class))

	reread, err := store.GetEnrollment(ctx, testSchool, enr.ID)
	require.NoError(t, err)
	require.NotNil(t, reread)
	requireDecimalEqual(t, "500", reread.Pricing.SessionPrice)

	// The class itself did change.
	cls, err := store.GetClass(ctx, testSchool, class.ID)
	require.NoError(t, err)
	requireDecimalEqual(t, "750", cls.Pricing.SessionPrice)
}

func TestEnrollments_Create_RejectsInvalidPricing(t *testing.T) {
	// GIVEN: a per_session class with no session price configured
	// WHEN: enrolling a student
	// THEN: creation is rejected as a validation error, nothing written

	store := newTestStore(t)
	ctx := context.Background()

	class := perSessionClass("broken", "0", false)
	require.NoError(t, store.SaveClass(ctx, class))

	_, err := billing.NewEnrollments(store).Create(ctx, billing.CreateEnrollmentInput{
		School:  testSchool,
		Student: "student-1",
		Class:   class.ID,
	})
	assert.Error(t, err)
	assert.True(t, ledger.IsValidation(err), "expected validation error, got %v", err)
}

func TestEnrollments_Create_UnknownClass(t *testing.T) {
	store := newTestStore(t)

	_, err := billing.NewEnrollments(store).Create(context.Background(), billing.CreateEnrollmentInput{
		School:  testSchool,
		Student: "student-1",
		Class:   "nope",
	})
	assert.ErrorIs(t, err, ledger.ErrClassNotFound)
}

// =============================================================================
// ONE ACTIVE ENROLLMENT PER (STUDENT, CLASS)
// =============================================================================

func TestEnrollments_Create_DuplicateActiveRejected(t *testing.T) {
	// GIVEN: student-1 already actively enrolled in the class
	// WHEN: enrolling student-1 into the same class again
	// THEN: conflict; a different student still enrolls fine

	store := newTestStore(t)
	ctx := context.Background()

	class := perSessionClass("math", "500", false)
	enrollStudent(t, store, class, "student-1")

	enrollments := billing.NewEnrollments(store)
	_, err := enrollments.Create(ctx, billing.CreateEnrollmentInput{
		School:  testSchool,
		Student: "student-1",
		Class:   class.ID,
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateActiveEnrollment)
	assert.True(t, ledger.IsConflict(err))

	_, err = enrollments.Create(ctx, billing.CreateEnrollmentInput{
		School:  testSchool,
		Student: "student-2",
		Class:   class.ID,
	})
	assert.NoError(t, err)
}

func TestEnrollments_Create_AllowedAfterCompletion(t *testing.T) {
	// A completed enrollment frees the (student, class) slot for a new
	// active one; history coexists.

	store := newTestStore(t)
	ctx := context.Background()

	class := perSessionClass("math", "500", false)
	first := enrollStudent(t, store, class, "student-1")

	enrollments := billing.NewEnrollments(store)
	require.NoError(t, enrollments.SetStatus(ctx, testSchool, first.ID, ledger.EnrollmentCompleted))

	second, err := enrollments.Create(ctx, billing.CreateEnrollmentInput{
		School:  testSchool,
		Student: "student-1",
		Class:   class.ID,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEnrollments_SetStatus_Validation(t *testing.T) {
	store := newTestStore(t)
	class := perSessionClass("math", "500", false)
	enr := enrollStudent(t, store, class, "student-1")

	enrollments := billing.NewEnrollments(store)
	err := enrollments.SetStatus(context.Background(), testSchool, enr.ID, "graduated")
	assert.True(t, ledger.IsValidation(err))

	err = enrollments.SetStatus(context.Background(), testSchool, "missing", ledger.EnrollmentPaused)
	assert.ErrorIs(t, err, ledger.ErrEnrollmentNotFound)
}

// =============================================================================
// CASCADE DELETE
// =============================================================================

func TestEnrollments_Delete_CascadesDependents(t *testing.T) {
	// GIVEN: an enrollment with a payment and an attendance mark
	// WHEN: deleting the enrollment
	// THEN: payments and attendance go too, in the same transaction

	store := newTestStore(t)
	ctx := context.Background()

	class := perSessionClass("math", "500", false)
	enr := enrollStudent(t, store, class, "student-1")
	paySessions(t, store, enr.ID, 3, "1500")

	reconciler := billing.NewReconciler(store, billing.NopSink{})
	date := ledger.NewDateKey(2026, 3, 10)
	_, err := reconciler.Mark(ctx, billing.MarkInput{
		School: testSchool, Enrollment: enr.ID, Date: date, Status: ledger.Present,
	})
	require.NoError(t, err)

	require.NoError(t, billing.NewEnrollments(store).Delete(ctx, testSchool, enr.ID))

	gone, err := store.GetEnrollment(ctx, testSchool, enr.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	payments, err := store.ListPaymentsByEnrollment(ctx, testSchool, enr.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	mark, err := store.GetAttendance(ctx, testSchool, enr.ID, date)
	require.NoError(t, err)
	assert.Nil(t, mark)
}

func TestEnrollments_Delete_Missing(t *testing.T) {
	store := newTestStore(t)
	err := billing.NewEnrollments(store).Delete(context.Background(), testSchool, "missing")
	assert.ErrorIs(t, err, ledger.ErrEnrollmentNotFound)
}

// =============================================================================
// TENANT SCOPING
// =============================================================================

func TestEnrollments_TenantScoping(t *testing.T) {
	// An enrollment is invisible from another school, even with its real id.

	store := newTestStore(t)
	ctx := context.Background()

	class := perSessionClass("math", "500", false)
	enr := enrollStudent(t, store, class, "student-1")

	other, err := store.GetEnrollment(ctx, "school-2", enr.ID)
	require.NoError(t, err)
	assert.Nil(t, other)

	err = billing.NewEnrollments(store).Delete(ctx, "school-2", enr.ID)
	assert.ErrorIs(t, err, ledger.ErrEnrollmentNotFound)
}
