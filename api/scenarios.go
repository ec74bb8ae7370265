/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates a fresh demo school
	with classes, enrollments, payments and attendance that demonstrate
	specific behaviors.

AVAILABLE SCENARIOS:

	small-studio:   One per-session class, three students, mixed balances
	cycle-academy:  Per-cycle pricing, discounted payment creating debt
	month-close:    Finance records ready for a monthly freeze

HOW SCENARIOS WORK:
 1. Generate a unique demo school id (no database reset; real tenants
    are untouched and reloading never collides)
 2. Sync classes
 3. Enroll students
 4. Record payments and attendance through the domain components
 5. Optionally add finance records

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "cycle-academy"}

	The response carries the generated school_id; point the UI at it.

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, school)
 3. Add case to LoadScenario handler

SEE ALSO:
  - handlers.go: the endpoints the demo data is viewed through
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classledger/settlement-engine/billing"
	"github.com/classledger/settlement-engine/finance"
	"github.com/classledger/settlement-engine/ledger"
)

// =============================================================================
// SCENARIO CATALOG
// =============================================================================

// Scenario describes one loadable demo dataset.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []Scenario{
	{
		ID:          "small-studio",
		Name:        "Small studio",
		Description: "One per-session class, three students with different credit positions",
	},
	{
		ID:          "cycle-academy",
		Name:        "Cycle academy",
		Description: "Per-cycle pricing and a discounted payment that leaves student debt",
	},
	{
		ID:          "month-close",
		Name:        "Month close",
		Description: "Payments, manual entries, teacher share and salary ready for a freeze",
	},
}

// LoadScenarioRequest selects which scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse reports what was created and where.
type LoadScenarioResponse struct {
	ScenarioID  string   `json:"scenario_id"`
	School      string   `json:"school_id"`
	Enrollments []string `json:"enrollment_ids"`
	Message     string   `json:"message"`
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the scenario catalog.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds a fresh demo school with the requested dataset.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	schoolID := ledger.SchoolID("demo-" + req.ScenarioID + "-" + uuid.NewString()[:8])

	var (
		enrollments []ledger.EnrollmentID
		err         error
	)
	switch req.ScenarioID {
	case "small-studio":
		enrollments, err = h.loadSmallStudio(r.Context(), schoolID)
	case "cycle-academy":
		enrollments, err = h.loadCycleAcademy(r.Context(), schoolID)
	case "month-close":
		enrollments, err = h.loadMonthClose(r.Context(), schoolID)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	ids := make([]string, len(enrollments))
	for i, id := range enrollments {
		ids[i] = string(id)
	}
	writeJSON(w, http.StatusOK, LoadScenarioResponse{
		ScenarioID:  req.ScenarioID,
		School:      string(schoolID),
		Enrollments: ids,
		Message:     fmt.Sprintf("Loaded %s into %s", req.ScenarioID, schoolID),
	})
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) seedClass(ctx context.Context, schoolID ledger.SchoolID, c ledger.Class) error {
	c.School = schoolID
	return h.Store.SaveClass(ctx, c)
}

func (h *Handler) seedEnrollment(ctx context.Context, schoolID ledger.SchoolID, student ledger.StudentID, class ledger.ClassID) (ledger.EnrollmentID, error) {
	enr, err := h.Enrollments.Create(ctx, billing.CreateEnrollmentInput{
		School:  schoolID,
		Student: student,
		Class:   class,
	})
	if err != nil {
		return "", err
	}
	return enr.ID, nil
}

func (h *Handler) seedPayment(ctx context.Context, schoolID ledger.SchoolID, enr ledger.EnrollmentID, in billing.RecordPaymentInput) error {
	in.School = schoolID
	in.Enrollment = enr
	in.RecordedBy = "demo-loader"
	_, err := h.Recorder.Record(ctx, in)
	return err
}

func (h *Handler) seedMark(ctx context.Context, schoolID ledger.SchoolID, enr ledger.EnrollmentID, date ledger.DateKey, status ledger.AttendanceStatus) error {
	_, err := h.Reconciler.Mark(ctx, billing.MarkInput{
		School:     schoolID,
		Enrollment: enr,
		Date:       date,
		Status:     status,
		MarkedBy:   "demo-loader",
	})
	return err
}

// =============================================================================
// LOADERS
// =============================================================================

// loadSmallStudio: one per-session class at 500, three students.
//   - amal:  paid 4 sessions, attended 2 (credit left)
//   - boris: paid 2 sessions, attended 3 (owes one)
//   - chen:  never paid, one absence in an absence-billing class
func (h *Handler) loadSmallStudio(ctx context.Context, schoolID ledger.SchoolID) ([]ledger.EnrollmentID, error) {
	class := ledger.Class{
		ID:   "guitar",
		Name: "Guitar Basics",
		Pricing: ledger.PricingSnapshot{
			Model:        ledger.PerSession,
			SessionPrice: decimal.NewFromInt(500),
		},
		BillsAbsences: true,
		Teacher:       "teacher-mira",
	}
	if err := h.seedClass(ctx, schoolID, class); err != nil {
		return nil, err
	}

	var out []ledger.EnrollmentID
	today := ledger.Today()

	amal, err := h.seedEnrollment(ctx, schoolID, "amal", class.ID)
	if err != nil {
		return nil, err
	}
	out = append(out, amal)
	if err := h.seedPayment(ctx, schoolID, amal, billing.RecordPaymentInput{
		Amount:   decimal.NewFromInt(2000),
		Kind:     ledger.PaySessions,
		UnitType: ledger.UnitSession,
		Units:    decimal.NewFromInt(4),
	}); err != nil {
		return nil, err
	}
	for _, d := range []ledger.DateKey{today.AddDays(-7), today.AddDays(-3)} {
		if err := h.seedMark(ctx, schoolID, amal, d, ledger.Present); err != nil {
			return nil, err
		}
	}

	boris, err := h.seedEnrollment(ctx, schoolID, "boris", class.ID)
	if err != nil {
		return nil, err
	}
	out = append(out, boris)
	if err := h.seedPayment(ctx, schoolID, boris, billing.RecordPaymentInput{
		Amount: decimal.NewFromInt(1000),
		Kind:   ledger.PaySessions,
	}); err != nil {
		return nil, err
	}
	for _, d := range []ledger.DateKey{today.AddDays(-7), today.AddDays(-3), today.AddDays(-1)} {
		if err := h.seedMark(ctx, schoolID, boris, d, ledger.Present); err != nil {
			return nil, err
		}
	}

	chen, err := h.seedEnrollment(ctx, schoolID, "chen", class.ID)
	if err != nil {
		return nil, err
	}
	out = append(out, chen)
	if err := h.seedMark(ctx, schoolID, chen, today.AddDays(-3), ledger.Absent); err != nil {
		return nil, err
	}

	return out, nil
}

// loadCycleAcademy: per-cycle pricing (8 sessions at 3200), one payment
// taken under the expected price and one over it, so both debt directions
// show up on student financials.
func (h *Handler) loadCycleAcademy(ctx context.Context, schoolID ledger.SchoolID) ([]ledger.EnrollmentID, error) {
	class := ledger.Class{
		ID:   "robotics",
		Name: "Robotics Lab",
		Pricing: ledger.PricingSnapshot{
			Model:      ledger.PerCycle,
			CycleSize:  8,
			CyclePrice: decimal.NewFromInt(3200),
		},
		Teacher: "teacher-omar",
	}
	if err := h.seedClass(ctx, schoolID, class); err != nil {
		return nil, err
	}

	var out []ledger.EnrollmentID
	today := ledger.Today()
	expected := decimal.NewFromInt(3200)

	dana, err := h.seedEnrollment(ctx, schoolID, "dana", class.ID)
	if err != nil {
		return nil, err
	}
	out = append(out, dana)
	under := decimal.NewFromInt(3000)
	if err := h.seedPayment(ctx, schoolID, dana, billing.RecordPaymentInput{
		Amount:        decimal.NewFromInt(3200),
		Kind:          ledger.PayCycles,
		UnitType:      ledger.UnitCycle,
		Units:         decimal.NewFromInt(1),
		ExpectedPrice: &expected,
		Taken:         &under,
	}); err != nil {
		return nil, err
	}

	erik, err := h.seedEnrollment(ctx, schoolID, "erik", class.ID)
	if err != nil {
		return nil, err
	}
	out = append(out, erik)
	over := decimal.NewFromInt(3300)
	if err := h.seedPayment(ctx, schoolID, erik, billing.RecordPaymentInput{
		Amount:        decimal.NewFromInt(3200),
		Kind:          ledger.PayCycles,
		ExpectedPrice: &expected,
		Taken:         &over,
	}); err != nil {
		return nil, err
	}

	for _, d := range []ledger.DateKey{today.AddDays(-5), today.AddDays(-2)} {
		if err := h.seedMark(ctx, schoolID, dana, d, ledger.Present); err != nil {
			return nil, err
		}
		if err := h.seedMark(ctx, schoolID, erik, d, ledger.Present); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// loadMonthClose: enough financial activity in the current month for the
// freeze endpoint to produce an interesting snapshot.
func (h *Handler) loadMonthClose(ctx context.Context, schoolID ledger.SchoolID) ([]ledger.EnrollmentID, error) {
	class := ledger.Class{
		ID:   "piano",
		Name: "Piano",
		Pricing: ledger.PricingSnapshot{
			Model:        ledger.PerSession,
			SessionPrice: decimal.NewFromInt(600),
		},
		Teacher: "teacher-lena",
	}
	if err := h.seedClass(ctx, schoolID, class); err != nil {
		return nil, err
	}

	fay, err := h.seedEnrollment(ctx, schoolID, "fay", class.ID)
	if err != nil {
		return nil, err
	}
	if err := h.seedPayment(ctx, schoolID, fay, billing.RecordPaymentInput{
		Amount: decimal.NewFromInt(2400),
		Kind:   ledger.PaySessions,
	}); err != nil {
		return nil, err
	}

	today := ledger.Today()
	if _, err := h.Aggregator.RecordEntry(ctx, finance.RecordEntryInput{
		School: schoolID, Kind: finance.EntryIncome,
		Amount: decimal.NewFromInt(350), Note: "sheet music sale",
		Date: today, RecordedBy: "demo-loader",
	}); err != nil {
		return nil, err
	}
	if _, err := h.Aggregator.RecordEntry(ctx, finance.RecordEntryInput{
		School: schoolID, Kind: finance.EntryExpense,
		Amount: decimal.NewFromInt(180), Note: "piano tuning",
		Date: today, RecordedBy: "demo-loader",
	}); err != nil {
		return nil, err
	}
	if _, err := h.Aggregator.CreditEarning(ctx, finance.CreditEarningInput{
		School: schoolID, Teacher: "teacher-lena",
		Amount: decimal.NewFromInt(1200), Note: "share of piano revenue",
		Date: today,
	}); err != nil {
		return nil, err
	}
	if _, err := h.Aggregator.RecordPayout(ctx, finance.RecordPayoutInput{
		School: schoolID, Teacher: "teacher-lena",
		Paid: decimal.NewFromInt(800), Date: today, RecordedBy: "demo-loader",
	}); err != nil {
		return nil, err
	}
	if _, err := h.Aggregator.RecordSalary(ctx, finance.RecordSalaryInput{
		School: schoolID, Employee: "front-desk",
		Paid: decimal.NewFromInt(900), Date: today, RecordedBy: "demo-loader",
	}); err != nil {
		return nil, err
	}

	return []ledger.EnrollmentID{fay}, nil
}
