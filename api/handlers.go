/*
handlers.go - HTTP API handlers for the settlement engine

PURPOSE:
  Exposes the settlement engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS (all tenant-scoped under /api/schools/{school}):
  Classes:
    PUT    .../classes/{id}                     Sync class pricing config
    GET    .../classes/{id}/roster?date=        Per-date marking view

  Enrollments:
    POST   .../enrollments                      Enroll (snapshot capture)
    DELETE .../enrollments/{id}                 Cascade delete
    PUT    .../enrollments/{id}/status          Lifecycle transition
    GET    .../enrollments/{id}/summary         Billing position
    POST   .../enrollments/{id}/payments        Record payment
    PUT    .../enrollments/{id}/attendance/{date}  Mark present/absent
    DELETE .../enrollments/{id}/attendance/{date}  Undo a mark

  Students:
    GET    .../students/{id}/financial          Aggregate debt

  Finance:
    GET    .../finance/months/{year}/{month}        Frozen-or-live view
    POST   .../finance/months/{year}/{month}/freeze One-way freeze
    POST   .../finance/entries                      Manual income/expense
    POST   .../finance/earnings                     Credit teacher share
    POST   .../finance/payouts                      Teacher payout
    POST   .../finance/salaries                     Salary installment

ERROR HANDLING:
  Domain errors map to HTTP status by class:
  - 400: validation (ledger.IsValidation)
  - 404: not found (ledger.IsNotFound)
  - 409: conflict (ledger.IsConflict)
  - 500: everything else
  A replayed payment is NOT an error: it returns 200 with the original body
  and "replayed": true.

SECURITY NOTE:
  No authentication middleware. Tenancy comes from the path; authn/authz is
  expected in front of this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/classledger/settlement-engine/billing"
	"github.com/classledger/settlement-engine/finance"
	"github.com/classledger/settlement-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       ledger.TxStore
	Enrollments *billing.Enrollments
	Recorder    *billing.PaymentRecorder
	Reconciler  *billing.Reconciler
	Summary     *billing.SummaryBuilder
	Aggregator  *finance.Aggregator
}

// NewHandler wires the domain components over one store.
func NewHandler(store ledger.TxStore, finStore finance.Store, sink billing.ActivitySink) *Handler {
	return &Handler{
		Store:       store,
		Enrollments: billing.NewEnrollments(store),
		Recorder:    billing.NewPaymentRecorder(store, sink),
		Reconciler:  billing.NewReconciler(store, sink),
		Summary:     billing.NewSummaryBuilder(store),
		Aggregator:  finance.NewAggregator(store, finStore),
	}
}

func school(r *http.Request) ledger.SchoolID {
	return ledger.SchoolID(chi.URLParam(r, "school"))
}

// =============================================================================
// CLASS HANDLERS
// =============================================================================

// SyncClass upserts the engine's view of a class.
// PUT /api/schools/{school}/classes/{id}
func (h *Handler) SyncClass(w http.ResponseWriter, r *http.Request) {
	var req SyncClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	pricing := ledger.PricingSnapshot{
		Model:     ledger.PricingModel(req.PricingModel),
		CycleSize: req.CycleSize,
	}
	if req.SessionPrice != "" {
		price, err := decimal.NewFromString(req.SessionPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid session_price", err)
			return
		}
		pricing.SessionPrice = price
	}
	if req.CyclePrice != "" {
		price, err := decimal.NewFromString(req.CyclePrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid cycle_price", err)
			return
		}
		pricing.CyclePrice = price
	}
	if err := pricing.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	c := ledger.Class{
		ID:            ledger.ClassID(chi.URLParam(r, "id")),
		School:        school(r),
		Name:          req.Name,
		Teacher:       ledger.TeacherID(req.Teacher),
		Pricing:       pricing,
		BillsAbsences: req.BillsAbsences,
	}
	if err := h.Store.SaveClass(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save class", err)
		return
	}

	writeJSON(w, http.StatusOK, toClassDTO(c))
}

// GetRoster returns the per-date marking view of a class.
// GET /api/schools/{school}/classes/{id}/roster?date=YYYY-MM-DD
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	date, err := ledger.ParseDateKey(r.URL.Query().Get("date"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	roster, err := h.Summary.ClassRoster(r.Context(), school(r), ledger.ClassID(chi.URLParam(r, "id")), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRosterDTO(*roster))
}

// =============================================================================
// ENROLLMENT HANDLERS
// =============================================================================

// CreateEnrollment enrolls a student, capturing the pricing snapshot.
// POST /api/schools/{school}/enrollments
func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	enr, err := h.Enrollments.Create(r.Context(), billing.CreateEnrollmentInput{
		School:  school(r),
		Student: ledger.StudentID(req.Student),
		Class:   ledger.ClassID(req.Class),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEnrollmentDTO(*enr))
}

// DeleteEnrollment removes an enrollment and all its dependents.
// DELETE /api/schools/{school}/enrollments/{id}
func (h *Handler) DeleteEnrollment(w http.ResponseWriter, r *http.Request) {
	err := h.Enrollments.Delete(r.Context(), school(r), ledger.EnrollmentID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetEnrollmentStatus moves an enrollment between lifecycle states.
// PUT /api/schools/{school}/enrollments/{id}/status
func (h *Handler) SetEnrollmentStatus(w http.ResponseWriter, r *http.Request) {
	var req SetEnrollmentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Enrollments.SetStatus(r.Context(), school(r),
		ledger.EnrollmentID(chi.URLParam(r, "id")), ledger.EnrollmentStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSummary returns the derived billing position of one enrollment.
// GET /api/schools/{school}/enrollments/{id}/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Summary.EnrollmentSummary(r.Context(), school(r), ledger.EnrollmentID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(*sum))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment applies a payment to an enrollment.
// POST /api/schools/{school}/enrollments/{id}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	in := billing.RecordPaymentInput{
		School:         school(r),
		Enrollment:     ledger.EnrollmentID(chi.URLParam(r, "id")),
		Amount:         amount,
		Kind:           ledger.PaymentKind(req.Kind),
		UnitType:       ledger.UnitType(req.UnitType),
		IdempotencyKey: req.IdempotencyKey,
		RecordedBy:     req.RecordedBy,
	}
	if req.Units != "" {
		units, err := decimal.NewFromString(req.Units)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid units", err)
			return
		}
		in.Units = units
	}
	if req.ExpectedPrice != "" {
		expected, err := decimal.NewFromString(req.ExpectedPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expected_price", err)
			return
		}
		in.ExpectedPrice = &expected
	}
	if req.Taken != "" {
		taken, err := decimal.NewFromString(req.Taken)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid taken", err)
			return
		}
		in.Taken = &taken
	}

	res, err := h.Recorder.Record(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, RecordPaymentResponse{
		Payment:       toPaymentDTO(res.Payment),
		SessionCredit: res.SessionCredit.String(),
		Replayed:      res.Replayed,
	})
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// MarkAttendance sets the status for one (enrollment, date) cell.
// PUT /api/schools/{school}/enrollments/{id}/attendance/{date}
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req MarkAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := ledger.ParseDateKey(chi.URLParam(r, "date"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	roster, err := h.Reconciler.Mark(r.Context(), billing.MarkInput{
		School:     school(r),
		Enrollment: ledger.EnrollmentID(chi.URLParam(r, "id")),
		Date:       date,
		Status:     ledger.AttendanceStatus(req.Status),
		MarkedBy:   req.MarkedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRosterDTO(*roster))
}

// UndoAttendance removes a mark and reverses its effects. Undoing an
// unmarked cell is a no-op, not an error.
// DELETE /api/schools/{school}/enrollments/{id}/attendance/{date}
func (h *Handler) UndoAttendance(w http.ResponseWriter, r *http.Request) {
	date, err := ledger.ParseDateKey(chi.URLParam(r, "date"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	roster, removed, err := h.Reconciler.Undo(r.Context(), school(r),
		ledger.EnrollmentID(chi.URLParam(r, "id")), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !removed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toRosterDTO(*roster))
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// GetStudentFinancial returns the per-student debt aggregate.
// GET /api/schools/{school}/students/{id}/financial
func (h *Handler) GetStudentFinancial(w http.ResponseWriter, r *http.Request) {
	f, err := h.Store.GetStudentFinancial(r.Context(), school(r), ledger.StudentID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get student financial", err)
		return
	}
	if f == nil {
		writeDomainError(w, ledger.ErrStudentNotFound)
		return
	}
	writeJSON(w, http.StatusOK, StudentFinancialDTO{
		School:    string(f.School),
		Student:   string(f.Student),
		Debt:      f.Debt.String(),
		UpdatedAt: f.UpdatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// FINANCE HANDLERS
// =============================================================================

func monthParams(r *http.Request) (int, time.Month, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return 0, 0, &ledger.ValidationError{Field: "year", Reason: "must be a number"}
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return 0, 0, &ledger.ValidationError{Field: "month", Reason: "must be a number"}
	}
	if !ledger.ValidMonth(year, month) {
		return 0, 0, &ledger.ValidationError{Field: "month", Reason: "out of range"}
	}
	return year, time.Month(month), nil
}

// GetMonth returns the frozen snapshot when one exists, live otherwise.
// GET /api/schools/{school}/finance/months/{year}/{month}
func (h *Handler) GetMonth(w http.ResponseWriter, r *http.Request) {
	year, month, err := monthParams(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sum, err := h.Aggregator.MonthView(r.Context(), school(r), year, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlySummaryDTO(*sum))
}

// FreezeMonth performs the one-way live -> frozen transition.
// POST /api/schools/{school}/finance/months/{year}/{month}/freeze
func (h *Handler) FreezeMonth(w http.ResponseWriter, r *http.Request) {
	year, month, err := monthParams(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req FreezeMonthRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	sum, err := h.Aggregator.Freeze(r.Context(), school(r), year, month, req.FrozenBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMonthlySummaryDTO(*sum))
}

// RecordEntry records a manual income or expense line.
// POST /api/schools/{school}/finance/entries
func (h *Handler) RecordEntry(w http.ResponseWriter, r *http.Request) {
	var req RecordEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	date, err := ledger.ParseDateKey(req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	entry, err := h.Aggregator.RecordEntry(r.Context(), finance.RecordEntryInput{
		School:     school(r),
		Kind:       finance.EntryKind(req.Kind),
		Amount:     amount,
		Note:       req.Note,
		Date:       date,
		RecordedBy: req.RecordedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// CreditEarning credits a calculated share to a teacher.
// POST /api/schools/{school}/finance/earnings
func (h *Handler) CreditEarning(w http.ResponseWriter, r *http.Request) {
	var req CreditEarningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	date, err := ledger.ParseDateKey(req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	earning, err := h.Aggregator.CreditEarning(r.Context(), finance.CreditEarningInput{
		School:  school(r),
		Teacher: ledger.TeacherID(req.Teacher),
		Amount:  amount,
		Note:    req.Note,
		Date:    date,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, earning)
}

// RecordPayout pays out part of a teacher's accumulated share.
// POST /api/schools/{school}/finance/payouts
func (h *Handler) RecordPayout(w http.ResponseWriter, r *http.Request) {
	var req RecordPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	paid, err := decimal.NewFromString(req.Paid)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid amount", err)
		return
	}
	date, err := ledger.ParseDateKey(req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	in := finance.RecordPayoutInput{
		School:     school(r),
		Teacher:    ledger.TeacherID(req.Teacher),
		Paid:       paid,
		Date:       date,
		RecordedBy: req.RecordedBy,
	}
	if req.Calculated != "" {
		calc, err := decimal.NewFromString(req.Calculated)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid calculated amount", err)
			return
		}
		in.Calculated = calc
	}

	payout, err := h.Aggregator.RecordPayout(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payout)
}

// RecordSalary records one salary installment.
// POST /api/schools/{school}/finance/salaries
func (h *Handler) RecordSalary(w http.ResponseWriter, r *http.Request) {
	var req RecordSalaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	paid, err := decimal.NewFromString(req.Paid)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid amount", err)
		return
	}
	date, err := ledger.ParseDateKey(req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	in := finance.RecordSalaryInput{
		School:     school(r),
		Employee:   req.Employee,
		Paid:       paid,
		Date:       date,
		RecordedBy: req.RecordedBy,
	}
	if req.Calculated != "" {
		calc, err := decimal.NewFromString(req.Calculated)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid calculated amount", err)
			return
		}
		in.Calculated = calc
	}

	salary, err := h.Aggregator.RecordSalary(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, salary)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
