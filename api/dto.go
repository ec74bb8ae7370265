/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Money fields travel as JSON strings ("1500.00") and are parsed with
  shopspring/decimal in the handlers. Floats never touch an amount.

VALIDATION:
  Validation is done in handlers and domain components, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - billing, finance: the domain types these mirror
*/
package api

import (
	"time"

	"github.com/classledger/settlement-engine/billing"
	"github.com/classledger/settlement-engine/finance"
	"github.com/classledger/settlement-engine/ledger"
)

// =============================================================================
// CLASS
// =============================================================================

// SyncClassRequest upserts the engine's view of a class: pricing terms and
// the absence-billing rule. Class CRUD proper lives outside the engine.
type SyncClassRequest struct {
	Name          string `json:"name"`
	Teacher       string `json:"teacher_id,omitempty"`
	PricingModel  string `json:"pricing_model"`
	SessionPrice  string `json:"session_price,omitempty"`
	CycleSize     int    `json:"cycle_size,omitempty"`
	CyclePrice    string `json:"cycle_price,omitempty"`
	BillsAbsences bool   `json:"bills_absences"`
}

// ClassDTO represents a class in API responses.
type ClassDTO struct {
	ID            string `json:"id"`
	School        string `json:"school_id"`
	Name          string `json:"name"`
	Teacher       string `json:"teacher_id,omitempty"`
	PricingModel  string `json:"pricing_model"`
	SessionPrice  string `json:"session_price,omitempty"`
	CycleSize     int    `json:"cycle_size,omitempty"`
	CyclePrice    string `json:"cycle_price,omitempty"`
	BillsAbsences bool   `json:"bills_absences"`
}

func toClassDTO(c ledger.Class) ClassDTO {
	dto := ClassDTO{
		ID:            string(c.ID),
		School:        string(c.School),
		Name:          c.Name,
		Teacher:       string(c.Teacher),
		PricingModel:  string(c.Pricing.Model),
		BillsAbsences: c.BillsAbsences,
	}
	switch c.Pricing.Model {
	case ledger.PerSession:
		dto.SessionPrice = c.Pricing.SessionPrice.String()
	case ledger.PerCycle:
		dto.CycleSize = c.Pricing.CycleSize
		dto.CyclePrice = c.Pricing.CyclePrice.String()
	}
	return dto
}

// =============================================================================
// ENROLLMENT
// =============================================================================

// CreateEnrollmentRequest enrolls a student into a class.
type CreateEnrollmentRequest struct {
	Student string `json:"student_id"`
	Class   string `json:"class_id"`
}

// SetEnrollmentStatusRequest moves an enrollment between lifecycle states.
type SetEnrollmentStatusRequest struct {
	Status string `json:"status"`
}

// EnrollmentDTO represents an enrollment in API responses.
type EnrollmentDTO struct {
	ID                 string  `json:"id"`
	School             string  `json:"school_id"`
	Student            string  `json:"student_id"`
	Class              string  `json:"class_id"`
	PricingModel       string  `json:"pricing_model"`
	SessionPrice       string  `json:"session_price,omitempty"`
	CycleSize          int     `json:"cycle_size,omitempty"`
	CyclePrice         string  `json:"cycle_price,omitempty"`
	Balance            string  `json:"balance"`
	Attended           int     `json:"attended"`
	Absent             int     `json:"absent"`
	LastAttendanceDate *string `json:"last_attendance_date,omitempty"`
	Status             string  `json:"status"`
	CreatedAt          string  `json:"created_at"`
}

func toEnrollmentDTO(e ledger.Enrollment) EnrollmentDTO {
	dto := EnrollmentDTO{
		ID:           string(e.ID),
		School:       string(e.School),
		Student:      string(e.Student),
		Class:        string(e.Class),
		PricingModel: string(e.Pricing.Model),
		Balance:      e.Balance.String(),
		Attended:     e.Counters.Attended,
		Absent:       e.Counters.Absent,
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
	switch e.Pricing.Model {
	case ledger.PerSession:
		dto.SessionPrice = e.Pricing.SessionPrice.String()
	case ledger.PerCycle:
		dto.CycleSize = e.Pricing.CycleSize
		dto.CyclePrice = e.Pricing.CyclePrice.String()
	}
	if e.Counters.LastAttendanceDate != nil {
		d := e.Counters.LastAttendanceDate.String()
		dto.LastAttendanceDate = &d
	}
	return dto
}

// =============================================================================
// PAYMENT
// =============================================================================

// RecordPaymentRequest submits a payment against an enrollment.
type RecordPaymentRequest struct {
	Amount         string `json:"amount"`
	Kind           string `json:"kind"`
	UnitType       string `json:"unit_type,omitempty"`
	Units          string `json:"units,omitempty"`
	ExpectedPrice  string `json:"expected_price,omitempty"`
	Taken          string `json:"taken,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	RecordedBy     string `json:"recorded_by,omitempty"`
}

// PaymentDTO represents a stored payment.
type PaymentDTO struct {
	ID             string `json:"id"`
	School         string `json:"school_id"`
	Class          string `json:"class_id,omitempty"`
	Student        string `json:"student_id"`
	Enrollment     string `json:"enrollment_id,omitempty"`
	Kind           string `json:"kind"`
	UnitType       string `json:"unit_type,omitempty"`
	Units          string `json:"units,omitempty"`
	Amount         string `json:"amount"`
	ExpectedPrice  string `json:"expected_price"`
	Taken          string `json:"taken"`
	DebtDelta      string `json:"debt_delta"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// RecordPaymentResponse pairs the payment with the session credit applied.
type RecordPaymentResponse struct {
	Payment       PaymentDTO `json:"payment"`
	SessionCredit string     `json:"session_credit"`
	Replayed      bool       `json:"replayed"`
}

func toPaymentDTO(p ledger.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:             string(p.ID),
		School:         string(p.School),
		Class:          string(p.Class),
		Student:        string(p.Student),
		Enrollment:     string(p.Enrollment),
		Kind:           string(p.Kind),
		UnitType:       string(p.UnitType),
		Amount:         p.Amount.String(),
		ExpectedPrice:  p.ExpectedPrice.String(),
		Taken:          p.Taken.String(),
		DebtDelta:      p.DebtDelta.String(),
		IdempotencyKey: p.IdempotencyKey,
		CreatedBy:      p.CreatedBy,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
	if !p.Units.IsZero() {
		dto.Units = p.Units.String()
	}
	return dto
}

// =============================================================================
// ATTENDANCE / ROSTER
// =============================================================================

// MarkAttendanceRequest sets the status for one (enrollment, date) cell.
type MarkAttendanceRequest struct {
	Status   string `json:"status"`
	MarkedBy string `json:"marked_by,omitempty"`
}

// SummaryDTO is the derived billing position of one enrollment.
type SummaryDTO struct {
	Enrollment      EnrollmentDTO `json:"enrollment"`
	Charged         int           `json:"charged"`
	SessionsCovered int           `json:"sessions_covered"`
	OwedSessions    int           `json:"owed_sessions"`
	OwedAmount      *string       `json:"owed_amount,omitempty"`
	Balance         string        `json:"balance"`
}

func toSummaryDTO(s billing.EnrollmentSummary) SummaryDTO {
	dto := SummaryDTO{
		Enrollment:      toEnrollmentDTO(s.Enrollment),
		Charged:         s.Charged,
		SessionsCovered: s.SessionsCovered,
		OwedSessions:    s.OwedSessions,
		Balance:         s.Balance.String(),
	}
	if s.OwedAmount != nil {
		a := s.OwedAmount.String()
		dto.OwedAmount = &a
	}
	return dto
}

// RosterEntryDTO pairs a summary with the day's status (null = unmarked).
type RosterEntryDTO struct {
	Summary SummaryDTO `json:"summary"`
	Status  *string    `json:"status,omitempty"`
}

// RosterDTO is the per-date marking view of a class.
type RosterDTO struct {
	Class   ClassDTO         `json:"class"`
	Date    string           `json:"date"`
	Entries []RosterEntryDTO `json:"entries"`
}

func toRosterDTO(v billing.RosterView) RosterDTO {
	dto := RosterDTO{
		Class:   toClassDTO(v.Class),
		Date:    v.Date.String(),
		Entries: make([]RosterEntryDTO, len(v.Entries)),
	}
	for i, e := range v.Entries {
		entry := RosterEntryDTO{Summary: toSummaryDTO(e.Summary)}
		if e.Status != nil {
			s := string(*e.Status)
			entry.Status = &s
		}
		dto.Entries[i] = entry
	}
	return dto
}

// =============================================================================
// FINANCE
// =============================================================================

// RecordEntryRequest records a manual income or expense line.
type RecordEntryRequest struct {
	Kind       string `json:"kind"`
	Amount     string `json:"amount"`
	Note       string `json:"note,omitempty"`
	Date       string `json:"date"`
	RecordedBy string `json:"recorded_by,omitempty"`
}

// CreditEarningRequest credits a calculated share to a teacher.
type CreditEarningRequest struct {
	Teacher string `json:"teacher_id"`
	Amount  string `json:"amount"`
	Note    string `json:"note,omitempty"`
	Date    string `json:"date"`
}

// RecordPayoutRequest pays out part of a teacher's accumulated share.
type RecordPayoutRequest struct {
	Teacher    string `json:"teacher_id"`
	Calculated string `json:"calculated,omitempty"`
	Paid       string `json:"paid"`
	Date       string `json:"date"`
	RecordedBy string `json:"recorded_by,omitempty"`
}

// RecordSalaryRequest records one salary installment.
type RecordSalaryRequest struct {
	Employee   string `json:"employee"`
	Calculated string `json:"calculated,omitempty"`
	Paid       string `json:"paid"`
	Date       string `json:"date"`
	RecordedBy string `json:"recorded_by,omitempty"`
}

// FreezeMonthRequest names the actor performing the freeze.
type FreezeMonthRequest struct {
	FrozenBy string `json:"frozen_by,omitempty"`
}

// MonthlySummaryDTO is the month view, live or frozen.
type MonthlySummaryDTO struct {
	School string `json:"school_id"`
	Year   int    `json:"year"`
	Month  int    `json:"month"`

	StudentPayments    string `json:"student_payments"`
	ManualIncome       string `json:"manual_income"`
	ManualExpense      string `json:"manual_expense"`
	PayoutsCalculated  string `json:"payouts_calculated"`
	PayoutsPaid        string `json:"payouts_paid"`
	SalariesCalculated string `json:"salaries_calculated"`
	SalariesPaid       string `json:"salaries_paid"`
	OutstandingDebt    string `json:"outstanding_debt"`

	Income     string `json:"income"`
	Expenses   string `json:"expenses"`
	NetBalance string `json:"net_balance"`

	Frozen   bool   `json:"frozen"`
	FrozenAt string `json:"frozen_at,omitempty"`
	FrozenBy string `json:"frozen_by,omitempty"`
}

func toMonthlySummaryDTO(m finance.MonthlySummary) MonthlySummaryDTO {
	dto := MonthlySummaryDTO{
		School:             string(m.School),
		Year:               m.Year,
		Month:              int(m.Month),
		StudentPayments:    m.StudentPayments.String(),
		ManualIncome:       m.ManualIncome.String(),
		ManualExpense:      m.ManualExpense.String(),
		PayoutsCalculated:  m.PayoutsCalculated.String(),
		PayoutsPaid:        m.PayoutsPaid.String(),
		SalariesCalculated: m.SalariesCalculated.String(),
		SalariesPaid:       m.SalariesPaid.String(),
		OutstandingDebt:    m.OutstandingDebt.String(),
		Income:             m.Income.String(),
		Expenses:           m.Expenses.String(),
		NetBalance:         m.NetBalance.String(),
		Frozen:             m.Frozen,
		FrozenBy:           m.FrozenBy,
	}
	if m.FrozenAt != nil {
		dto.FrozenAt = m.FrozenAt.Format(time.RFC3339)
	}
	return dto
}

// StudentFinancialDTO is the per-student debt aggregate.
type StudentFinancialDTO struct {
	School    string `json:"school_id"`
	Student   string `json:"student_id"`
	Debt      string `json:"debt"`
	UpdatedAt string `json:"updated_at"`
}

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
