/*
recorder.go - Payment Recorder

PURPOSE:
  Accepts a payment, derives session credit from it using the enrollment's
  pricing snapshot, and applies the three-way side effect as one unit:
    (a) create the immutable Payment record
    (b) increment Enrollment.balance by the derived credit
    (c) apply debtDelta = taken - expectedPrice to StudentFinancial

IDEMPOTENCY:
  A non-empty idempotency key dedupes retried submissions per enrollment:
  the second call returns the original Payment with Replayed=true and applies
  no side effects. Empty keys are never deduplicated; every keyless
  submission is a distinct event.

  A RACE on the same key is resolved by the store's unique index: the losing
  insert rolls its whole transaction back (no balance or debt applied) and
  the recorder re-reads and returns the winner's record. Callers never see a
  duplicate-key error.

FAILURE SEMANTICS:
  Validation failures (missing enrollment, tenant mismatch, bad kind) abort
  before any write. The activity sink is notified only after commit and its
  failures are swallowed by the sink itself.

SEE ALSO:
  - pricing.go: credit derivation rules
  - ledger/store.go: the atomicity contract
*/
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/classledger/settlement-engine/ledger"
)

// PaymentRecorder turns money received into session credit.
type PaymentRecorder struct {
	store ledger.TxStore
	sink  ActivitySink
}

func NewPaymentRecorder(store ledger.TxStore, sink ActivitySink) *PaymentRecorder {
	if sink == nil {
		sink = NopSink{}
	}
	return &PaymentRecorder{store: store, sink: sink}
}

// RecordPaymentInput describes one payment submission.
//
// Taken defaults to Amount when nil (cash received as expected).
// ExpectedPrice defaults to Taken when nil, making the debt delta zero.
type RecordPaymentInput struct {
	School     ledger.SchoolID
	Enrollment ledger.EnrollmentID

	Amount        decimal.Decimal
	Kind          ledger.PaymentKind
	UnitType      ledger.UnitType // optional
	Units         decimal.Decimal // optional, zero = unset
	ExpectedPrice *decimal.Decimal
	Taken         *decimal.Decimal

	IdempotencyKey string
	RecordedBy     string
}

// RecordPaymentResult carries the stored payment plus the session credit that
// was applied, so callers can render immediate feedback without a re-read.
type RecordPaymentResult struct {
	Payment       ledger.Payment
	SessionCredit decimal.Decimal
	Replayed      bool
}

// Record validates, derives credit, and applies the payment atomically.
func (r *PaymentRecorder) Record(ctx context.Context, in RecordPaymentInput) (*RecordPaymentResult, error) {
	if !in.Kind.Valid() {
		return nil, &ledger.ValidationError{Field: "kind", Reason: "must be pay_sessions, pay_cycles or debt_payment"}
	}
	if in.Amount.IsNegative() {
		return nil, &ledger.ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if in.Units.IsNegative() {
		return nil, &ledger.ValidationError{Field: "units", Reason: "must not be negative"}
	}
	if in.UnitType != "" && in.UnitType != ledger.UnitSession && in.UnitType != ledger.UnitCycle {
		return nil, &ledger.ValidationError{Field: "unit_type", Reason: "must be session or cycle"}
	}

	enr, err := r.store.GetEnrollment(ctx, in.School, in.Enrollment)
	if err != nil {
		return nil, fmt.Errorf("lookup enrollment: %w", err)
	}
	if enr == nil {
		return nil, ledger.ErrEnrollmentNotFound
	}

	// Idempotent replay: same enrollment + same non-empty key returns the
	// original record, no new side effects.
	if in.IdempotencyKey != "" {
		existing, err := r.store.GetPaymentByKey(ctx, in.School, in.Enrollment, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return r.replay(enr.Pricing, existing), nil
		}
	}

	taken := in.Amount
	if in.Taken != nil {
		taken = *in.Taken
	}
	expected := taken
	if in.ExpectedPrice != nil {
		expected = *in.ExpectedPrice
	}

	credit := deriveSessionCredit(enr.Pricing, in.Kind, in.UnitType, in.Units, taken)

	payment := ledger.Payment{
		ID:             ledger.PaymentID(uuid.NewString()),
		School:         in.School,
		Class:          enr.Class,
		Student:        enr.Student,
		Enrollment:     enr.ID,
		Kind:           in.Kind,
		UnitType:       in.UnitType,
		Units:          in.Units,
		Amount:         in.Amount,
		ExpectedPrice:  expected,
		Taken:          taken,
		DebtDelta:      taken.Sub(expected),
		IdempotencyKey: in.IdempotencyKey,
		CreatedBy:      in.RecordedBy,
		CreatedAt:      time.Now().UTC(),
	}

	err = r.store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		if !credit.IsZero() {
			if err := tx.AddToBalance(ctx, in.School, enr.ID, credit); err != nil {
				return err
			}
		}
		// Debt delta is applied even when zero so StudentFinancial always
		// reflects the latest touch time.
		return tx.ApplyDebtDelta(ctx, in.School, enr.Student, payment.DebtDelta)
	})
	if errors.Is(err, ledger.ErrDuplicatePaymentKey) {
		// Lost a race on the key. The transaction rolled back; return the
		// winner's record.
		existing, rerr := r.store.GetPaymentByKey(ctx, in.School, in.Enrollment, in.IdempotencyKey)
		if rerr != nil {
			return nil, rerr
		}
		if existing == nil {
			return nil, err
		}
		return r.replay(enr.Pricing, existing), nil
	}
	if err != nil {
		return nil, err
	}

	r.sink.PaymentRecorded(ctx, payment)

	return &RecordPaymentResult{Payment: payment, SessionCredit: credit}, nil
}

// replay rebuilds the result for an already-recorded payment. The credit
// reported is what the original submission applied.
func (r *PaymentRecorder) replay(snap ledger.PricingSnapshot, p *ledger.Payment) *RecordPaymentResult {
	return &RecordPaymentResult{
		Payment:       *p,
		SessionCredit: deriveSessionCredit(snap, p.Kind, p.UnitType, p.Units, p.Taken),
		Replayed:      true,
	}
}
