package billing

import (
	"context"
	"log"

	"github.com/classledger/settlement-engine/ledger"
)

// =============================================================================
// ACTIVITY SINK - fire-and-forget event notifications
// =============================================================================

// ActivitySink receives best-effort notifications after ledger writes commit.
// Implementations must not fail the caller: a broken sink never rolls back a
// settled payment or attendance mark.
type ActivitySink interface {
	PaymentRecorded(ctx context.Context, p ledger.Payment)
	AttendanceOverridden(ctx context.Context, a ledger.Attendance, prior ledger.AttendanceStatus)
}

// LogSink writes activity to the process log.
type LogSink struct{}

func (LogSink) PaymentRecorded(_ context.Context, p ledger.Payment) {
	log.Printf("[activity] payment recorded school=%s student=%s enrollment=%s kind=%s taken=%s",
		p.School, p.Student, p.Enrollment, p.Kind, p.Taken)
}

func (LogSink) AttendanceOverridden(_ context.Context, a ledger.Attendance, prior ledger.AttendanceStatus) {
	log.Printf("[activity] attendance overridden school=%s enrollment=%s date=%s %s->%s",
		a.School, a.Enrollment, a.Date, prior, a.Status)
}

// NopSink discards all activity. Used in tests.
type NopSink struct{}

func (NopSink) PaymentRecorded(context.Context, ledger.Payment)                            {}
func (NopSink) AttendanceOverridden(context.Context, ledger.Attendance, ledger.AttendanceStatus) {}
