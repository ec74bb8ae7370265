package billing

import (
	"github.com/shopspring/decimal"

	"github.com/classledger/settlement-engine/ledger"
)

// =============================================================================
// SESSION-CREDIT DERIVATION
// =============================================================================

// deriveSessionCredit turns a payment into consumable session credit using
// the enrollment's pricing snapshot, in priority order:
//
//  1. Explicit units: "session" units credit directly, "cycle" units credit
//     units x cycleSize (only when the snapshot knows the cycle size).
//  2. Cash: taken divided by the effective per-session price.
//  3. Neither usable: zero credit. The payment is still recorded for audit
//     (pure debt settlement looks like this).
//
// Debt payments never credit sessions regardless of the cash attached.
// Fractional credit is legitimate: partial payments buy partial sessions.
func deriveSessionCredit(snap ledger.PricingSnapshot, kind ledger.PaymentKind, unitType ledger.UnitType, units, taken decimal.Decimal) decimal.Decimal {
	if kind == ledger.DebtPayment {
		return decimal.Zero
	}

	if units.IsPositive() {
		switch unitType {
		case ledger.UnitSession:
			return units
		case ledger.UnitCycle:
			if snap.CycleSize > 0 {
				return units.Mul(decimal.NewFromInt(int64(snap.CycleSize)))
			}
		}
	}

	if per := snap.PerSessionPrice(); per.IsPositive() && taken.IsPositive() {
		return taken.Div(per)
	}

	return decimal.Zero
}

// sessionsCovered recomputes, from the raw payment records, how many whole
// sessions an enrollment's payments cover. This deliberately does not trust
// the running balance: it is the point-in-time audit view (the two must agree
// in the steady state; divergence is a bug signal).
func sessionsCovered(snap ledger.PricingSnapshot, payments []ledger.Payment) int {
	switch snap.Model {
	case ledger.PerSession:
		if !snap.SessionPrice.IsPositive() {
			return 0
		}
		total := decimal.Zero
		for _, p := range payments {
			if p.Kind == ledger.PaySessions {
				total = total.Add(p.Taken)
			}
		}
		return int(total.Div(snap.SessionPrice).IntPart())

	case ledger.PerCycle:
		if !snap.CyclePrice.IsPositive() || snap.CycleSize <= 0 {
			return 0
		}
		total := decimal.Zero
		for _, p := range payments {
			if p.Kind == ledger.PayCycles {
				total = total.Add(p.Taken)
			}
		}
		cycles := total.Div(snap.CyclePrice).IntPart()
		return int(cycles) * snap.CycleSize
	}
	return 0
}
