package services

import (
	"github.com/shopspring/decimal"

	"github.com/fundkit/savings-api/models"
)

// CapRemaining is what is left of the rolling caps at evaluation time.
type CapRemaining struct {
	Daily   decimal.Decimal
	Monthly decimal.Decimal
}

// Decision is the outcome of evaluating one spend event.
type Decision struct {
	Save   bool
	Amount decimal.Decimal
	Reason SkipReason // set when Save is false
}

// EvaluateSpend decides whether and how much to auto-save for a spend.
// Pure function: the caller composes it with the cap reservation under the
// per-user lock so that check-then-reserve is atomic.
//
// Percentage mode saves spend*value/100. Fixed mode saves the configured flat
// amount on every qualifying transaction regardless of spend size; only the
// threshold gates eligibility. The result is clamped so the engine never
// saves more than the spend itself or than the remaining caps.
func EvaluateSpend(cfg *models.SpendSaveConfig, spend decimal.Decimal, remaining CapRemaining) Decision {
	if cfg == nil || !cfg.Enabled {
		return Decision{Reason: SkipDisabled}
	}
	if spend.LessThan(cfg.MinThreshold) {
		return Decision{Reason: SkipBelowThreshold}
	}

	var raw decimal.Decimal
	if cfg.Mode == models.ModePercentage {
		raw = spend.Mul(cfg.Value).Div(hundredDec)
	} else {
		raw = cfg.Value
	}

	amount := decimal.Min(raw, spend, remaining.Daily, remaining.Monthly)
	if amount.LessThanOrEqual(decimal.Zero) {
		return Decision{Reason: SkipCapExceeded}
	}
	return Decision{Save: true, Amount: amount}
}

var hundredDec = decimal.NewFromInt(100)
