package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// SPEND & SAVE CONFIGURATION
// ============================================================================

type SaveMode string

const (
	ModePercentage SaveMode = "percentage"
	ModeFixed      SaveMode = "fixed"
)

// SpendSaveConfig holds one user's automatic saving rules. Amounts are USDC.
type SpendSaveConfig struct {
	UserID       string          `json:"user_id"`
	Enabled      bool            `json:"enabled"`
	Mode         SaveMode        `json:"mode"`
	Value        decimal.Decimal `json:"value"`
	MinThreshold decimal.Decimal `json:"min_threshold"`
	DailyCap     decimal.Decimal `json:"daily_cap"`
	MonthlyCap   decimal.Decimal `json:"monthly_cap"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

var hundred = decimal.NewFromInt(100)

// Validate checks the field invariants. dailyCap <= monthlyCap is a
// recommendation, not enforced: the monthly remainder clamps decisions anyway.
func (c *SpendSaveConfig) Validate() error {
	switch c.Mode {
	case ModePercentage:
		if c.Value.LessThanOrEqual(decimal.Zero) || c.Value.GreaterThan(hundred) {
			return errors.New("percentage value must be in (0, 100]")
		}
	case ModeFixed:
		if c.Value.LessThanOrEqual(decimal.Zero) {
			return errors.New("fixed value must be positive")
		}
	default:
		return errors.New("mode must be 'percentage' or 'fixed'")
	}
	if c.MinThreshold.IsNegative() {
		return errors.New("min_threshold must not be negative")
	}
	if c.DailyCap.LessThanOrEqual(decimal.Zero) {
		return errors.New("daily_cap must be positive")
	}
	if c.MonthlyCap.LessThanOrEqual(decimal.Zero) {
		return errors.New("monthly_cap must be positive")
	}
	return nil
}

type UpdateConfigRequest struct {
	Enabled      bool            `json:"enabled"`
	Mode         SaveMode        `json:"mode" binding:"required"`
	Value        decimal.Decimal `json:"value" binding:"required"`
	MinThreshold decimal.Decimal `json:"min_threshold"`
	DailyCap     decimal.Decimal `json:"daily_cap" binding:"required"`
	MonthlyCap   decimal.Decimal `json:"monthly_cap" binding:"required"`
}

// ============================================================================
// CAP USAGE
// ============================================================================

// CapUsage tracks how much was auto-saved in one rolling period.
// PeriodKey is "2006-01-02" (UTC day) or "2006-01" (UTC month).
type CapUsage struct {
	UserID     string          `json:"user_id"`
	PeriodKey  string          `json:"period_key"`
	SavedSoFar decimal.Decimal `json:"saved_so_far"`
}

const (
	DayKeyLayout   = "2006-01-02"
	MonthKeyLayout = "2006-01"
)

func DayKey(t time.Time) string   { return t.UTC().Format(DayKeyLayout) }
func MonthKey(t time.Time) string { return t.UTC().Format(MonthKeyLayout) }
