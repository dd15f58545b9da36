package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/store"
)

// CapTracker keeps the rolling daily/monthly saved totals per user. Periods
// roll over lazily: usage for an unseen day or month starts at zero, stale
// rows are pruned by a background sweep but never need to be for correctness.
type CapTracker struct {
	caps store.CapStore
}

func NewCapTracker(caps store.CapStore) *CapTracker {
	return &CapTracker{caps: caps}
}

// Reservation is the committed outcome of an accepted cap reservation.
type Reservation struct {
	Amount           decimal.Decimal
	RemainingDaily   decimal.Decimal
	RemainingMonthly decimal.Decimal
}

// Remaining reads what is left of both caps without reserving anything.
func (t *CapTracker) Remaining(ctx context.Context, userID string, cfg *models.SpendSaveConfig, now time.Time) (CapRemaining, error) {
	daySaved, err := t.caps.GetUsage(ctx, userID, models.DayKey(now))
	if err != nil {
		return CapRemaining{}, err
	}
	monthSaved, err := t.caps.GetUsage(ctx, userID, models.MonthKey(now))
	if err != nil {
		return CapRemaining{}, err
	}
	return CapRemaining{
		Daily:   cfg.DailyCap.Sub(daySaved),
		Monthly: cfg.MonthlyCap.Sub(monthSaved),
	}, nil
}

// Reserve commits amount against both caps, or rejects without touching
// usage. Callers must hold the user's lock so the check and the increment
// cannot interleave with a concurrent reservation.
func (t *CapTracker) Reserve(ctx context.Context, userID string, cfg *models.SpendSaveConfig, amount decimal.Decimal, now time.Time) (*Reservation, error) {
	remaining, err := t.Remaining(ctx, userID, cfg, now)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(remaining.Daily) {
		return nil, ErrDailyCapExceeded
	}
	if amount.GreaterThan(remaining.Monthly) {
		return nil, ErrMonthlyCapExceeded
	}

	if err := t.caps.AddUsage(ctx, userID, models.DayKey(now), models.MonthKey(now), amount); err != nil {
		return nil, err
	}
	return &Reservation{
		Amount:           amount,
		RemainingDaily:   remaining.Daily.Sub(amount),
		RemainingMonthly: remaining.Monthly.Sub(amount),
	}, nil
}

// PruneElapsed drops usage rows older than the retention window.
func (t *CapTracker) PruneElapsed(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	cutoff := models.DayKey(now.Add(-retention))
	return t.caps.PruneUsageBefore(ctx, cutoff)
}
