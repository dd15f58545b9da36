package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/store"
)

// SavingsSummary feeds the dashboard stats card.
type SavingsSummary struct {
	TotalPrincipal   decimal.Decimal                         `json:"total_principal"`
	ByKind           map[models.PositionKind]decimal.Decimal `json:"by_kind"`
	OpenPositions    int                                     `json:"open_positions"`
	AutoSavedToday   decimal.Decimal                         `json:"auto_saved_today"`
	AutoSavedMonth   decimal.Decimal                         `json:"auto_saved_month"`
	RemainingDaily   *decimal.Decimal                        `json:"remaining_daily,omitempty"`
	RemainingMonthly *decimal.Decimal                        `json:"remaining_monthly,omitempty"`
}

// SummaryService aggregates positions and cap usage into display figures.
type SummaryService struct {
	st   store.Store
	caps *CapTracker
}

func NewSummaryService(st store.Store, caps *CapTracker) *SummaryService {
	return &SummaryService{st: st, caps: caps}
}

func (s *SummaryService) Summary(ctx context.Context, userID string, now time.Time) (*SavingsSummary, error) {
	positions, err := s.st.ListPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &SavingsSummary{
		ByKind: map[models.PositionKind]decimal.Decimal{
			models.KindTarget:    decimal.Zero,
			models.KindFixedTerm: decimal.Zero,
			models.KindRecurring: decimal.Zero,
		},
	}

	for _, p := range positions {
		if p.IsTerminal() {
			continue
		}
		summary.OpenPositions++
		summary.TotalPrincipal = summary.TotalPrincipal.Add(p.Principal)
		summary.ByKind[p.Kind] = summary.ByKind[p.Kind].Add(p.Principal)
	}

	daySaved, err := s.st.GetUsage(ctx, userID, models.DayKey(now))
	if err != nil {
		return nil, err
	}
	monthSaved, err := s.st.GetUsage(ctx, userID, models.MonthKey(now))
	if err != nil {
		return nil, err
	}
	summary.AutoSavedToday = daySaved
	summary.AutoSavedMonth = monthSaved

	if cfg, err := s.st.GetConfig(ctx, userID); err == nil {
		daily := cfg.DailyCap.Sub(daySaved)
		monthly := cfg.MonthlyCap.Sub(monthSaved)
		summary.RemainingDaily = &daily
		summary.RemainingMonthly = &monthly
	}

	return summary, nil
}
