package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/store"
	"github.com/fundkit/savings-api/utils"
)

// SpendSaveService owns the Spend & Save configuration and turns observed
// spend events into auto-save decisions.
type SpendSaveService struct {
	configs   store.ConfigStore
	positions store.PositionStore
	caps      *CapTracker
	ledger    *ActivityLedger
	transfers TransferRequester
	locks     *UserLocks
}

func NewSpendSaveService(st store.Store, caps *CapTracker, ledger *ActivityLedger, transfers TransferRequester, locks *UserLocks) *SpendSaveService {
	return &SpendSaveService{
		configs:   st,
		positions: st,
		caps:      caps,
		ledger:    ledger,
		transfers: transfers,
		locks:     locks,
	}
}

// GetConfig returns the user's config, ErrConfigNotFound when never enabled.
func (s *SpendSaveService) GetConfig(ctx context.Context, userID string) (*models.SpendSaveConfig, error) {
	cfg, err := s.configs.GetConfig(ctx, userID)
	if err == store.ErrNotFound {
		return nil, ErrConfigNotFound
	}
	return cfg, err
}

// UpdateConfig validates and upserts the config, and records the change in
// the ledger (config updates correspond to on-chain transactions in the
// settlement layer, so they reconcile like any other activity).
func (s *SpendSaveService) UpdateConfig(ctx context.Context, userID string, req models.UpdateConfigRequest, now time.Time) (*models.SpendSaveConfig, *models.Activity, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	cfg := &models.SpendSaveConfig{
		UserID:       userID,
		Enabled:      req.Enabled,
		Mode:         req.Mode,
		Value:        req.Value,
		MinThreshold: req.MinThreshold,
		DailyCap:     req.DailyCap,
		MonthlyCap:   req.MonthlyCap,
		UpdatedAt:    now,
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, ErrInvalidParameters
	}

	if err := s.configs.PutConfig(ctx, cfg); err != nil {
		return nil, nil, err
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"enabled": cfg.Enabled,
		"mode":    cfg.Mode,
	})
	activity, err := s.ledger.Record(ctx, userID, models.ActivityConfigUpdated, "", nil, "", metadata, now)
	if err != nil {
		return nil, nil, err
	}
	return cfg, activity, nil
}

// SetEnabled flips the enabled switch without touching the other fields.
// Backs the pause and disable endpoints.
func (s *SpendSaveService) SetEnabled(ctx context.Context, userID string, enabled bool, now time.Time) (*models.SpendSaveConfig, *models.Activity, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	cfg, err := s.configs.GetConfig(ctx, userID)
	if err == store.ErrNotFound {
		return nil, nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	cfg.Enabled = enabled
	cfg.UpdatedAt = now
	if err := s.configs.PutConfig(ctx, cfg); err != nil {
		return nil, nil, err
	}

	metadata, _ := json.Marshal(map[string]interface{}{"enabled": enabled})
	activity, err := s.ledger.Record(ctx, userID, models.ActivityConfigUpdated, "", nil, "", metadata, now)
	if err != nil {
		return nil, nil, err
	}
	return cfg, activity, nil
}

// SpendResult is the typed outcome of handling one spend event.
type SpendResult struct {
	Saved            bool             `json:"saved"`
	Reason           SkipReason       `json:"reason,omitempty"`
	Amount           decimal.Decimal  `json:"amount"`
	RemainingDaily   decimal.Decimal  `json:"remaining_daily"`
	RemainingMonthly decimal.Decimal  `json:"remaining_monthly"`
	Activity         *models.Activity `json:"activity,omitempty"`
}

// HandleSpend runs the full decision pipeline for one observed spend:
// evaluate under the user's lock, reserve the caps atomically with the
// decision, append the ledger entry and emit the transfer request. Duplicate
// or concurrent events for the same user cannot jointly overshoot a cap.
func (s *SpendSaveService) HandleSpend(ctx context.Context, event models.SpendEvent, now time.Time) (*SpendResult, error) {
	unlock := s.locks.Lock(event.UserID)
	defer unlock()

	cfg, err := s.configs.GetConfig(ctx, event.UserID)
	if err == store.ErrNotFound {
		return &SpendResult{Reason: SkipDisabled}, nil
	}
	if err != nil {
		return nil, err
	}

	target, err := s.recurringTarget(ctx, event.UserID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		// No active recurring position to receive the save.
		return &SpendResult{Reason: SkipDisabled}, nil
	}

	remaining, err := s.caps.Remaining(ctx, event.UserID, cfg, now)
	if err != nil {
		return nil, err
	}

	decision := EvaluateSpend(cfg, event.Amount, remaining)
	if !decision.Save {
		utils.LogSpendSave("skip:"+string(decision.Reason), event.UserID, decimal.Zero)
		return &SpendResult{
			Reason:           decision.Reason,
			RemainingDaily:   remaining.Daily,
			RemainingMonthly: remaining.Monthly,
		}, nil
	}

	reservation, err := s.caps.Reserve(ctx, event.UserID, cfg, decision.Amount, now)
	if err == ErrDailyCapExceeded || err == ErrMonthlyCapExceeded {
		return &SpendResult{
			Reason:           SkipCapExceeded,
			RemainingDaily:   remaining.Daily,
			RemainingMonthly: remaining.Monthly,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	savePct := decision.Amount.Div(event.Amount).Mul(hundredDec)
	metadata, _ := json.Marshal(map[string]interface{}{
		"spent":           event.Amount,
		"category":        event.Category,
		"save_percentage": savePct.Round(1),
	})

	activity, err := s.ledger.Record(ctx, event.UserID, models.ActivitySpendSave, target.ID, &decision.Amount, "", metadata, now)
	if err != nil {
		return nil, err
	}

	s.transfers.Request(ctx, models.TransferRequest{
		ExternalRef: activity.ExternalRef,
		UserID:      event.UserID,
		PositionID:  target.ID,
		Amount:      decision.Amount,
		Kind:        models.ActivitySpendSave,
	})

	utils.LogSpendSave("save", event.UserID, decision.Amount)
	return &SpendResult{
		Saved:            true,
		Amount:           decision.Amount,
		RemainingDaily:   reservation.RemainingDaily,
		RemainingMonthly: reservation.RemainingMonthly,
		Activity:         activity,
	}, nil
}

// recurringTarget finds the active recurring position auto-saves flow into.
// Paused positions do not receive saves; nil with no error means there is
// simply nowhere to save to.
func (s *SpendSaveService) recurringTarget(ctx context.Context, userID string) (*models.Position, error) {
	positions, err := s.positions.ListPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		p := &positions[i]
		if p.Kind == models.KindRecurring && p.State == models.StateActive {
			return p, nil
		}
	}
	return nil, nil
}
