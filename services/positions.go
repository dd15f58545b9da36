package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/store"
	"github.com/fundkit/savings-api/utils"
)

// PositionService owns the lifecycle of savings positions. It records intent
// in the ledger; principal only moves when the ledger reconciles a confirmed
// activity (see ActivityLedger).
type PositionService struct {
	positions store.PositionStore
	configs   store.ConfigStore
	ledger    *ActivityLedger
	transfers TransferRequester
	locks     *UserLocks
}

func NewPositionService(st store.Store, ledger *ActivityLedger, transfers TransferRequester, locks *UserLocks) *PositionService {
	return &PositionService{
		positions: st,
		configs:   st,
		ledger:    ledger,
		transfers: transfers,
		locks:     locks,
	}
}

// Create validates kind-specific parameters and opens a new position.
func (s *PositionService) Create(ctx context.Context, userID string, req models.CreatePositionRequest, now time.Time) (*models.Position, *models.Activity, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	p := &models.Position{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      req.Kind,
		Principal: decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch req.Kind {
	case models.KindTarget:
		if req.TargetAmount.LessThanOrEqual(decimal.Zero) {
			return nil, nil, fmt.Errorf("%w: target_amount must be positive", ErrInvalidParameters)
		}
		p.TargetAmount = req.TargetAmount
		p.State = models.StateActive

	case models.KindFixedTerm:
		if req.UnlockAt == nil || !req.UnlockAt.After(now) {
			return nil, nil, fmt.Errorf("%w: unlock_at must be in the future", ErrInvalidParameters)
		}
		p.UnlockAt = req.UnlockAt
		p.State = models.StateLocked

	case models.KindRecurring:
		// A recurring position references the user's Spend & Save config.
		cfg, err := s.configs.GetConfig(ctx, userID)
		if err == store.ErrNotFound {
			return nil, nil, fmt.Errorf("%w: spend & save config required for recurring positions", ErrInvalidParameters)
		}
		if err != nil {
			return nil, nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
		}
		p.State = models.StateActive

	default:
		return nil, nil, fmt.Errorf("%w: unknown position kind %q", ErrInvalidParameters, req.Kind)
	}

	if err := s.positions.CreatePosition(ctx, p); err != nil {
		return nil, nil, err
	}

	metadata, _ := json.Marshal(map[string]interface{}{"kind": p.Kind})
	activity, err := s.ledger.Record(ctx, userID, models.ActivityPositionCreated, p.ID, nil, "", metadata, now)
	if err != nil {
		return nil, nil, err
	}

	utils.LogPositionAction("create", p.ID, userID)
	return p, activity, nil
}

// RequestDeposit records a pending deposit and hands the transfer request to
// the external executor. Principal is untouched until confirmation.
func (s *PositionService) RequestDeposit(ctx context.Context, userID, positionID string, req models.DepositRequest, now time.Time) (*models.Activity, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: deposit amount must be positive", ErrInvalidAmount)
	}

	p, err := s.getOwned(ctx, userID, positionID)
	if err != nil {
		return nil, err
	}
	if p.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot deposit into a %s position", ErrInvalidTransition, p.State)
	}

	amount := req.Amount
	activity, err := s.ledger.Record(ctx, userID, models.ActivityDeposit, p.ID, &amount, req.ExternalRef, nil, now)
	if err != nil {
		return nil, err
	}

	s.transfers.Request(ctx, models.TransferRequest{
		ExternalRef: activity.ExternalRef,
		UserID:      userID,
		PositionID:  p.ID,
		Amount:      amount,
		Kind:        models.ActivityDeposit,
	})

	utils.LogPositionAction("deposit-requested", p.ID, userID)
	return activity, nil
}

// SetPaused toggles a recurring position between active and paused.
func (s *PositionService) SetPaused(ctx context.Context, userID, positionID string, paused bool, now time.Time) (*models.Position, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	p, err := s.getOwned(ctx, userID, positionID)
	if err != nil {
		return nil, err
	}
	if p.Kind != models.KindRecurring {
		return nil, fmt.Errorf("%w: only recurring positions can be paused", ErrInvalidTransition)
	}
	if p.IsTerminal() {
		return nil, fmt.Errorf("%w: position is %s", ErrInvalidTransition, p.State)
	}

	if paused {
		p.State = models.StatePaused
	} else {
		p.State = models.StateActive
	}
	p.UpdatedAt = now

	if err := s.positions.UpdatePosition(ctx, p); err != nil {
		return nil, err
	}
	utils.LogPositionAction(fmt.Sprintf("paused=%t", paused), p.ID, userID)
	return p, nil
}

// Get returns one position with its lazily evaluated state.
func (s *PositionService) Get(ctx context.Context, userID, positionID string) (*models.Position, error) {
	return s.getOwned(ctx, userID, positionID)
}

// List returns all of a user's positions, newest first.
func (s *PositionService) List(ctx context.Context, userID string) ([]models.Position, error) {
	return s.positions.ListPositions(ctx, userID)
}

func (s *PositionService) getOwned(ctx context.Context, userID, positionID string) (*models.Position, error) {
	p, err := s.positions.GetPosition(ctx, positionID)
	if err == store.ErrNotFound {
		return nil, ErrPositionNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrForbidden
	}
	return p, nil
}
