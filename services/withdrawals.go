package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/utils"
)

// Denial explains a rejected withdrawal. A nil *Denial means allowed.
type Denial struct {
	Reason DenyReason `json:"reason"`
}

// ValidateWithdrawal gates withdrawal intent against the position's current
// state. It never mutates anything: the principal decrement and any terminal
// transition happen only once the external confirmation is observed, so a
// withdrawal that never settles is never credited.
func ValidateWithdrawal(p *models.Position, amount decimal.Decimal, now time.Time) *Denial {
	if p.IsTerminal() {
		return &Denial{Reason: DenyPositionClosed}
	}
	if p.Kind == models.KindFixedTerm && p.UnlockAt != nil && now.Before(*p.UnlockAt) {
		return &Denial{Reason: DenyLocked}
	}
	if amount.GreaterThan(p.Principal) {
		return &Denial{Reason: DenyInsufficientPrincipal}
	}
	return nil
}

// WithdrawalService turns allowed intents into pending ledger entries plus
// outbound transfer requests.
type WithdrawalService struct {
	positions *PositionService
	ledger    *ActivityLedger
	transfers TransferRequester
	locks     *UserLocks
}

func NewWithdrawalService(positions *PositionService, ledger *ActivityLedger, transfers TransferRequester, locks *UserLocks) *WithdrawalService {
	return &WithdrawalService{positions: positions, ledger: ledger, transfers: transfers, locks: locks}
}

// Request validates and records a withdrawal intent. The returned denial is
// an expected outcome, not an error.
func (s *WithdrawalService) Request(ctx context.Context, userID, positionID string, req models.WithdrawRequest, now time.Time) (*models.Activity, *Denial, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, ErrInvalidAmount
	}

	p, err := s.positions.getOwned(ctx, userID, positionID)
	if err != nil {
		return nil, nil, err
	}

	if denial := ValidateWithdrawal(p, req.Amount, now); denial != nil {
		utils.LogWithdrawal("denied:"+string(denial.Reason), p.ID, userID)
		return nil, denial, nil
	}

	amount := req.Amount
	activity, err := s.ledger.Record(ctx, userID, models.ActivityWithdraw, p.ID, &amount, req.ExternalRef, nil, now)
	if err != nil {
		return nil, nil, err
	}

	s.transfers.Request(ctx, models.TransferRequest{
		ExternalRef: activity.ExternalRef,
		UserID:      userID,
		PositionID:  p.ID,
		Amount:      amount,
		Kind:        models.ActivityWithdraw,
	})

	utils.LogWithdrawal("requested", p.ID, userID)
	return activity, nil, nil
}
