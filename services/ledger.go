package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/store"
	"github.com/fundkit/savings-api/utils"
)

// Notifier pushes ledger changes to connected clients. The websocket handler
// implements it; tests use a no-op.
type Notifier interface {
	NotifyActivity(userID string, activity *models.Activity)
}

type noopNotifier struct{}

func (noopNotifier) NotifyActivity(string, *models.Activity) {}

// NoopNotifier is used when no websocket layer is wired.
var NoopNotifier Notifier = noopNotifier{}

// ActivityLedger is the append-only record of every locally initiated
// operation. Entries start pending and are reconciled exactly once against
// the external settlement layer; confirmed money movements are what actually
// commit principal changes.
type ActivityLedger struct {
	activities store.ActivityStore
	positions  store.PositionStore
	configs    store.ConfigStore
	locks      *UserLocks
	notifier   Notifier
}

func NewActivityLedger(st store.Store, locks *UserLocks, notifier Notifier) *ActivityLedger {
	if notifier == nil {
		notifier = NoopNotifier
	}
	return &ActivityLedger{
		activities: st,
		positions:  st,
		configs:    st,
		locks:      locks,
		notifier:   notifier,
	}
}

// Record appends a pending entry. externalRef is generated when the caller
// does not supply one (e.g. a tx hash from a user-signed transfer).
func (l *ActivityLedger) Record(ctx context.Context, userID string, kind models.ActivityKind, positionID string, amount *decimal.Decimal, externalRef string, metadata json.RawMessage, now time.Time) (*models.Activity, error) {
	if externalRef == "" {
		externalRef = uuid.New().String()
	}

	activity := &models.Activity{
		ID:          uuid.New().String(),
		UserID:      userID,
		Kind:        kind,
		PositionID:  positionID,
		Amount:      amount,
		ExternalRef: externalRef,
		Status:      models.StatusPending,
		Metadata:    metadata,
		RequestedAt: now,
	}

	if err := l.activities.AppendActivity(ctx, activity); err != nil {
		return nil, err
	}

	l.notifier.NotifyActivity(userID, activity)
	return activity, nil
}

// Reconcile matches a confirmation callback to its pending entry.
//
// Idempotent: redelivering the same (externalRef, outcome) pair is a no-op
// returning the settled entry; a different outcome for an already settled
// entry is a ConflictingReconciliation error and the ledger is never
// silently overwritten. Confirmed deposits and spend-saves commit the
// position's principal increment; confirmed withdrawals commit the decrement
// and any resulting terminal transition.
func (l *ActivityLedger) Reconcile(ctx context.Context, externalRef string, outcome models.ActivityStatus, now time.Time) (*models.Activity, error) {
	if outcome != models.StatusConfirmed && outcome != models.StatusFailed {
		return nil, ErrInvalidParameters
	}

	activity, err := l.activities.GetByExternalRef(ctx, externalRef)
	if err == store.ErrNotFound {
		return nil, ErrUnknownReference
	}
	if err != nil {
		return nil, err
	}

	if activity.Status != models.StatusPending {
		if activity.Status == outcome {
			return activity, nil
		}
		return nil, ErrConflictingReconciliation
	}

	// Position effects are serialized per user like every other mutation.
	unlock := l.locks.Lock(activity.UserID)
	defer unlock()

	// Compute the confirmed effect up front so the status flip and the
	// principal movement land in one store write. A flip without its effect
	// would be unrecoverable: redelivery is a no-op once the entry settled.
	var position *models.Position
	if outcome == models.StatusConfirmed {
		position, err = l.confirmedEffect(ctx, activity, now)
		if err != nil {
			return nil, err
		}
	}

	applied, err := l.activities.SettleActivity(ctx, externalRef, outcome, now, position)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race against a concurrent delivery of the same
		// confirmation. Re-read and apply the idempotence rule; our computed
		// effect was discarded with the losing write.
		settled, err := l.activities.GetByExternalRef(ctx, externalRef)
		if err != nil {
			return nil, err
		}
		if settled.Status == outcome {
			return settled, nil
		}
		return nil, ErrConflictingReconciliation
	}

	activity.Status = outcome
	activity.SettledAt = &now

	utils.LogReconciliation(string(outcome), externalRef, activity.UserID)
	l.notifier.NotifyActivity(activity.UserID, activity)
	return activity, nil
}

// confirmedEffect loads the position and returns it with the confirmed
// activity's principal movement applied, nil when the activity moves no money.
// Nothing is written here; the settle write persists the result.
func (l *ActivityLedger) confirmedEffect(ctx context.Context, activity *models.Activity, now time.Time) (*models.Position, error) {
	if activity.PositionID == "" || activity.Amount == nil {
		return nil, nil
	}

	p, err := l.positions.GetPosition(ctx, activity.PositionID)
	if err != nil {
		return nil, err
	}

	switch activity.Kind {
	case models.ActivityDeposit, models.ActivitySpendSave:
		l.credit(p, *activity.Amount, now)
	case models.ActivityWithdraw:
		if err := l.debit(ctx, p, *activity.Amount, now); err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}
	return p, nil
}

func (l *ActivityLedger) credit(p *models.Position, amount decimal.Decimal, now time.Time) {
	p.Principal = p.Principal.Add(amount)
	// Target completion triggers exactly when principal crosses the target
	// and never reverts.
	if p.Kind == models.KindTarget && p.State == models.StateActive &&
		p.Principal.GreaterThanOrEqual(p.TargetAmount) {
		p.State = models.StateCompleted
		t := now
		p.CompletedAt = &t
	}
	p.UpdatedAt = now
}

func (l *ActivityLedger) debit(ctx context.Context, p *models.Position, amount decimal.Decimal, now time.Time) error {
	p.Principal = p.Principal.Sub(amount)
	if p.Principal.IsNegative() {
		// Intent was validated against principal at request time; clamp so
		// the principal >= 0 invariant survives pathological settlements.
		p.Principal = decimal.Zero
	}

	if p.Principal.IsZero() {
		switch p.Kind {
		case models.KindTarget, models.KindFixedTerm:
			p.State = models.StateWithdrawn
		case models.KindRecurring:
			// Closed only when the user has also disabled Spend & Save;
			// otherwise the automation keeps the position open at zero.
			cfg, err := l.configs.GetConfig(ctx, p.UserID)
			if err == store.ErrNotFound || (err == nil && !cfg.Enabled) {
				p.State = models.StateClosed
			} else if err != nil {
				return err
			}
		}
	}
	p.UpdatedAt = now
	return nil
}

// ListRecent returns the newest entries for a user, capped at limit.
func (l *ActivityLedger) ListRecent(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return l.activities.ListRecent(ctx, userID, limit)
}

// ListByKind returns all entries of one kind for a user, newest first.
func (l *ActivityLedger) ListByKind(ctx context.Context, userID string, kind models.ActivityKind) ([]models.Activity, error) {
	return l.activities.ListByKind(ctx, userID, kind)
}
