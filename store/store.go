// Package store holds the persistence contracts for the savings engine.
// The domain services never assume a storage technology: anything that can
// satisfy these interfaces (Postgres in production, the in-memory store in
// tests) works.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundkit/savings-api/models"
)

var (
	ErrNotFound     = errors.New("store: not found")
	ErrDuplicateRef = errors.New("store: duplicate external reference")
)

type ConfigStore interface {
	// GetConfig returns ErrNotFound when the user never enabled Spend & Save.
	GetConfig(ctx context.Context, userID string) (*models.SpendSaveConfig, error)
	// PutConfig upserts the single config row per user.
	PutConfig(ctx context.Context, cfg *models.SpendSaveConfig) error
}

type CapStore interface {
	// GetUsage returns the saved-so-far total for one period key, zero when
	// the period has not been seen yet (lazy creation).
	GetUsage(ctx context.Context, userID, periodKey string) (decimal.Decimal, error)
	// AddUsage increments both the day and month rows atomically.
	AddUsage(ctx context.Context, userID, dayKey, monthKey string, amount decimal.Decimal) error
	// PruneUsageBefore deletes rows whose period key sorts before the cutoff
	// day key. Housekeeping only; correctness never depends on it.
	PruneUsageBefore(ctx context.Context, cutoffDayKey string) (int64, error)
}

type PositionStore interface {
	CreatePosition(ctx context.Context, p *models.Position) error
	GetPosition(ctx context.Context, id string) (*models.Position, error)
	ListPositions(ctx context.Context, userID string) ([]models.Position, error)
	UpdatePosition(ctx context.Context, p *models.Position) error
}

type ActivityStore interface {
	// AppendActivity returns ErrDuplicateRef when the external reference is
	// already taken.
	AppendActivity(ctx context.Context, a *models.Activity) error
	GetByExternalRef(ctx context.Context, externalRef string) (*models.Activity, error)
	// SettleActivity flips status only when the entry is still pending and
	// reports whether the flip was applied. When position is non-nil its new
	// row lands in the same store write as the flip, so a confirmed principal
	// movement can never be separated from its settlement. The conditional
	// write is what makes redelivered confirmations safe without a lock.
	SettleActivity(ctx context.Context, externalRef string, outcome models.ActivityStatus, settledAt time.Time, position *models.Position) (bool, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]models.Activity, error)
	ListByKind(ctx context.Context, userID string, kind models.ActivityKind) ([]models.Activity, error)
}

// Store is the full persistence surface the services are wired against.
type Store interface {
	ConfigStore
	CapStore
	PositionStore
	ActivityStore
}
