package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// SAVINGS POSITIONS
// ============================================================================

type PositionKind string

const (
	KindTarget    PositionKind = "target"
	KindFixedTerm PositionKind = "fixed"
	KindRecurring PositionKind = "recurring"
)

type PositionState string

const (
	// Target and Recurring start here.
	StateActive PositionState = "active"
	// Target only: principal reached the target amount.
	StateCompleted PositionState = "completed"
	// FixedTerm before unlock_at.
	StateLocked PositionState = "locked"
	// FixedTerm past unlock_at. Never stored, derived by EffectiveState.
	StateUnlockable PositionState = "unlockable"
	// Recurring only, user-toggled, reversible.
	StatePaused PositionState = "paused"
	// Terminal states.
	StateWithdrawn PositionState = "withdrawn"
	StateClosed    PositionState = "closed"
)

// Position is a single savings instance. Principal only changes when a
// deposit, spend-save or withdrawal is confirmed by the settlement layer.
type Position struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Kind      PositionKind    `json:"kind"`
	State     PositionState   `json:"state"`
	Principal decimal.Decimal `json:"principal"`

	// Target only
	TargetAmount decimal.Decimal `json:"target_amount,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`

	// FixedTerm only, immutable once created
	UnlockAt *time.Time `json:"unlock_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether the stored state admits no further transitions.
func (p *Position) IsTerminal() bool {
	return p.State == StateWithdrawn || p.State == StateClosed
}

// EffectiveState derives the display state at a point in time. FixedTerm
// unlock is time-triggered and evaluated lazily, never persisted.
func (p *Position) EffectiveState(now time.Time) PositionState {
	if p.Kind == KindFixedTerm && p.State == StateLocked && p.UnlockAt != nil && !now.Before(*p.UnlockAt) {
		return StateUnlockable
	}
	return p.State
}

// Snapshot is the read-only projection handed to the presentation layer.
type Snapshot struct {
	ID        string          `json:"id"`
	Kind      PositionKind    `json:"kind"`
	Principal decimal.Decimal `json:"principal"`
	State     PositionState   `json:"state"`
}

func (p *Position) Snapshot(now time.Time) Snapshot {
	return Snapshot{ID: p.ID, Kind: p.Kind, Principal: p.Principal, State: p.EffectiveState(now)}
}

// ============================================================================
// POSITION REQUESTS
// ============================================================================

type CreatePositionRequest struct {
	Kind         PositionKind    `json:"kind" binding:"required"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	UnlockAt     *time.Time      `json:"unlock_at"`
}

type DepositRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	// Optional settlement reference (e.g. the tx hash of a user-signed
	// transfer). Generated when absent.
	ExternalRef string `json:"external_ref"`
}

type WithdrawRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	ExternalRef string          `json:"external_ref"`
}

type PauseRequest struct {
	Paused bool `json:"paused"`
}
