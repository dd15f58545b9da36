package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// ACTIVITY LEDGER
// ============================================================================

type ActivityKind string

const (
	ActivityDeposit         ActivityKind = "deposit"
	ActivityWithdraw        ActivityKind = "withdraw"
	ActivitySpendSave       ActivityKind = "spend-save"
	ActivityPositionCreated ActivityKind = "position-created"
	ActivityConfigUpdated   ActivityKind = "config-updated"
)

type ActivityStatus string

const (
	StatusPending   ActivityStatus = "pending"
	StatusConfirmed ActivityStatus = "confirmed"
	StatusFailed    ActivityStatus = "failed"
)

// Activity is an append-only ledger entry. Status only moves
// pending -> confirmed or pending -> failed, never back.
type Activity struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Kind        ActivityKind     `json:"kind"`
	PositionID  string           `json:"position_id,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	ExternalRef string           `json:"external_ref"`
	Status      ActivityStatus   `json:"status"`
	Metadata    json.RawMessage  `json:"metadata,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
	SettledAt   *time.Time       `json:"settled_at,omitempty"`
}

// ============================================================================
// COLLABORATOR EVENTS
// ============================================================================

// SpendEvent is an observed outgoing payment pushed by the
// transaction-observing collaborator.
type SpendEvent struct {
	UserID     string          `json:"user_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Category   string          `json:"category"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Confirmation is the settlement callback matching a pending activity
// through its external reference.
type Confirmation struct {
	ExternalRef string         `json:"external_ref" binding:"required"`
	Outcome     ActivityStatus `json:"outcome" binding:"required"`
}

// TransferRequest is what the core hands to the external transfer executor.
// The core never signs or submits transfers itself.
type TransferRequest struct {
	ExternalRef string          `json:"external_ref"`
	UserID      string          `json:"user_id"`
	PositionID  string          `json:"position_id"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        ActivityKind    `json:"kind"`
}
