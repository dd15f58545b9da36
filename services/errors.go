package services

import "errors"

// Validation errors: rejected synchronously, no state change.
var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Consistency errors: a caller or collaborator broke its contract. State is
// left untouched, never guessed at.
var (
	ErrInvalidTransition         = errors.New("invalid transition")
	ErrUnknownReference          = errors.New("unknown external reference")
	ErrConflictingReconciliation = errors.New("conflicting reconciliation")
	ErrPositionNotFound          = errors.New("position not found")
	ErrConfigNotFound            = errors.New("spend & save config not found")
	ErrForbidden                 = errors.New("position belongs to another user")
)

// Cap reservation rejections.
var (
	ErrDailyCapExceeded   = errors.New("daily cap exceeded")
	ErrMonthlyCapExceeded = errors.New("monthly cap exceeded")
)

// SkipReason explains why a spend produced no save. These are expected
// outcomes reported as typed results, never errors.
type SkipReason string

const (
	SkipDisabled       SkipReason = "disabled"
	SkipBelowThreshold SkipReason = "below_threshold"
	SkipCapExceeded    SkipReason = "cap_exceeded"
)

// DenyReason explains why a withdrawal was not allowed.
type DenyReason string

const (
	DenyLocked                DenyReason = "locked"
	DenyInsufficientPrincipal DenyReason = "insufficient_principal"
	DenyPositionClosed        DenyReason = "position_closed"
)
