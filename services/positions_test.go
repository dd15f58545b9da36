package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundkit/savings-api/models"
)

func TestCreateTargetPosition(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	p, activity, err := env.positions.Create(ctx, "u1", models.CreatePositionRequest{
		Kind:         models.KindTarget,
		TargetAmount: dec("1000"),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, models.StateActive, p.State)
	assert.True(t, p.Principal.IsZero())
	assert.Equal(t, models.ActivityPositionCreated, activity.Kind)
	assert.Equal(t, models.StatusPending, activity.Status)
	assert.NotEmpty(t, activity.ExternalRef)
}

func TestCreatePositionValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		req  models.CreatePositionRequest
	}{
		{"target without amount", models.CreatePositionRequest{Kind: models.KindTarget}},
		{"target negative amount", models.CreatePositionRequest{Kind: models.KindTarget, TargetAmount: dec("-5")}},
		{"fixed without unlock", models.CreatePositionRequest{Kind: models.KindFixedTerm}},
		{"fixed unlock in past", models.CreatePositionRequest{Kind: models.KindFixedTerm, UnlockAt: &past}},
		{"recurring without config", models.CreatePositionRequest{Kind: models.KindRecurring}},
		{"unknown kind", models.CreatePositionRequest{Kind: "lottery"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.positions.Create(ctx, "u1", tt.req, now)
			assert.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

func TestCreateRecurringRequiresConfig(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	env.putConfig("u1", true, models.ModePercentage, "10", "10", "50", "500")

	p, _, err := env.positions.Create(ctx, "u1", models.CreatePositionRequest{Kind: models.KindRecurring}, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, p.State)
}

func TestFixedTermStartsLocked(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	unlock := now.Add(30 * 24 * time.Hour)

	p, _, err := env.positions.Create(ctx, "u1", models.CreatePositionRequest{
		Kind:     models.KindFixedTerm,
		UnlockAt: &unlock,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, models.StateLocked, p.State)
	// Unlock is derived at read time, never persisted.
	assert.Equal(t, models.StateUnlockable, p.EffectiveState(unlock))
	assert.Equal(t, models.StateLocked, env.position(p.ID).State)
}

func TestRequestDepositRecordsPendingIntent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	p, _, err := env.positions.Create(ctx, "u1", models.CreatePositionRequest{
		Kind:         models.KindTarget,
		TargetAmount: dec("1000"),
	}, now)
	require.NoError(t, err)

	activity, err := env.positions.RequestDeposit(ctx, "u1", p.ID, models.DepositRequest{
		Amount:      dec("100"),
		ExternalRef: "0xabc",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, activity.Status)
	assert.Equal(t, "0xabc", activity.ExternalRef)
	assert.True(t, env.position(p.ID).Principal.IsZero(), "principal must not move before confirmation")
}

func TestRequestDepositRejections(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	env.putPosition(&models.Position{
		ID: "p-closed", UserID: "u1", Kind: models.KindTarget,
		State: models.StateWithdrawn, Principal: decimal.Zero,
	})

	_, err := env.positions.RequestDeposit(ctx, "u1", "p-closed", models.DepositRequest{Amount: dec("10")}, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.positions.RequestDeposit(ctx, "u1", "p-closed", models.DepositRequest{Amount: dec("-10")}, now)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.positions.RequestDeposit(ctx, "u1", "no-such", models.DepositRequest{Amount: dec("10")}, now)
	assert.ErrorIs(t, err, ErrPositionNotFound)

	_, err = env.positions.RequestDeposit(ctx, "u2", "p-closed", models.DepositRequest{Amount: dec("10")}, now)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSetPausedRecurringOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	env.putConfig("u1", true, models.ModePercentage, "10", "10", "50", "500")
	recurring, _, err := env.positions.Create(ctx, "u1", models.CreatePositionRequest{Kind: models.KindRecurring}, now)
	require.NoError(t, err)
	target, _, err := env.positions.Create(ctx, "u1", models.CreatePositionRequest{
		Kind: models.KindTarget, TargetAmount: dec("100"),
	}, now)
	require.NoError(t, err)

	p, err := env.positions.SetPaused(ctx, "u1", recurring.ID, true, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatePaused, p.State)

	p, err = env.positions.SetPaused(ctx, "u1", recurring.ID, false, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, p.State)

	_, err = env.positions.SetPaused(ctx, "u1", target.ID, true, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestListPositionsOwnership(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	_, _, err := env.positions.Create(ctx, "u1", models.CreatePositionRequest{
		Kind: models.KindTarget, TargetAmount: dec("100"),
	}, now)
	require.NoError(t, err)

	mine, err := env.positions.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := env.positions.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, theirs)
}
