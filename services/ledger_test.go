package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/store"
)

func TestRecordGeneratesExternalRef(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	amount := dec("10")
	a, err := env.ledger.Record(ctx, "u1", models.ActivityDeposit, "p1", &amount, "", nil, now)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ExternalRef)
	assert.Equal(t, models.StatusPending, a.Status)

	b, err := env.ledger.Record(ctx, "u1", models.ActivityDeposit, "p1", &amount, "0xdef", nil, now)
	require.NoError(t, err)
	assert.Equal(t, "0xdef", b.ExternalRef)
}

func TestReconcileUnknownReference(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := env.ledger.Reconcile(ctx, "never-seen", models.StatusConfirmed, now)
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestReconcileRejectsInvalidOutcome(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := env.ledger.Reconcile(ctx, "whatever", models.StatusPending, now)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestConfirmedDepositCreditsPrincipal(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	env.putPosition(&models.Position{
		ID: "p1", UserID: "u1", Kind: models.KindTarget,
		State: models.StateActive, TargetAmount: dec("1000"),
	})
	amount := dec("100")
	_, err := env.ledger.Record(ctx, "u1", models.ActivityDeposit, "p1", &amount, "0xabc", nil, now)
	require.NoError(t, err)

	a, err := env.ledger.Reconcile(ctx, "0xabc", models.StatusConfirmed, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, a.Status)
	require.NotNil(t, a.SettledAt)

	assert.True(t, env.position("p1").Principal.Equal(dec("100")))
}

func TestFailedDepositLeavesPrincipalAlone(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	env.putPosition(&models.Position{
		ID: "p1", UserID: "u1", Kind: models.KindTarget,
		State: models.StateActive, TargetAmount: dec("1000"),
	})
	amount := dec("100")
	_, err := env.ledger.Record(ctx, "u1", models.ActivityDeposit, "p1", &amount, "0xabc", nil, now)
	require.NoError(t, err)

	a, err := env.ledger.Reconcile(ctx, "0xabc", models.StatusFailed, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, a.Status)
	assert.True(t, env.position("p1").Principal.IsZero())
}

func TestReconcileIdempotentOnSameOutcome(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	env.putPosition(&models.Position{
		ID: "p1", UserID: "u1", Kind: models.KindTarget,
		State: models.StateActive, TargetAmount: dec("1000"),
	})
	amount := dec("100")
	_, err := env.ledger.Record(ctx, "u1", models.ActivityDeposit, "p1", &amount, "0xabc", nil, now)
	require.NoError(t, err)

	_, err = env.ledger.Reconcile(ctx, "0xabc", models.StatusConfirmed, now)
	require.NoError(t, err)

	// Redelivery: no error, and the credit is not applied twice.
	a, err := env.ledger.Reconcile(ctx, "0xabc", models.StatusConfirmed, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, a.Status)
	assert.True(t, env.position("p1").Principal.Equal(dec("100")))
}

func TestReconcileConflictingOutcome(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	env.putPosition(&models.Position{
		ID: "p1", UserID: "u1", Kind: models.KindTarget,
		State: models.StateActive, TargetAmount: dec("1000"),
	})
	amount := dec("100")
	_, err := env.ledger.Record(ctx, "u1", models.ActivityDeposit, "p1", &amount, "0xabc", nil, now)
	require.NoError(t, err)

	_, err = env.ledger.Reconcile(ctx, "0xabc", models.StatusConfirmed, now)
	require.NoError(t, err)

	_, err = env.ledger.Reconcile(ctx, "0xabc", models.StatusFailed, now)
	assert.ErrorIs(t, err, ErrConflictingReconciliation)

	// The first outcome stands.
	settled, err := env.store.GetByExternalRef(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, settled.Status)
	assert.True(t, env.position("p1").Principal.Equal(dec("100")))
}

func TestTargetCompletesExactlyAtCrossing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	env.putPosition(&models.Position{
		ID: "p1", UserID: "u1", Kind: models.KindTarget,
		State: models.StateActive, TargetAmount: dec("100"), Principal: dec("90"),
	})

	amount := dec("5")
	_, err := env.ledger.Record(ctx, "u1", models.ActivityDeposit, "p1", &amount, "d1", nil, now)
	require.NoError(t, err)
	_, err = env.ledger.Reconcile(ctx, "d1", models.StatusConfirmed, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, env.position("p1").State)

	_, err = env.ledger.Record(ctx, "u1", models.ActivityDeposit, "p1", &amount, "d2", nil, now)
	require.NoError(t, err)
	_, err = env.ledger.Reconcile(ctx, "d2", models.StatusConfirmed, now)
	require.NoError(t, err)

	p := env.position("p1")
	assert.Equal(t, models.StateCompleted, p.State)
	require.NotNil(t, p.CompletedAt)

	// A later withdrawal below the target does not revert completion.
	w := dec("30")
	_, err = env.ledger.Record(ctx, "u1", models.ActivityWithdraw, "p1", &w, "w1", nil, now)
	require.NoError(t, err)
	_, err = env.ledger.Reconcile(ctx, "w1", models.StatusConfirmed, now)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, env.position("p1").State)
}

func TestDrainedTargetBecomesWithdrawn(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	env.putPosition(&models.Position{
		ID: "p1", UserID: "u1", Kind: models.KindTarget,
		State: models.StateActive, TargetAmount: dec("1000"), Principal: dec("70"),
	})

	amount := dec("70")
	_, err := env.ledger.Record(ctx, "u1", models.ActivityWithdraw, "p1", &amount, "w1", nil, now)
	require.NoError(t, err)
	_, err = env.ledger.Reconcile(ctx, "w1", models.StatusConfirmed, now)
	require.NoError(t, err)

	p := env.position("p1")
	assert.Equal(t, models.StateWithdrawn, p.State)
	assert.True(t, p.Principal.IsZero())
}

func TestDrainedRecurringClosesOnlyWhenDisabled(t *testing.T) {
	tests := []struct {
		name      string
		hasConfig bool
		enabled   bool
		want      models.PositionState
	}{
		{"automation still enabled", true, true, models.StateActive},
		{"automation disabled", true, false, models.StateClosed},
		{"config never created", false, false, models.StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			ctx := context.Background()
			now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

			if tt.hasConfig {
				env.putConfig("u1", tt.enabled, models.ModePercentage, "10", "10", "50", "500")
			}
			env.putPosition(&models.Position{
				ID: "p1", UserID: "u1", Kind: models.KindRecurring,
				State: models.StateActive, Principal: dec("40"),
			})

			amount := dec("40")
			_, err := env.ledger.Record(ctx, "u1", models.ActivityWithdraw, "p1", &amount, "w1", nil, now)
			require.NoError(t, err)
			_, err = env.ledger.Reconcile(ctx, "w1", models.StatusConfirmed, now)
			require.NoError(t, err)

			assert.Equal(t, tt.want, env.position("p1").State)
		})
	}
}

// settleFailStore fails settlement writes a configured number of times,
// like a connection dropped mid-callback.
type settleFailStore struct {
	*store.Memory
	failures int
}

func (s *settleFailStore) SettleActivity(ctx context.Context, externalRef string, outcome models.ActivityStatus, settledAt time.Time, position *models.Position) (bool, error) {
	if s.failures > 0 {
		s.failures--
		return false, errors.New("connection reset")
	}
	return s.Memory.SettleActivity(ctx, externalRef, outcome, settledAt, position)
}

func TestSettlementWriteFailureKeepsEntryRetryable(t *testing.T) {
	mem := store.NewMemory()
	st := &settleFailStore{Memory: mem, failures: 1}
	locks := NewUserLocks()
	ledger := NewActivityLedger(st, locks, NoopNotifier)
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	require.NoError(t, mem.CreatePosition(ctx, &models.Position{
		ID: "p1", UserID: "u1", Kind: models.KindTarget,
		State: models.StateActive, TargetAmount: dec("1000"),
	}))
	amount := dec("100")
	_, err := ledger.Record(ctx, "u1", models.ActivityDeposit, "p1", &amount, "0xabc", nil, now)
	require.NoError(t, err)

	_, err = ledger.Reconcile(ctx, "0xabc", models.StatusConfirmed, now)
	require.Error(t, err)

	// The failed write settled nothing: the entry is still pending and the
	// principal untouched, so redelivery retries the whole settlement.
	entry, err := mem.GetByExternalRef(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, entry.Status)

	p, err := mem.GetPosition(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.Principal.IsZero())

	a, err := ledger.Reconcile(ctx, "0xabc", models.StatusConfirmed, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, a.Status)

	p, err = mem.GetPosition(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.Principal.Equal(dec("100")), "the credit lands with the flip")
}

func TestListRecentNewestFirst(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	amount := dec("1")
	for _, ref := range []string{"r1", "r2", "r3"} {
		_, err := env.ledger.Record(ctx, "u1", models.ActivityDeposit, "p1", &amount, ref, nil, now)
		require.NoError(t, err)
	}

	activities, err := env.ledger.ListRecent(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, "r3", activities[0].ExternalRef)
	assert.Equal(t, "r2", activities[1].ExternalRef)

	// Out-of-range limits fall back to the default.
	activities, err = env.ledger.ListRecent(ctx, "u1", -1)
	require.NoError(t, err)
	assert.Len(t, activities, 3)
}
