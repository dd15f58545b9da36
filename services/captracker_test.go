package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundkit/savings-api/models"
)

func capConfig() *models.SpendSaveConfig {
	return &models.SpendSaveConfig{
		Enabled:    true,
		Mode:       models.ModePercentage,
		Value:      dec("10"),
		DailyCap:   dec("50"),
		MonthlyCap: dec("500"),
	}
}

func TestReserveAccumulates(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	cfg := capConfig()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	res, err := env.caps.Reserve(ctx, "u1", cfg, dec("12"), now)
	require.NoError(t, err)
	assert.True(t, res.RemainingDaily.Equal(dec("38")))
	assert.True(t, res.RemainingMonthly.Equal(dec("488")))

	remaining, err := env.caps.Remaining(ctx, "u1", cfg, now)
	require.NoError(t, err)
	assert.True(t, remaining.Daily.Equal(dec("38")))
	assert.True(t, remaining.Monthly.Equal(dec("488")))
}

func TestReserveRejectionLeavesUsageUntouched(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	cfg := capConfig()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	_, err := env.caps.Reserve(ctx, "u1", cfg, dec("40"), now)
	require.NoError(t, err)

	_, err = env.caps.Reserve(ctx, "u1", cfg, dec("11"), now)
	assert.ErrorIs(t, err, ErrDailyCapExceeded)

	remaining, err := env.caps.Remaining(ctx, "u1", cfg, now)
	require.NoError(t, err)
	assert.True(t, remaining.Daily.Equal(dec("10")), "rejected reservation must not consume usage")
	assert.True(t, remaining.Monthly.Equal(dec("460")))
}

func TestReserveMonthlyCap(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	cfg := capConfig()
	cfg.MonthlyCap = dec("30")
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	_, err := env.caps.Reserve(ctx, "u1", cfg, dec("40"), now)
	assert.ErrorIs(t, err, ErrMonthlyCapExceeded)
}

func TestCapRollsOverAtUTCDayBoundary(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	cfg := capConfig()
	day1 := time.Date(2026, 8, 29, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 30, 0, 1, 0, 0, time.UTC)

	_, err := env.caps.Reserve(ctx, "u1", cfg, dec("50"), day1)
	require.NoError(t, err)

	// Daily cap exhausted for day1, fresh for day2; monthly carries over.
	_, err = env.caps.Reserve(ctx, "u1", cfg, dec("1"), day1)
	assert.ErrorIs(t, err, ErrDailyCapExceeded)

	res, err := env.caps.Reserve(ctx, "u1", cfg, dec("50"), day2)
	require.NoError(t, err)
	assert.True(t, res.RemainingDaily.Equal(dec("0")))
	assert.True(t, res.RemainingMonthly.Equal(dec("400")))
}

func TestCapRollsOverAtMonthBoundary(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	cfg := capConfig()
	aug := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	sep := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	_, err := env.caps.Reserve(ctx, "u1", cfg, dec("50"), aug)
	require.NoError(t, err)

	remaining, err := env.caps.Remaining(ctx, "u1", cfg, sep)
	require.NoError(t, err)
	assert.True(t, remaining.Daily.Equal(dec("50")))
	assert.True(t, remaining.Monthly.Equal(dec("500")))
}

func TestConcurrentReservationsNeverOvershoot(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	cfg := capConfig()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	// Daily cap 50, twenty concurrent attempts of 10: exactly five can land.
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := env.locks.Lock("u1")
			defer unlock()

			if _, err := env.caps.Reserve(ctx, "u1", cfg, dec("10"), now); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, accepted)

	remaining, err := env.caps.Remaining(ctx, "u1", cfg, now)
	require.NoError(t, err)
	assert.True(t, remaining.Daily.Equal(dec("0")))
}

func TestPruneElapsedKeepsCurrentPeriods(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	cfg := capConfig()
	old := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	_, err := env.caps.Reserve(ctx, "u1", cfg, dec("10"), old)
	require.NoError(t, err)
	_, err = env.caps.Reserve(ctx, "u1", cfg, dec("10"), now)
	require.NoError(t, err)

	pruned, err := env.caps.PruneElapsed(ctx, now, 62*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned) // May day key and month key

	remaining, err := env.caps.Remaining(ctx, "u1", cfg, now)
	require.NoError(t, err)
	assert.True(t, remaining.Daily.Equal(dec("40")), "current usage must survive pruning")
}
