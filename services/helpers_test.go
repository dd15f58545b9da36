package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/store"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// testEnv wires the full service graph against the in-memory store.
type testEnv struct {
	store       *store.Memory
	locks       *UserLocks
	caps        *CapTracker
	ledger      *ActivityLedger
	positions   *PositionService
	withdrawals *WithdrawalService
	spendSave   *SpendSaveService
}

func newTestEnv() *testEnv {
	st := store.NewMemory()
	locks := NewUserLocks()
	caps := NewCapTracker(st)
	ledger := NewActivityLedger(st, locks, NoopNotifier)
	positions := NewPositionService(st, ledger, LogRequester{}, locks)
	return &testEnv{
		store:       st,
		locks:       locks,
		caps:        caps,
		ledger:      ledger,
		positions:   positions,
		withdrawals: NewWithdrawalService(positions, ledger, LogRequester{}, locks),
		spendSave:   NewSpendSaveService(st, caps, ledger, LogRequester{}, locks),
	}
}

func (e *testEnv) putConfig(userID string, enabled bool, mode models.SaveMode, value, threshold, daily, monthly string) {
	err := e.store.PutConfig(context.Background(), &models.SpendSaveConfig{
		UserID:       userID,
		Enabled:      enabled,
		Mode:         mode,
		Value:        dec(value),
		MinThreshold: dec(threshold),
		DailyCap:     dec(daily),
		MonthlyCap:   dec(monthly),
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		panic(err)
	}
}

func (e *testEnv) putPosition(p *models.Position) {
	if err := e.store.CreatePosition(context.Background(), p); err != nil {
		panic(err)
	}
}

func (e *testEnv) position(id string) *models.Position {
	p, err := e.store.GetPosition(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return p
}
