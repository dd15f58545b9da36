package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundkit/savings-api/models"
)

// Memory implements Store with plain maps. It backs the test suite; nothing
// survives a restart.
type Memory struct {
	mu         sync.RWMutex
	configs    map[string]models.SpendSaveConfig        // userID
	usage      map[string]map[string]decimal.Decimal    // userID -> periodKey
	positions  map[string]models.Position               // positionID
	activities map[string]models.Activity               // externalRef
	order      []string                                 // externalRefs, append order
}

func NewMemory() *Memory {
	return &Memory{
		configs:    make(map[string]models.SpendSaveConfig),
		usage:      make(map[string]map[string]decimal.Decimal),
		positions:  make(map[string]models.Position),
		activities: make(map[string]models.Activity),
	}
}

// ============================================================================
// CONFIG
// ============================================================================

func (s *Memory) GetConfig(ctx context.Context, userID string) (*models.SpendSaveConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &cfg, nil
}

func (s *Memory) PutConfig(ctx context.Context, cfg *models.SpendSaveConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs[cfg.UserID] = *cfg
	return nil
}

// ============================================================================
// CAP USAGE
// ============================================================================

func (s *Memory) GetUsage(ctx context.Context, userID, periodKey string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	periods, ok := s.usage[userID]
	if !ok {
		return decimal.Zero, nil
	}
	saved, ok := periods[periodKey]
	if !ok {
		return decimal.Zero, nil
	}
	return saved, nil
}

func (s *Memory) AddUsage(ctx context.Context, userID, dayKey, monthKey string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	periods, ok := s.usage[userID]
	if !ok {
		periods = make(map[string]decimal.Decimal)
		s.usage[userID] = periods
	}
	periods[dayKey] = periods[dayKey].Add(amount)
	periods[monthKey] = periods[monthKey].Add(amount)
	return nil
}

func (s *Memory) PruneUsageBefore(ctx context.Context, cutoffDayKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	for _, periods := range s.usage {
		for key := range periods {
			if key < cutoffDayKey {
				delete(periods, key)
				pruned++
			}
		}
	}
	return pruned, nil
}

// ============================================================================
// POSITIONS
// ============================================================================

func (s *Memory) CreatePosition(ctx context.Context, p *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[p.ID] = *p
	return nil
}

func (s *Memory) GetPosition(ctx context.Context, id string) (*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *Memory) ListPositions(ctx context.Context, userID string) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := []models.Position{}
	for _, p := range s.positions {
		if p.UserID == userID {
			positions = append(positions, p)
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].CreatedAt.After(positions[j].CreatedAt)
	})
	return positions, nil
}

func (s *Memory) UpdatePosition(ctx context.Context, p *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[p.ID]; !ok {
		return ErrNotFound
	}
	s.positions[p.ID] = *p
	return nil
}

// ============================================================================
// ACTIVITIES
// ============================================================================

func (s *Memory) AppendActivity(ctx context.Context, a *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activities[a.ExternalRef]; ok {
		return ErrDuplicateRef
	}
	s.activities[a.ExternalRef] = *a
	s.order = append(s.order, a.ExternalRef)
	return nil
}

func (s *Memory) GetByExternalRef(ctx context.Context, externalRef string) (*models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.activities[externalRef]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *Memory) SettleActivity(ctx context.Context, externalRef string, outcome models.ActivityStatus, settledAt time.Time, position *models.Position) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[externalRef]
	if !ok || a.Status != models.StatusPending {
		return false, nil
	}
	a.Status = outcome
	t := settledAt
	a.SettledAt = &t
	s.activities[externalRef] = a
	if position != nil {
		s.positions[position.ID] = *position
	}
	return true, nil
}

func (s *Memory) ListRecent(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activities := []models.Activity{}
	// Newest first: walk the append order backwards.
	for i := len(s.order) - 1; i >= 0 && len(activities) < limit; i-- {
		a := s.activities[s.order[i]]
		if a.UserID == userID {
			activities = append(activities, a)
		}
	}
	return activities, nil
}

func (s *Memory) ListByKind(ctx context.Context, userID string, kind models.ActivityKind) ([]models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	activities := []models.Activity{}
	for i := len(s.order) - 1; i >= 0; i-- {
		a := s.activities[s.order[i]]
		if a.UserID == userID && a.Kind == kind {
			activities = append(activities, a)
		}
	}
	return activities, nil
}
