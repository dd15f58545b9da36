package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/utils"
)

// Postgres implements Store on top of database/sql with the lib/pq driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// ============================================================================
// CONFIG
// ============================================================================

func (s *Postgres) GetConfig(ctx context.Context, userID string) (*models.SpendSaveConfig, error) {
	var cfg models.SpendSaveConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, enabled, mode, value, min_threshold, daily_cap, monthly_cap, updated_at
		FROM spend_save_configs
		WHERE user_id = $1
	`, userID).Scan(&cfg.UserID, &cfg.Enabled, &cfg.Mode, &cfg.Value,
		&cfg.MinThreshold, &cfg.DailyCap, &cfg.MonthlyCap, &cfg.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Postgres) PutConfig(ctx context.Context, cfg *models.SpendSaveConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spend_save_configs (user_id, enabled, mode, value, min_threshold, daily_cap, monthly_cap, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			mode = EXCLUDED.mode,
			value = EXCLUDED.value,
			min_threshold = EXCLUDED.min_threshold,
			daily_cap = EXCLUDED.daily_cap,
			monthly_cap = EXCLUDED.monthly_cap,
			updated_at = EXCLUDED.updated_at
	`, cfg.UserID, cfg.Enabled, cfg.Mode, cfg.Value, cfg.MinThreshold,
		cfg.DailyCap, cfg.MonthlyCap, cfg.UpdatedAt)
	return err
}

// ============================================================================
// CAP USAGE
// ============================================================================

func (s *Postgres) GetUsage(ctx context.Context, userID, periodKey string) (decimal.Decimal, error) {
	var saved decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT saved_so_far FROM cap_usage
		WHERE user_id = $1 AND period_key = $2
	`, userID, periodKey).Scan(&saved)

	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return saved, nil
}

func (s *Postgres) AddUsage(ctx context.Context, userID, dayKey, monthKey string, amount decimal.Decimal) error {
	return utils.WithTransaction(s.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO cap_usage (user_id, period_key, saved_so_far)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, period_key)
			DO UPDATE SET saved_so_far = cap_usage.saved_so_far + EXCLUDED.saved_so_far
		`
		if _, err := tx.ExecContext(ctx, query, userID, dayKey, amount); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, userID, monthKey, amount); err != nil {
			return err
		}
		return nil
	})
}

func (s *Postgres) PruneUsageBefore(ctx context.Context, cutoffDayKey string) (int64, error) {
	// Month keys ("2006-01") sort before any day key of a later month, so a
	// single lexicographic cutoff covers both period kinds.
	result, err := s.db.ExecContext(ctx, `DELETE FROM cap_usage WHERE period_key < $1`, cutoffDayKey)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ============================================================================
// POSITIONS
// ============================================================================

func (s *Postgres) CreatePosition(ctx context.Context, p *models.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (id, user_id, kind, state, principal, target_amount, completed_at, unlock_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.UserID, p.Kind, p.State, p.Principal,
		nullDecimal(p.TargetAmount), p.CompletedAt, p.UnlockAt, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *Postgres) GetPosition(ctx context.Context, id string) (*models.Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, kind, state, principal, target_amount, completed_at, unlock_at, created_at, updated_at
		FROM positions
		WHERE id = $1
	`, id)
	return scanPosition(row)
}

func (s *Postgres) ListPositions(ctx context.Context, userID string) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, state, principal, target_amount, completed_at, unlock_at, created_at, updated_at
		FROM positions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []models.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

func (s *Postgres) UpdatePosition(ctx context.Context, p *models.Position) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE positions
		SET state = $1, principal = $2, completed_at = $3, updated_at = $4
		WHERE id = $5
	`, p.State, p.Principal, p.CompletedAt, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var p models.Position
	var target decimal.NullDecimal
	var completedAt, unlockAt sql.NullTime

	err := row.Scan(&p.ID, &p.UserID, &p.Kind, &p.State, &p.Principal,
		&target, &completedAt, &unlockAt, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if target.Valid {
		p.TargetAmount = target.Decimal
	}
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	if unlockAt.Valid {
		t := unlockAt.Time
		p.UnlockAt = &t
	}
	return &p, nil
}

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	if d.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// ============================================================================
// ACTIVITIES
// ============================================================================

func (s *Postgres) AppendActivity(ctx context.Context, a *models.Activity) error {
	var amount decimal.NullDecimal
	if a.Amount != nil {
		amount = decimal.NullDecimal{Decimal: *a.Amount, Valid: true}
	}
	var positionID sql.NullString
	if a.PositionID != "" {
		positionID = sql.NullString{String: a.PositionID, Valid: true}
	}
	metadata := a.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, user_id, kind, position_id, amount, external_ref, status, metadata, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.UserID, a.Kind, positionID, amount, a.ExternalRef, a.Status, []byte(metadata), a.RequestedAt)

	if isUniqueViolation(err) {
		return ErrDuplicateRef
	}
	return err
}

func (s *Postgres) GetByExternalRef(ctx context.Context, externalRef string) (*models.Activity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, kind, position_id, amount, external_ref, status, metadata, requested_at, settled_at
		FROM activities
		WHERE external_ref = $1
	`, externalRef)
	return scanActivity(row)
}

func (s *Postgres) SettleActivity(ctx context.Context, externalRef string, outcome models.ActivityStatus, settledAt time.Time, position *models.Position) (bool, error) {
	applied := false
	err := utils.WithTransaction(s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE activities
			SET status = $1, settled_at = $2
			WHERE external_ref = $3 AND status = 'pending'
		`, outcome, settledAt, externalRef)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows != 1 {
			return nil
		}
		applied = true

		if position == nil {
			return nil
		}
		result, err = tx.ExecContext(ctx, `
			UPDATE positions
			SET state = $1, principal = $2, completed_at = $3, updated_at = $4
			WHERE id = $5
		`, position.State, position.Principal, position.CompletedAt, position.UpdatedAt, position.ID)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *Postgres) ListRecent(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, position_id, amount, external_ref, status, metadata, requested_at, settled_at
		FROM activities
		WHERE user_id = $1
		ORDER BY requested_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

func (s *Postgres) ListByKind(ctx context.Context, userID string, kind models.ActivityKind) ([]models.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, position_id, amount, external_ref, status, metadata, requested_at, settled_at
		FROM activities
		WHERE user_id = $1 AND kind = $2
		ORDER BY requested_at DESC, id DESC
	`, userID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

func collectActivities(rows *sql.Rows) ([]models.Activity, error) {
	activities := []models.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

func scanActivity(row rowScanner) (*models.Activity, error) {
	var a models.Activity
	var positionID sql.NullString
	var amount decimal.NullDecimal
	var metadata []byte
	var settledAt sql.NullTime

	err := row.Scan(&a.ID, &a.UserID, &a.Kind, &positionID, &amount,
		&a.ExternalRef, &a.Status, &metadata, &a.RequestedAt, &settledAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if positionID.Valid {
		a.PositionID = positionID.String
	}
	if amount.Valid {
		d := amount.Decimal
		a.Amount = &d
	}
	if len(metadata) > 0 {
		a.Metadata = metadata
	}
	if settledAt.Valid {
		t := settledAt.Time
		a.SettledAt = &t
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	type coder interface{ SQLState() string }
	if pqErr, ok := err.(coder); ok {
		return pqErr.SQLState() == "23505"
	}
	return false
}
