package config

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

func InitDB() (*sql.DB, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			totp_secret VARCHAR(512),
			totp_enabled BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID REFERENCES users(id) ON DELETE CASCADE,
			refresh_token VARCHAR(500) UNIQUE NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS spend_save_configs (
			user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			enabled BOOLEAN NOT NULL DEFAULT FALSE,
			mode VARCHAR(20) NOT NULL,
			value NUMERIC(20,6) NOT NULL,
			min_threshold NUMERIC(20,6) NOT NULL DEFAULT 0,
			daily_cap NUMERIC(20,6) NOT NULL,
			monthly_cap NUMERIC(20,6) NOT NULL,
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS cap_usage (
			user_id UUID REFERENCES users(id) ON DELETE CASCADE,
			period_key VARCHAR(10) NOT NULL,
			saved_so_far NUMERIC(20,6) NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, period_key)
		)`,

		`CREATE TABLE IF NOT EXISTS positions (
			id UUID PRIMARY KEY,
			user_id UUID REFERENCES users(id) ON DELETE CASCADE,
			kind VARCHAR(20) NOT NULL,
			state VARCHAR(20) NOT NULL,
			principal NUMERIC(20,6) NOT NULL DEFAULT 0,
			target_amount NUMERIC(20,6),
			completed_at TIMESTAMP,
			unlock_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT NOW(),
			updated_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS activities (
			id UUID PRIMARY KEY,
			user_id UUID REFERENCES users(id) ON DELETE CASCADE,
			kind VARCHAR(30) NOT NULL,
			position_id UUID,
			amount NUMERIC(20,6),
			external_ref VARCHAR(255) UNIQUE NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			metadata JSONB DEFAULT '{}',
			requested_at TIMESTAMP DEFAULT NOW(),
			settled_at TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_positions_user_id ON positions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_user_id ON activities(user_id, requested_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_external_ref ON activities(external_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_kind ON activities(user_id, kind)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
