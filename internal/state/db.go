// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// InitDB initializes the database connection pool from a postgres URL.
func InitDB(databaseURL string) error {
	if databaseURL == "" {
		return fmt.Errorf("database URL cannot be empty")
	}

	var err error
	DB, err = sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS engine_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			params JSONB NOT NULL,
			CONSTRAINT uq_engine_parameters_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_engine_parameters_config_active ON engine_parameters(config_name, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS settlement_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			settlement_number INTEGER NOT NULL,
			epoch_index BIGINT NOT NULL,
			crank_id VARCHAR(36) NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,

			-- Waterfall
			senior_before NUMERIC(40, 0) NOT NULL,
			junior_before NUMERIC(40, 0) NOT NULL,
			senior_after NUMERIC(40, 0) NOT NULL,
			junior_after NUMERIC(40, 0) NOT NULL,
			pnl NUMERIC(40, 0) NOT NULL,
			senior_coupon NUMERIC(40, 0) NOT NULL,
			spillover_to_senior NUMERIC(40, 0) NOT NULL,
			realized_return_bps BIGINT NOT NULL,

			-- Drawdown and shield outcome
			drawdown_bps BIGINT NOT NULL DEFAULT 0,
			shields_triggered INTEGER NOT NULL DEFAULT 0,
			shield_payout NUMERIC(40, 0) NOT NULL,
			shield_reserves NUMERIC(40, 0) NOT NULL,

			-- Teleport state after the epoch roll
			teleport_outstanding NUMERIC(40, 0) NOT NULL,
			teleport_buffer NUMERIC(40, 0) NOT NULL,

			-- Fee schedule in force after the settlement
			fees JSONB NOT NULL,

			-- Epoch opened by this crank
			next_epoch_index BIGINT NOT NULL,
			next_epoch_ends TIMESTAMPTZ NOT NULL,
			next_duration_seconds BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_settlement_snapshots_timestamp ON settlement_snapshots(snapshot_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_settlement_snapshots_epoch ON settlement_snapshots(epoch_index DESC);

		-- Settlement counter table for persistent numbering across restarts
		CREATE TABLE IF NOT EXISTS settlement_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_settlement INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO settlement_counter (id, current_settlement)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
