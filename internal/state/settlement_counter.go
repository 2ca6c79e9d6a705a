/*

This file manages the persistent global settlement counter. The counter is
stored in the database so settlement numbering stays continuous across
restarts.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ensureSettlementCounterTable creates the settlement_counter table if it doesn't exist
func ensureSettlementCounterTable() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	createTableSQL := `
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

	_, err := DB.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create settlement_counter table: %w", err)
	}

	log.Debug().Msg("Ensured settlement_counter table exists")
	return nil
}

// GetCurrentSettlementNumber retrieves the current settlement number from the database
func GetCurrentSettlementNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	if err := ensureSettlementCounterTable(); err != nil {
		return 0, err
	}

	query := `SELECT current_settlement FROM settlement_counter WHERE id = 1;`

	var current int
	row := DB.QueryRow(query)
	err := row.Scan(&current)

	if err != nil {
		if err == sql.ErrNoRows {
			// This should not happen due to the INSERT in ensureSettlementCounterTable
			log.Warn().Msg("No settlement counter row found, initializing to 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current settlement number: %w", err)
	}

	log.Debug().Int("currentSettlement", current).Msg("Retrieved current settlement number")
	return current, nil
}

// IncrementSettlementNumber increments the settlement counter and returns the new value
func IncrementSettlementNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	if err := ensureSettlementCounterTable(); err != nil {
		return 0, err
	}

	updateQuery := `
		UPDATE settlement_counter
		SET current_settlement = current_settlement + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_settlement;`

	var next int
	row := DB.QueryRow(updateQuery)
	err := row.Scan(&next)

	if err != nil {
		return 0, fmt.Errorf("failed to increment settlement number: %w", err)
	}

	log.Info().Int("newSettlement", next).Msg("Incremented settlement counter")
	return next, nil
}

// ResetSettlementNumber resets the settlement counter to a specific value (for testing/maintenance)
func ResetSettlementNumber(settlementNumber int) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := ensureSettlementCounterTable(); err != nil {
		return err
	}

	if settlementNumber < 0 {
		return fmt.Errorf("settlement number cannot be negative: %d", settlementNumber)
	}

	updateQuery := `
		UPDATE settlement_counter
		SET current_settlement = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1;`

	result, err := DB.Exec(updateQuery, settlementNumber)
	if err != nil {
		return fmt.Errorf("failed to reset settlement number to %d: %w", settlementNumber, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("no rows updated when resetting settlement number")
	}

	log.Warn().Int("settlementNumber", settlementNumber).Msg("Reset settlement counter")
	return nil
}
