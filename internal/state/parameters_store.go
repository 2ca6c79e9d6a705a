// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adaptive-vault/aev/internal/types"
)

// SaveEngineParameters saves a new version of engine parameters. The full
// parameter set is stored as one JSONB document; versioning and the active
// flag live in dedicated columns so activation is a cheap flip.
func SaveEngineParameters(params types.EngineParameters, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal engine parameters: %w", err)
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE engine_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
        INSERT INTO engine_parameters (
            version, config_name, is_active, activated_at, created_at, params
        ) VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(stmt, version, configName, makeActive, currentTime, currentTime, paramsJSON).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert engine parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved engine parameters")
	return paramsID, nil
}

// LoadActiveEngineParameters loads the currently active engine parameters.
func LoadActiveEngineParameters(configName string) (*types.EngineParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT params
        FROM engine_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var paramsJSON []byte
	row := DB.QueryRow(query, configName)
	err := row.Scan(&paramsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active engine parameters found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan active engine parameters for config '%s': %w", configName, err)
	}

	p := &types.EngineParameters{}
	if err := json.Unmarshal(paramsJSON, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal engine parameters for config '%s': %w", configName, err)
	}

	log.Info().Str("config", configName).Msg("Loaded active engine parameters")
	return p, nil
}

// LoadLatestEngineParameters loads the most recently activated parameter set
// for a config name, active or not.
func LoadLatestEngineParameters(configName string) (*types.EngineParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT params
        FROM engine_parameters
        WHERE config_name = $1
        ORDER BY activated_at DESC
        LIMIT 1;`

	var paramsJSON []byte
	row := DB.QueryRow(query, configName)
	err := row.Scan(&paramsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no engine parameters found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan latest engine parameters for config '%s': %w", configName, err)
	}

	p := &types.EngineParameters{}
	if err := json.Unmarshal(paramsJSON, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal engine parameters for config '%s': %w", configName, err)
	}

	return p, nil
}
