// ./internal/state/snapshot_store.go
package state

import (
	"encoding/json"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/adaptive-vault/aev/internal/types"
)

// Store adapts the package-level persistence functions to the engine's sink
// interface.
type Store struct{}

func (Store) SaveSettlementSnapshot(snap types.SettlementSnapshot) (int64, error) {
	return SaveSettlementSnapshot(snap)
}

func (Store) IncrementSettlementCounter() (int, error) {
	return IncrementSettlementNumber()
}

// SaveSettlementSnapshot saves a complete settlement snapshot to the database.
func SaveSettlementSnapshot(snapshot types.SettlementSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	feesJSON, err := json.Marshal(snapshot.Fees)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal fees: %w", err)
	}

	query := `
		INSERT INTO settlement_snapshots (
			settlement_number, epoch_index, crank_id, snapshot_timestamp,
			senior_before, junior_before, senior_after, junior_after,
			pnl, senior_coupon, spillover_to_senior, realized_return_bps,
			drawdown_bps, shields_triggered, shield_payout, shield_reserves,
			teleport_outstanding, teleport_buffer, fees,
			next_epoch_index, next_epoch_ends, next_duration_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.SettlementNumber, snapshot.EpochIndex, snapshot.CrankID, snapshot.Timestamp,
		snapshot.SeniorBefore.String(), snapshot.JuniorBefore.String(), snapshot.SeniorAfter.String(), snapshot.JuniorAfter.String(),
		snapshot.PnL.String(), snapshot.SeniorCoupon.String(), snapshot.SpilloverToSenior.String(), snapshot.RealizedReturnBps,
		snapshot.DrawdownBps, snapshot.ShieldsTriggered, snapshot.ShieldPayout.String(), snapshot.ShieldReserves.String(),
		snapshot.TeleportOutstanding.String(), snapshot.TeleportBuffer.String(), feesJSON,
		snapshot.NextEpochIndex, snapshot.NextEpochEnds, int64(snapshot.NextDuration/time.Second),
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save settlement snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("settlement_number", snapshot.SettlementNumber).
		Uint64("epoch", snapshot.EpochIndex).
		Msg("Settlement snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSettlements retrieves recent settlement snapshots, newest first.
func GetRecentSettlements(limit int) ([]types.SettlementSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT
			snapshot_id, settlement_number, epoch_index, crank_id, snapshot_timestamp,
			senior_before, junior_before, senior_after, junior_after,
			pnl, senior_coupon, spillover_to_senior, realized_return_bps,
			drawdown_bps, shields_triggered, shield_payout, shield_reserves,
			teleport_outstanding, teleport_buffer, fees,
			next_epoch_index, next_epoch_ends, next_duration_seconds
		FROM settlement_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent settlements")
		return nil, fmt.Errorf("failed to query recent settlements: %w", err)
	}
	defer rows.Close()

	var snapshots []types.SettlementSnapshot
	for rows.Next() {
		var (
			snap            types.SettlementSnapshot
			seniorBefore    string
			juniorBefore    string
			seniorAfter     string
			juniorAfter     string
			pnl             string
			seniorCoupon    string
			spillover       string
			shieldPayout    string
			shieldReserves  string
			teleportOut     string
			teleportBuffer  string
			feesJSON        []byte
			durationSeconds int64
		)
		err := rows.Scan(
			&snap.SnapshotID, &snap.SettlementNumber, &snap.EpochIndex, &snap.CrankID, &snap.Timestamp,
			&seniorBefore, &juniorBefore, &seniorAfter, &juniorAfter,
			&pnl, &seniorCoupon, &spillover, &snap.RealizedReturnBps,
			&snap.DrawdownBps, &snap.ShieldsTriggered, &shieldPayout, &shieldReserves,
			&teleportOut, &teleportBuffer, &feesJSON,
			&snap.NextEpochIndex, &snap.NextEpochEnds, &durationSeconds,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement snapshot: %w", err)
		}

		for _, field := range []struct {
			dst *sdkmath.Int
			src string
		}{
			{&snap.SeniorBefore, seniorBefore},
			{&snap.JuniorBefore, juniorBefore},
			{&snap.SeniorAfter, seniorAfter},
			{&snap.JuniorAfter, juniorAfter},
			{&snap.PnL, pnl},
			{&snap.SeniorCoupon, seniorCoupon},
			{&snap.SpilloverToSenior, spillover},
			{&snap.ShieldPayout, shieldPayout},
			{&snap.ShieldReserves, shieldReserves},
			{&snap.TeleportOutstanding, teleportOut},
			{&snap.TeleportBuffer, teleportBuffer},
		} {
			v, ok := sdkmath.NewIntFromString(field.src)
			if !ok {
				return nil, fmt.Errorf("invalid amount %q in settlement snapshot %d", field.src, snap.SnapshotID)
			}
			*field.dst = v
		}

		if err := json.Unmarshal(feesJSON, &snap.Fees); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fees for snapshot %d: %w", snap.SnapshotID, err)
		}
		snap.NextDuration = time.Duration(durationSeconds) * time.Second

		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlement snapshots: %w", err)
	}

	return snapshots, nil
}
