/*

This file contains the settlement snapshot type: the full record of one
settled epoch, persisted to the database and served through the web API.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// SettlementSnapshot captures everything one crank changed: the waterfall
// outcome, the shield payouts it triggered, and the resulting pool states.
// One snapshot is written per settled epoch, all within the settlement
// transaction.
type SettlementSnapshot struct {
	SnapshotID       int64     `json:"snapshot_id,omitempty"` // assigned by the database
	SettlementNumber int       `json:"settlement_number"`     // persistent counter, survives restarts
	EpochIndex       uint64    `json:"epoch_index"`
	CrankID          string    `json:"crank_id"` // uuid tracing the crank across logs
	Timestamp        time.Time `json:"timestamp"`

	// Waterfall
	SeniorBefore      sdkmath.Int `json:"senior_before"`
	JuniorBefore      sdkmath.Int `json:"junior_before"`
	SeniorAfter       sdkmath.Int `json:"senior_after"`
	JuniorAfter       sdkmath.Int `json:"junior_after"`
	PnL               sdkmath.Int `json:"pnl"`
	SeniorCoupon      sdkmath.Int `json:"senior_coupon"`
	SpilloverToSenior sdkmath.Int `json:"spillover_to_senior"`
	RealizedReturnBps int64       `json:"realized_return_bps"`

	// Drawdown + shield outcome
	DrawdownBps      int64       `json:"drawdown_bps"`
	ShieldsTriggered int         `json:"shields_triggered"`
	ShieldPayout     sdkmath.Int `json:"shield_payout"`
	ShieldReserves   sdkmath.Int `json:"shield_reserves"`

	// Teleport state after the epoch roll
	TeleportOutstanding sdkmath.Int `json:"teleport_outstanding"`
	TeleportBuffer      sdkmath.Int `json:"teleport_buffer"`

	// Fee schedule in force after the settlement
	Fees FeeRates `json:"fees"`

	// Epoch opened by this crank
	NextEpochIndex uint64        `json:"next_epoch_index"`
	NextEpochEnds  time.Time     `json:"next_epoch_ends"`
	NextDuration   time.Duration `json:"next_duration"`
}
