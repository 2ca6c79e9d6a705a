/*

This file contains the types for the two risk tranches sharing the vault and
the fee schedule applied at settlement. The ledger is the sole writer of both.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Tranche selects one of the two risk classes.
type Tranche string

const (
	TrancheSenior Tranche = "SENIOR" // protected, fixed coupon
	TrancheJunior Tranche = "JUNIOR" // residual, variable return
)

// TrancheState holds the two balances in the smallest currency unit.
// Invariant: both are always non-negative and their sum is the vault total.
type TrancheState struct {
	SeniorAssets sdkmath.Int `json:"senior_assets"`
	JuniorAssets sdkmath.Int `json:"junior_assets"`
}

// Total returns senior + junior.
func (t TrancheState) Total() sdkmath.Int {
	return t.SeniorAssets.Add(t.JuniorAssets)
}

// FeeRates is the five-field fee schedule, each bounded to [0, 10000] bps.
type FeeRates struct {
	ManagementBps   int64     `json:"management_bps"`
	PerformanceBps  int64     `json:"performance_bps"`
	SeniorCouponBps int64     `json:"senior_coupon_bps"`
	EntryBps        int64     `json:"entry_bps"`
	ExitBps         int64     `json:"exit_bps"`
	LastUpdateTime  time.Time `json:"last_update_time"`
}

// DrawdownEvent is emitted by the ledger when a settlement realizes a loss.
// ShieldsTriggered and TotalPayout are filled in by the shield pool once the
// event has been processed; the whole sequence is one logical transaction.
type DrawdownEvent struct {
	EpochIndex       uint64      `json:"epoch_index"`
	DrawdownBps      int64       `json:"drawdown_bps"`
	JuniorWipedOut   bool        `json:"junior_wiped_out"` // loss spilled past the junior balance
	ShieldsTriggered int         `json:"shields_triggered"`
	TotalPayout      sdkmath.Int `json:"total_payout"`
}

// SettlementResult is what the ledger reports back from one waterfall
// application.
type SettlementResult struct {
	EpochIndex        uint64         `json:"epoch_index"`
	SeniorCoupon      sdkmath.Int    `json:"senior_coupon"`
	JuniorDelta       sdkmath.Int    `json:"junior_delta"`
	SpilloverToSenior sdkmath.Int    `json:"spillover_to_senior"`
	RealizedReturnBps int64          `json:"realized_return_bps"`
	JuniorYield       sdkmath.Int    `json:"junior_yield"` // positive junior gain, feeds shield + teleport accrual
	Drawdown          *DrawdownEvent `json:"drawdown,omitempty"`
}
