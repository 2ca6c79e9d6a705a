/*

This file contains the types for the yield teleport pool: cash advances
against forecast junior yield, issued as transferable notes. Notes are indexed
by token id inside the pool, which is their sole writer; transfer is a pure
owner-field rewrite.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// YieldNote is one forward-yield claim. Ownership is a capability: whoever
// holds the token id claims at maturity, not the original advance recipient.
type YieldNote struct {
	TokenID            uint64      `json:"token_id"`
	Owner              string      `json:"owner"`
	Notional           sdkmath.Int `json:"notional"` // principal advanced
	FutureEpochs       int         `json:"future_epochs"`
	IssuedAtEpoch      uint64      `json:"issued_at_epoch"`
	MaturityEpoch      uint64      `json:"maturity_epoch"` // issued at + future epochs
	YieldRateBps       int64       `json:"yield_rate_bps"` // per epoch
	TotalExpectedYield sdkmath.Int `json:"total_expected_yield"`
	RemainingClaims    int         `json:"remaining_claims"`
	ClaimedYield       sdkmath.Int `json:"claimed_yield"`
	IsActive           bool        `json:"is_active"`
	IssuedAt           time.Time   `json:"issued_at"`
}

// AdvanceOption is one row of the duration-keyed option table. Longer
// commitments carry higher per-epoch rates but a lower collateral ratio.
// Lookup is a step function on the highest row whose Epochs <= the request.
type AdvanceOption struct {
	Epochs             int   `json:"epochs"`
	YieldRateBps       int64 `json:"yield_rate_bps"`
	CollateralRatioBps int64 `json:"collateral_ratio_bps"`
}

// TeleportPoolState is the read-only snapshot of the pool.
// AvailableAdvance = buffer haircut by default rate, minus outstanding,
// floored at zero.
type TeleportPoolState struct {
	TotalAdvanced     sdkmath.Int `json:"total_advanced"`
	TotalOutstanding  sdkmath.Int `json:"total_outstanding"`
	AvailableAdvance  sdkmath.Int `json:"available_advance"`
	JuniorYieldBuffer sdkmath.Int `json:"junior_yield_buffer"`
	DefaultRateBps    int64       `json:"default_rate_bps"`
	ActiveNotes       int         `json:"active_notes"`
	CurrentEpoch      uint64      `json:"current_epoch"`
}
