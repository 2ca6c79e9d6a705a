/*

This file contains the types for the drawdown shield pool: insurance policies
against excess drawdown within an epoch. Policies are indexed by id inside the
pool, which is their sole writer.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// ShieldPolicy is one insurance position. MaxClaim caps lifetime payouts at
// notional * cap ratio; TotalClaimed never exceeds it.
type ShieldPolicy struct {
	ID              uint64      `json:"id"`
	Owner           string      `json:"owner"`
	ThresholdBps    int64       `json:"threshold_bps"` // drawdown at or above this triggers the policy
	Notional        sdkmath.Int `json:"notional"`
	PremiumPaid     sdkmath.Int `json:"premium_paid"`
	Active          bool        `json:"active"`
	DurationEpochs  int         `json:"duration_epochs"`
	EpochsRemaining int         `json:"epochs_remaining"`
	TotalClaimed    sdkmath.Int `json:"total_claimed"`
	MaxClaim        sdkmath.Int `json:"max_claim"`
	PurchasedAt     time.Time   `json:"purchased_at"`
}

// PremiumTier is one row of the monotone pricing table: policies at or above
// MinThresholdBps (up to the next tier) pay PremiumRateBps per epoch. Lower
// thresholds trigger more easily and cost more. Lookup is a step function;
// there is no interpolation between tiers.
type PremiumTier struct {
	MinThresholdBps int64 `json:"min_threshold_bps"`
	PremiumRateBps  int64 `json:"premium_rate_bps"`
}

// ShieldPoolState is the read-only snapshot of the pool.
type ShieldPoolState struct {
	TotalReserves        sdkmath.Int `json:"total_reserves"`
	TotalPolicies        int         `json:"total_policies"`
	ActivePolicies       int         `json:"active_policies"`
	ActiveClaims         int         `json:"active_claims"` // claims paid in the most recent settlement
	OutstandingMaxClaims sdkmath.Int `json:"outstanding_max_claims"`
	UtilizationBps       int64       `json:"utilization_bps"` // outstanding max claims / reserves
}
