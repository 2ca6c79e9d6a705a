/*

This file contains the types for epochs: the bounded accounting periods whose
length adapts to observed volatility. Epoch records are owned exclusively by
the scheduler as an append-only log; a record is immutable once settled.

*/

package types

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// EpochState is the lifecycle tag of an epoch.
type EpochState string

const (
	EpochActive   EpochState = "ACTIVE"
	EpochSettling EpochState = "SETTLING"
	EpochSettled  EpochState = "SETTLED"
)

// Epoch is one accounting period. Indexes are monotonically increasing and
// start at 1. EndTime may be revised after creation in exactly one case: a
// flash trigger pulling it forward to the trigger time.
type Epoch struct {
	Index               uint64      `json:"index"`
	StartTime           time.Time   `json:"start_time"`
	EndTime             time.Time   `json:"end_time"`
	State               EpochState  `json:"state"`
	SeniorAssetsAtStart sdkmath.Int `json:"senior_assets_at_start"`
	JuniorAssetsAtStart sdkmath.Int `json:"junior_assets_at_start"`
	RealizedReturnBps   int64       `json:"realized_return_bps"` // set only at settlement
	FlashTriggered      bool        `json:"flash_triggered"`
}

// EpochConfig holds the duration band and volatility thresholds that drive
// the adaptive duration calculation.
type EpochConfig struct {
	BaseDuration time.Duration `json:"base_duration"` // duration used before any volatility sample arrives
	MinDuration  time.Duration `json:"min_duration"`
	MaxDuration  time.Duration `json:"max_duration"`

	LowVolThresholdBps  int64 `json:"low_vol_threshold_bps"`  // at or below: epochs run at MaxDuration
	HighVolThresholdBps int64 `json:"high_vol_threshold_bps"` // at or above: epochs run at MinDuration

	SpeedMultiplierBps int64 `json:"speed_multiplier_bps"` // 10000 = 1.0; >10000 steepens the response

	FlashGuard time.Duration `json:"flash_guard"` // minimum epoch age before a flash trigger may fire
}

// Validate enforces the structural invariants of the config.
func (c EpochConfig) Validate() error {
	if c.MinDuration <= 0 {
		return fmt.Errorf("min duration must be positive, got %s", c.MinDuration)
	}
	if c.MinDuration > c.BaseDuration || c.BaseDuration > c.MaxDuration {
		return fmt.Errorf("duration band violated: min %s <= base %s <= max %s required",
			c.MinDuration, c.BaseDuration, c.MaxDuration)
	}
	if c.LowVolThresholdBps >= c.HighVolThresholdBps {
		return fmt.Errorf("low vol threshold %d must be below high vol threshold %d",
			c.LowVolThresholdBps, c.HighVolThresholdBps)
	}
	if c.SpeedMultiplierBps <= 0 {
		return fmt.Errorf("speed multiplier must be positive, got %d", c.SpeedMultiplierBps)
	}
	if c.FlashGuard < 0 {
		return fmt.Errorf("flash guard cannot be negative, got %s", c.FlashGuard)
	}
	return nil
}
