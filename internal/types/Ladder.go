/*

This file contains the types for the laddered allocation layer: several
scheduler+ledger pairs of different epoch durations, apportioning deposits by
weight. Weights always sum to exactly 10000 bps.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// LadderRungConfig declares one rung: its epoch duration and deposit weight.
type LadderRungConfig struct {
	Duration  time.Duration `json:"duration"`
	WeightBps int64         `json:"weight_bps"`
}

// LadderRungSnapshot is the read-only view of one rung.
type LadderRungSnapshot struct {
	Index        int           `json:"index"`
	Duration     time.Duration `json:"duration"`
	WeightBps    int64         `json:"weight_bps"`
	SeniorAssets sdkmath.Int   `json:"senior_assets"`
	JuniorAssets sdkmath.Int   `json:"junior_assets"`
	EpochIndex   uint64        `json:"epoch_index"`
	EpochState   EpochState    `json:"epoch_state"`
}
