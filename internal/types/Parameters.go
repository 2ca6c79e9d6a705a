/*

This file contains the tunable parameter set for the engine. A versioned copy
of these parameters is persisted per config name; the active version is loaded
at boot. Defaults live in the config package.

*/

package types

// EngineParameters holds every tunable the engine reads: the epoch duration
// band, the fee curve coefficients, the shield pricing and payout tables, and
// the teleport option table. All rates are basis points.
type EngineParameters struct {
	// --- Epoch scheduling ---
	Epoch EpochConfig `json:"epoch"`

	// --- Volatility smoothing ---
	SmoothingAlphaBps int64 `json:"smoothing_alpha_bps"` // weight of the newest sample in the historical average

	// --- Kinetic fee curve ---
	// Each fee is base + slope * driver, clamped to [0, max]. Management,
	// entry and exit respond to utilization; performance and coupon respond
	// to trailing performance.
	ManagementBaseBps  int64 `json:"management_base_bps"`
	ManagementSlopeBps int64 `json:"management_slope_bps"`
	ManagementMaxBps   int64 `json:"management_max_bps"`

	PerformanceBaseBps  int64 `json:"performance_base_bps"`
	PerformanceSlopeBps int64 `json:"performance_slope_bps"`
	PerformanceMaxBps   int64 `json:"performance_max_bps"`

	CouponBaseBps  int64 `json:"coupon_base_bps"`
	CouponSlopeBps int64 `json:"coupon_slope_bps"`
	CouponMaxBps   int64 `json:"coupon_max_bps"`

	EntryBaseBps  int64 `json:"entry_base_bps"`
	EntrySlopeBps int64 `json:"entry_slope_bps"`
	EntryMaxBps   int64 `json:"entry_max_bps"`

	ExitBaseBps  int64 `json:"exit_base_bps"`
	ExitSlopeBps int64 `json:"exit_slope_bps"`
	ExitMaxBps   int64 `json:"exit_max_bps"`

	// --- Drawdown shield ---
	ShieldCapRatioBps     int64         `json:"shield_cap_ratio_bps"` // max claim = notional * cap ratio
	ShieldMinThresholdBps int64         `json:"shield_min_threshold_bps"`
	ShieldMaxThresholdBps int64         `json:"shield_max_threshold_bps"`
	ShieldPayoutBaseBps   int64         `json:"shield_payout_base_bps"`  // payout fraction at exactly the threshold
	ShieldPayoutSlopeBps  int64         `json:"shield_payout_slope_bps"` // extra payout bps per bps of excess drawdown
	ShieldContributionBps int64         `json:"shield_contribution_bps"` // slice of junior yield routed to reserves
	ShieldPremiumTable    []PremiumTier `json:"shield_premium_table"`

	// --- Yield teleport ---
	TeleportOptions               []AdvanceOption `json:"teleport_options"`
	TeleportDefaultRateBps        int64           `json:"teleport_default_rate_bps"`
	TeleportEarlyHaircutBps       int64           `json:"teleport_early_haircut_bps"`
	TeleportBufferContributionBps int64           `json:"teleport_buffer_contribution_bps"` // slice of junior yield accrued to the buffer

	// --- Ladder ---
	LadderRungs []LadderRungConfig `json:"ladder_rungs"`
}
