/*

This file contains the default engine parameters.

These values are used if no active parameter set is found in the database
during initialization. All rates are basis points; each value carries the
reasoning behind its calibration.

*/

package config

import (
	"time"

	"github.com/adaptive-vault/aev/internal/types"
)

// DefaultEngineParameters provides the baseline parameter set for the engine.
var DefaultEngineParameters = types.EngineParameters{
	// --- Epoch scheduling ---
	Epoch: types.EpochConfig{
		BaseDuration: 24 * time.Hour, // One settlement per day in normal markets.
		// Rationale: daily accounting matches how the yield sources the vault
		// tracks report, and keeps the waterfall granular enough for the
		// shield and teleport pools to stay current.

		MinDuration: 6 * time.Hour, // Floor even in extreme volatility.
		// Rationale: settling faster than every 6 hours churns the fee curve
		// and the shield epoch counters without adding meaningful protection.

		MaxDuration: 48 * time.Hour, // Ceiling in becalmed markets.
		// Rationale: two days is the longest stretch shield holders should
		// wait for a drawdown to be recognized and paid.

		LowVolThresholdBps:  2000,  // Below 20% annualized, stretch toward the ceiling.
		HighVolThresholdBps: 6000,  // Above 60% annualized, pin to the floor.
		SpeedMultiplierBps:  10000, // Full-strength linear response between the thresholds.

		FlashGuard: time.Hour, // Minimum epoch age before a flash settlement.
		// Rationale: prevents a volatility spike in the first minutes of an
		// epoch from triggering a near-empty settlement.
	},

	// --- Volatility smoothing ---
	SmoothingAlphaBps: 2000, // Newest sample carries 20% weight.
	// Rationale: heavy smoothing keeps one outlier print from swinging the
	// epoch duration, while still converging within a handful of samples.

	// --- Kinetic fee curve ---
	// Each fee is base + slope * driver / 10000, clamped to [0, max].
	ManagementBaseBps:  50,  // 0.5% annualized management floor.
	ManagementSlopeBps: 50,  // Up to +0.5% at full utilization.
	ManagementMaxBps:   200, // Hard domain bound.

	PerformanceBaseBps:  1000, // 10% of gains at neutral performance.
	PerformanceSlopeBps: 2000, // Scales with trailing performance.
	PerformanceMaxBps:   3000, // Hard domain bound.

	CouponBaseBps:  50, // Senior earns 0.5% of its balance per epoch.
	CouponSlopeBps: 25, // Richer coupon when the vault is performing.
	CouponMaxBps:   200,

	EntryBaseBps:  10, // 0.1% entry at rest.
	EntrySlopeBps: 40, // Entry gets pricier as utilization climbs.
	EntryMaxBps:   100,

	ExitBaseBps:  10,
	ExitSlopeBps: 90, // Exits are penalized harder than entries under load.
	ExitMaxBps:   150,

	// --- Drawdown shield ---
	ShieldCapRatioBps: 5000, // A policy can recover at most half its notional.
	// Rationale: full-notional coverage invites moral hazard and makes the
	// admission check useless after a single large policy.

	ShieldMinThresholdBps: 50,   // No coverage for sub-0.5% noise.
	ShieldMaxThresholdBps: 1000, // Nothing beyond a 10% drawdown trigger.

	ShieldPayoutBaseBps:  2500, // Pay a quarter of max claim at exactly the threshold.
	ShieldPayoutSlopeBps: 125,  // +1.25% of max claim per bps of excess drawdown.
	// Rationale: calibrated so a 120 bps drawdown against a 100 bps
	// threshold pays out half the claimable amount.

	ShieldContributionBps: 1000, // 10% of junior yield tops up the reserves.

	// Premium per epoch by trigger threshold. Lower thresholds trip more
	// often, so they price higher. Step lookup: a policy pays the rate of
	// the highest tier at or below its threshold.
	ShieldPremiumTable: []types.PremiumTier{
		{MinThresholdBps: 50, PremiumRateBps: 200},
		{MinThresholdBps: 100, PremiumRateBps: 150},
		{MinThresholdBps: 200, PremiumRateBps: 100},
		{MinThresholdBps: 500, PremiumRateBps: 50},
	},

	// --- Yield teleport ---
	// Longer advances pay a higher yield rate but admit a smaller share of
	// the buffer as principal.
	TeleportOptions: []types.AdvanceOption{
		{Epochs: 4, YieldRateBps: 300, CollateralRatioBps: 8000},
		{Epochs: 8, YieldRateBps: 400, CollateralRatioBps: 6000},
		{Epochs: 16, YieldRateBps: 500, CollateralRatioBps: 5000},
	},

	TeleportDefaultRateBps: 500, // Assume 5% of advanced yield never materializes.
	// Rationale: the buffer must stay solvent through a stretch of weak
	// epochs; the haircut sizes availableAdvance accordingly.

	TeleportEarlyHaircutBps:       1000, // 10% penalty on pre-maturity redemption.
	TeleportBufferContributionBps: 2000, // 20% of junior yield accrues to the buffer.

	// --- Ladder ---
	// Weights must sum to exactly 10000.
	LadderRungs: []types.LadderRungConfig{
		{Duration: 6 * time.Hour, WeightBps: 3000},
		{Duration: 24 * time.Hour, WeightBps: 4500},
		{Duration: 72 * time.Hour, WeightBps: 2500},
	},
}
