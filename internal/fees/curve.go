package fees

import (
	"fmt"
	"time"

	"github.com/adaptive-vault/aev/internal/types"
	"github.com/adaptive-vault/aev/internal/utils"
)

// Curve computes the five fee rates as a bounded linear response to pool
// utilization and trailing performance. Deterministic: the same inputs always
// produce the same schedule. Management, entry and exit track utilization;
// performance and the senior coupon track trailing performance.
type Curve struct {
	params types.EngineParameters
	rates  types.FeeRates
}

// NewCurve seeds the schedule at the configured base rates.
func NewCurve(params types.EngineParameters) *Curve {
	c := &Curve{params: params}
	c.rates = types.FeeRates{
		ManagementBps:   clampFee(params.ManagementBaseBps, params.ManagementMaxBps),
		PerformanceBps:  clampFee(params.PerformanceBaseBps, params.PerformanceMaxBps),
		SeniorCouponBps: clampFee(params.CouponBaseBps, params.CouponMaxBps),
		EntryBps:        clampFee(params.EntryBaseBps, params.EntryMaxBps),
		ExitBps:         clampFee(params.ExitBaseBps, params.ExitMaxBps),
	}
	return c
}

// Update recomputes the schedule. utilizationBps must lie in [0, 10000];
// performanceBps is the trailing realized return and may be negative, which
// pushes the performance-linked fees toward their floor.
func (c *Curve) Update(utilizationBps, performanceBps int64, now time.Time) error {
	if utilizationBps < 0 || utilizationBps > utils.BpsDenom {
		return fmt.Errorf("%w: utilization %d bps outside [0, 10000]",
			types.ErrInvalidParameter, utilizationBps)
	}

	p := c.params
	c.rates = types.FeeRates{
		ManagementBps:   clampFee(p.ManagementBaseBps+p.ManagementSlopeBps*utilizationBps/utils.BpsDenom, p.ManagementMaxBps),
		PerformanceBps:  clampFee(p.PerformanceBaseBps+p.PerformanceSlopeBps*performanceBps/utils.BpsDenom, p.PerformanceMaxBps),
		SeniorCouponBps: clampFee(p.CouponBaseBps+p.CouponSlopeBps*performanceBps/utils.BpsDenom, p.CouponMaxBps),
		EntryBps:        clampFee(p.EntryBaseBps+p.EntrySlopeBps*utilizationBps/utils.BpsDenom, p.EntryMaxBps),
		ExitBps:         clampFee(p.ExitBaseBps+p.ExitSlopeBps*utilizationBps/utils.BpsDenom, p.ExitMaxBps),
		LastUpdateTime:  now,
	}
	return nil
}

// Rates returns the current schedule.
func (c *Curve) Rates() types.FeeRates {
	return c.rates
}

// clampFee bounds a fee to [0, max] and never past the bps denominator.
func clampFee(v, max int64) int64 {
	if max > utils.BpsDenom {
		max = utils.BpsDenom
	}
	return utils.ClampBps(v, 0, max)
}
