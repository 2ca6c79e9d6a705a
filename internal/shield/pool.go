package shield

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/adaptive-vault/aev/internal/logger"
	"github.com/adaptive-vault/aev/internal/types"
	"github.com/adaptive-vault/aev/internal/utils"
)

// Pool sells insurance against excess drawdown within an epoch. Policies are
// funded by premiums plus a settlement-time contribution from junior yield.
// Admission control keeps outstanding maximum claims within reserves so every
// accepted policy is always payable in full.
type Pool struct {
	logger zerolog.Logger
	params types.EngineParameters

	reserves sdkmath.Int
	policies map[uint64]*types.ShieldPolicy
	order    []uint64 // id issue order, for deterministic claim processing
	nextID   uint64

	// claim bookkeeping for the epoch being settled
	lastDrawdown *types.DrawdownEvent
	claimedAt    map[uint64]uint64 // policy id -> epoch index of last claim
	lastClaims   int
}

// NewPool validates the pricing table and cap ratio and returns an empty pool.
func NewPool(params types.EngineParameters) (*Pool, error) {
	if params.ShieldCapRatioBps <= 0 || params.ShieldCapRatioBps > utils.BpsDenom {
		return nil, fmt.Errorf("%w: shield cap ratio %d bps outside (0, 10000]",
			types.ErrInvalidParameter, params.ShieldCapRatioBps)
	}
	if params.ShieldMinThresholdBps <= 0 || params.ShieldMinThresholdBps >= params.ShieldMaxThresholdBps {
		return nil, fmt.Errorf("%w: shield threshold band [%d, %d] is invalid",
			types.ErrInvalidParameter, params.ShieldMinThresholdBps, params.ShieldMaxThresholdBps)
	}
	if len(params.ShieldPremiumTable) == 0 {
		return nil, fmt.Errorf("%w: shield premium table is empty", types.ErrInvalidParameter)
	}
	for i := 1; i < len(params.ShieldPremiumTable); i++ {
		prev, cur := params.ShieldPremiumTable[i-1], params.ShieldPremiumTable[i]
		if cur.MinThresholdBps <= prev.MinThresholdBps {
			return nil, fmt.Errorf("%w: premium table thresholds must be strictly increasing",
				types.ErrInvalidParameter)
		}
		if cur.PremiumRateBps > prev.PremiumRateBps {
			// Lower thresholds trigger more easily and must cost more.
			return nil, fmt.Errorf("%w: premium rates must not increase with threshold",
				types.ErrInvalidParameter)
		}
	}

	return &Pool{
		logger:    logger.GetForComponent("shield_pool"),
		params:    params,
		reserves:  sdkmath.ZeroInt(),
		policies:  make(map[uint64]*types.ShieldPolicy),
		claimedAt: make(map[uint64]uint64),
	}, nil
}

// premiumRate resolves the per-epoch premium for a threshold: a step lookup
// on the highest tier at or below it.
func (p *Pool) premiumRate(thresholdBps int64) int64 {
	rate := p.params.ShieldPremiumTable[0].PremiumRateBps
	for _, tier := range p.params.ShieldPremiumTable {
		if tier.MinThresholdBps > thresholdBps {
			break
		}
		rate = tier.PremiumRateBps
	}
	return rate
}

// outstandingMaxClaims sums the unclaimed claim capacity of active policies.
func (p *Pool) outstandingMaxClaims() sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, id := range p.order {
		pol := p.policies[id]
		if pol.Active {
			total = total.Add(pol.MaxClaim.Sub(pol.TotalClaimed))
		}
	}
	return total
}

// PurchaseShield prices and admits a new policy. The premium is charged per
// epoch of coverage and rounds up against the buyer; the claim cap rounds
// down. Admission fails with ErrPoolSaturated when outstanding max claims
// would exceed reserves even counting the incoming premium.
func (p *Pool) PurchaseShield(owner string, thresholdBps int64, notional sdkmath.Int, durationEpochs int, now time.Time) (types.ShieldPolicy, error) {
	if owner == "" {
		return types.ShieldPolicy{}, fmt.Errorf("%w: owner cannot be empty", types.ErrInvalidParameter)
	}
	if thresholdBps < p.params.ShieldMinThresholdBps || thresholdBps > p.params.ShieldMaxThresholdBps {
		return types.ShieldPolicy{}, fmt.Errorf("%w: threshold %d bps outside [%d, %d]",
			types.ErrInvalidParameter, thresholdBps, p.params.ShieldMinThresholdBps, p.params.ShieldMaxThresholdBps)
	}
	if notional.IsNil() || !notional.IsPositive() {
		return types.ShieldPolicy{}, fmt.Errorf("%w: notional must be positive", types.ErrInvalidParameter)
	}
	if durationEpochs < 1 {
		return types.ShieldPolicy{}, fmt.Errorf("%w: duration must cover at least one epoch", types.ErrInvalidParameter)
	}

	perEpoch, err := utils.MulBpsCeil(notional, p.premiumRate(thresholdBps))
	if err != nil {
		return types.ShieldPolicy{}, fmt.Errorf("premium calculation failed: %w", err)
	}
	premium := perEpoch.MulRaw(int64(durationEpochs))

	maxClaim, err := utils.MulBpsFloor(notional, p.params.ShieldCapRatioBps)
	if err != nil {
		return types.ShieldPolicy{}, fmt.Errorf("max claim calculation failed: %w", err)
	}

	// Admission: reserves after the premium must cover every outstanding max
	// claim including this one (utilization <= 1.0).
	newOutstanding := p.outstandingMaxClaims().Add(maxClaim)
	newReserves := p.reserves.Add(premium)
	if newOutstanding.GT(newReserves) {
		return types.ShieldPolicy{}, fmt.Errorf(
			"%w: accepting policy would push outstanding claims %s past reserves %s",
			types.ErrPoolSaturated, newOutstanding.String(), newReserves.String())
	}

	p.nextID++
	policy := &types.ShieldPolicy{
		ID:              p.nextID,
		Owner:           owner,
		ThresholdBps:    thresholdBps,
		Notional:        notional,
		PremiumPaid:     premium,
		Active:          true,
		DurationEpochs:  durationEpochs,
		EpochsRemaining: durationEpochs,
		TotalClaimed:    sdkmath.ZeroInt(),
		MaxClaim:        maxClaim,
		PurchasedAt:     now,
	}
	p.policies[policy.ID] = policy
	p.order = append(p.order, policy.ID)
	p.reserves = newReserves

	p.logger.Info().
		Uint64("policy", policy.ID).
		Str("owner", owner).
		Int64("thresholdBps", thresholdBps).
		Str("notional", notional.String()).
		Str("premium", premium.String()).
		Str("maxClaim", maxClaim.String()).
		Msg("Shield policy purchased")

	return *policy, nil
}

// payoutFor evaluates the payout curve for one policy against a drawdown.
// The curve is linear in the excess drawdown over the policy threshold and
// saturates at the full notional; the cap against MaxClaim is applied by the
// caller. Rounds down in the pool's favor.
func (p *Pool) payoutFor(policy *types.ShieldPolicy, drawdownBps int64) (sdkmath.Int, error) {
	excess := drawdownBps - policy.ThresholdBps
	payoutBps := utils.ClampBps(
		p.params.ShieldPayoutBaseBps+p.params.ShieldPayoutSlopeBps*excess,
		0, utils.BpsDenom)
	return utils.MulBpsFloor(policy.Notional, payoutBps)
}

// ClaimShield pays one policy against the drawdown recorded for the epoch
// being settled. Each policy claims at most once per epoch; the payout is
// capped so lifetime claims never exceed MaxClaim and reserves never go
// negative.
func (p *Pool) ClaimShield(owner string, policyID uint64) (sdkmath.Int, error) {
	policy, ok := p.policies[policyID]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: policy %d not found", types.ErrNotEligible, policyID)
	}
	if policy.Owner != owner {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: policy %d", types.ErrNotOwner, policyID)
	}
	if p.lastDrawdown == nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: no drawdown recorded", types.ErrNotEligible)
	}
	return p.claim(policy, p.lastDrawdown)
}

func (p *Pool) claim(policy *types.ShieldPolicy, event *types.DrawdownEvent) (sdkmath.Int, error) {
	if !policy.Active {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: policy %d is inactive", types.ErrNotEligible, policy.ID)
	}
	if event.DrawdownBps < policy.ThresholdBps {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: drawdown %d bps below threshold %d bps",
			types.ErrNotEligible, event.DrawdownBps, policy.ThresholdBps)
	}
	if p.claimedAt[policy.ID] == event.EpochIndex {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: policy %d already claimed for epoch %d",
			types.ErrNotEligible, policy.ID, event.EpochIndex)
	}

	curve, err := p.payoutFor(policy, event.DrawdownBps)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("payout calculation failed: %w", err)
	}
	payout := sdkmath.MinInt(policy.MaxClaim.Sub(policy.TotalClaimed), curve)
	payout = sdkmath.MinInt(payout, sdkmath.MaxInt(p.reserves, sdkmath.ZeroInt()))
	if !payout.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: policy %d has no claimable capacity",
			types.ErrNotEligible, policy.ID)
	}

	policy.TotalClaimed = policy.TotalClaimed.Add(payout)
	p.reserves = p.reserves.Sub(payout)
	p.claimedAt[policy.ID] = event.EpochIndex
	if policy.TotalClaimed.Equal(policy.MaxClaim) {
		policy.Active = false
	}

	p.logger.Info().
		Uint64("policy", policy.ID).
		Uint64("epoch", event.EpochIndex).
		Int64("drawdownBps", event.DrawdownBps).
		Str("payout", payout.String()).
		Str("totalClaimed", policy.TotalClaimed.String()).
		Msg("Shield claim paid")

	return payout, nil
}

// ProcessDrawdown records the settlement's drawdown event and pays every
// eligible active policy, oldest first. It mutates the event in place with
// the number of shields triggered and the total paid so the settlement
// snapshot carries the full outcome.
func (p *Pool) ProcessDrawdown(event *types.DrawdownEvent) error {
	if event == nil {
		return fmt.Errorf("%w: drawdown event cannot be nil", types.ErrInvalidParameter)
	}
	p.lastDrawdown = event
	p.lastClaims = 0
	total := sdkmath.ZeroInt()

	for _, id := range p.order {
		policy := p.policies[id]
		if !policy.Active || event.DrawdownBps < policy.ThresholdBps {
			continue
		}
		payout, err := p.claim(policy, event)
		if err != nil {
			// No capacity left is a per-policy condition, not a failure of
			// the settlement transaction.
			continue
		}
		p.lastClaims++
		total = total.Add(payout)
	}

	event.ShieldsTriggered = p.lastClaims
	event.TotalPayout = total
	return nil
}

// CancelShield deactivates a policy and refunds the unused premium, linear in
// the epochs remaining and rounded down in the pool's favor. The utilization
// bound holds at admission only: a refund may leave outstanding max claims
// above reserves, and later payouts then cap at what the pool holds.
func (p *Pool) CancelShield(owner string, policyID uint64) (sdkmath.Int, error) {
	policy, ok := p.policies[policyID]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: policy %d not found", types.ErrNotEligible, policyID)
	}
	if policy.Owner != owner {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: policy %d", types.ErrNotOwner, policyID)
	}
	if !policy.Active {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: policy %d is inactive", types.ErrNotEligible, policyID)
	}

	refund := policy.PremiumPaid.
		MulRaw(int64(policy.EpochsRemaining)).
		QuoRaw(int64(policy.DurationEpochs))

	policy.Active = false
	policy.EpochsRemaining = 0
	p.reserves = p.reserves.Sub(refund)

	p.logger.Info().
		Uint64("policy", policyID).
		Str("refund", refund.String()).
		Msg("Shield policy cancelled")

	return refund, nil
}

// Contribute adds the junior-tranche settlement contribution to reserves.
func (p *Pool) Contribute(amount sdkmath.Int) {
	if amount.IsNil() || !amount.IsPositive() {
		return
	}
	p.reserves = p.reserves.Add(amount)
}

// AdvanceEpoch ages every active policy by one epoch; coverage that has run
// out expires. Called after claim processing inside the settlement
// transaction.
func (p *Pool) AdvanceEpoch() {
	for _, id := range p.order {
		policy := p.policies[id]
		if !policy.Active {
			continue
		}
		policy.EpochsRemaining--
		if policy.EpochsRemaining <= 0 {
			policy.Active = false
		}
	}
	p.lastDrawdown = nil
}

// Policy returns a copy of one policy.
func (p *Pool) Policy(id uint64) (types.ShieldPolicy, bool) {
	policy, ok := p.policies[id]
	if !ok {
		return types.ShieldPolicy{}, false
	}
	return *policy, true
}

// Policies returns copies of every policy in issue order.
func (p *Pool) Policies() []types.ShieldPolicy {
	out := make([]types.ShieldPolicy, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.policies[id])
	}
	return out
}

// State returns the pool snapshot. Utilization saturates at 10000 bps for
// display; admission arithmetic uses the exact integers.
func (p *Pool) State() types.ShieldPoolState {
	outstanding := p.outstandingMaxClaims()
	active := 0
	for _, id := range p.order {
		if p.policies[id].Active {
			active++
		}
	}

	var utilization int64
	if p.reserves.IsPositive() {
		if ratio, err := utils.RatioBps(outstanding, p.reserves); err == nil {
			utilization = utils.ClampBps(ratio, 0, utils.BpsDenom)
		}
	} else if outstanding.IsPositive() {
		utilization = utils.BpsDenom
	}

	return types.ShieldPoolState{
		TotalReserves:        p.reserves,
		TotalPolicies:        len(p.order),
		ActivePolicies:       active,
		ActiveClaims:         p.lastClaims,
		OutstandingMaxClaims: outstanding,
		UtilizationBps:       utilization,
	}
}
