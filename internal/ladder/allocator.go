package ladder

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/adaptive-vault/aev/internal/epoch"
	"github.com/adaptive-vault/aev/internal/logger"
	"github.com/adaptive-vault/aev/internal/tranche"
	"github.com/adaptive-vault/aev/internal/types"
	"github.com/adaptive-vault/aev/internal/utils"
)

// Rung is one duration tier: its own scheduler and ledger, settled on its own
// clock, independent of the other rungs.
type Rung struct {
	Duration  time.Duration
	WeightBps int64
	Scheduler *epoch.Scheduler
	Ledger    *tranche.Ledger
}

// Allocator runs several rungs concurrently and apportions deposits across
// them by weight. Weights always sum to exactly 10000 bps.
type Allocator struct {
	logger zerolog.Logger
	rungs  []*Rung
}

// NewAllocator builds one scheduler+ledger pair per configured rung. Each
// rung reads the shared volatility monitor and fee curve but owns its epoch
// clock: the rung duration becomes the base duration with a band of a
// quarter to double around it.
func NewAllocator(cfgs []types.LadderRungConfig, base types.EpochConfig, vol epoch.VolatilityReader, fees tranche.FeeReader, now time.Time) (*Allocator, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("%w: ladder needs at least one rung", types.ErrInvalidParameter)
	}
	weights := make([]int64, len(cfgs))
	for i, cfg := range cfgs {
		if cfg.Duration <= 0 {
			return nil, fmt.Errorf("%w: rung %d duration %s is not positive",
				types.ErrInvalidParameter, i, cfg.Duration)
		}
		weights[i] = cfg.WeightBps
	}
	if err := validateWeights(weights, len(cfgs)); err != nil {
		return nil, err
	}

	a := &Allocator{logger: logger.GetForComponent("ladder_allocator")}
	empty := types.TrancheState{SeniorAssets: sdkmath.ZeroInt(), JuniorAssets: sdkmath.ZeroInt()}

	for i, cfg := range cfgs {
		rungEpochCfg := base
		rungEpochCfg.BaseDuration = cfg.Duration
		rungEpochCfg.MinDuration = cfg.Duration / 4
		if rungEpochCfg.MinDuration < time.Second {
			rungEpochCfg.MinDuration = time.Second
		}
		rungEpochCfg.MaxDuration = cfg.Duration * 2

		ledger, err := tranche.NewLedger(fees)
		if err != nil {
			return nil, fmt.Errorf("rung %d ledger: %w", i, err)
		}
		sched, err := epoch.NewScheduler(rungEpochCfg, vol, empty, now)
		if err != nil {
			return nil, fmt.Errorf("rung %d scheduler: %w", i, err)
		}
		a.rungs = append(a.rungs, &Rung{
			Duration:  cfg.Duration,
			WeightBps: cfg.WeightBps,
			Scheduler: sched,
			Ledger:    ledger,
		})
	}

	a.logger.Info().Int("rungs", len(a.rungs)).Msg("Ladder allocator initialized")
	return a, nil
}

func validateWeights(weights []int64, rungs int) error {
	if len(weights) != rungs {
		return fmt.Errorf("%w: %d weights for %d rungs", types.ErrInvalidParameter, len(weights), rungs)
	}
	var sum int64
	for i, w := range weights {
		if w < 0 {
			return fmt.Errorf("%w: rung %d weight %d is negative", types.ErrInvalidParameter, i, w)
		}
		sum += w
	}
	if sum != utils.BpsDenom {
		return fmt.Errorf("%w: rung weights sum to %d bps, need exactly 10000",
			types.ErrInvalidParameter, sum)
	}
	return nil
}

// DepositLadder splits amount across the rungs by weight, routing each share
// into that rung's ledger. Shares round down; the first rung sweeps the
// rounding remainder so the splits always sum to amount exactly. A nil
// weights slice uses the ladder's current weights.
func (a *Allocator) DepositLadder(amount sdkmath.Int, weights []int64, tr types.Tranche) ([]sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit amount must be positive", types.ErrInvalidParameter)
	}
	if weights == nil {
		weights = a.Weights()
	}
	if err := validateWeights(weights, len(a.rungs)); err != nil {
		return nil, err
	}

	shares := make([]sdkmath.Int, len(weights))
	distributed := sdkmath.ZeroInt()
	for i, w := range weights {
		share := amount.MulRaw(w).QuoRaw(utils.BpsDenom)
		shares[i] = share
		distributed = distributed.Add(share)
	}
	shares[0] = shares[0].Add(amount.Sub(distributed))

	for i, share := range shares {
		if !share.IsPositive() {
			continue
		}
		if err := a.rungs[i].Ledger.Deposit(share, tr); err != nil {
			return nil, fmt.Errorf("rung %d deposit failed: %w", i, err)
		}
	}

	a.logger.Info().
		Str("amount", amount.String()).
		Str("tranche", string(tr)).
		Msg("Ladder deposit split across rungs")
	return shares, nil
}

// SettleRung cranks one rung's scheduler, settling its ledger with pnl.
// Other rungs' schedules are unaffected.
func (a *Allocator) SettleRung(index int, now time.Time, pnl sdkmath.Int) (types.Epoch, error) {
	if index < 0 || index >= len(a.rungs) {
		return types.Epoch{}, fmt.Errorf("%w: rung index %d out of range", types.ErrInvalidParameter, index)
	}
	rung := a.rungs[index]
	return rung.Scheduler.TryAdvance(now, func(ep *types.Epoch) (types.SettlementResult, types.TrancheState, error) {
		result, err := rung.Ledger.SettleEpoch(ep, pnl)
		if err != nil {
			return types.SettlementResult{}, types.TrancheState{}, err
		}
		return result, rung.Ledger.State(), nil
	})
}

// RebalanceLadder installs new weights prospectively: only future deposits
// observe them, assets already in a rung stay until that rung settles.
func (a *Allocator) RebalanceLadder(newWeights []int64) error {
	if err := validateWeights(newWeights, len(a.rungs)); err != nil {
		return err
	}
	for i, w := range newWeights {
		a.rungs[i].WeightBps = w
	}
	a.logger.Info().Msg("Ladder weights rebalanced")
	return nil
}

// Weights returns the current rung weights.
func (a *Allocator) Weights() []int64 {
	out := make([]int64, len(a.rungs))
	for i, r := range a.rungs {
		out[i] = r.WeightBps
	}
	return out
}

// RungCount returns the number of rungs.
func (a *Allocator) RungCount() int {
	return len(a.rungs)
}

// Snapshots returns the read-only view of every rung.
func (a *Allocator) Snapshots() []types.LadderRungSnapshot {
	out := make([]types.LadderRungSnapshot, len(a.rungs))
	for i, r := range a.rungs {
		cur := r.Scheduler.CurrentEpoch()
		st := r.Ledger.State()
		out[i] = types.LadderRungSnapshot{
			Index:        i,
			Duration:     r.Duration,
			WeightBps:    r.WeightBps,
			SeniorAssets: st.SeniorAssets,
			JuniorAssets: st.JuniorAssets,
			EpochIndex:   cur.Index,
			EpochState:   cur.State,
		}
	}
	return out
}
