/*

This file contains the engine core: it composes the volatility monitor, epoch
scheduler, fee curve, tranche ledger, shield pool, teleport pool and ladder
allocator behind a single command-execution interface, and runs the periodic
crank loop.

*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adaptive-vault/aev/internal/epoch"
	"github.com/adaptive-vault/aev/internal/fees"
	"github.com/adaptive-vault/aev/internal/ladder"
	"github.com/adaptive-vault/aev/internal/logger"
	"github.com/adaptive-vault/aev/internal/shield"
	"github.com/adaptive-vault/aev/internal/teleport"
	"github.com/adaptive-vault/aev/internal/tranche"
	"github.com/adaptive-vault/aev/internal/types"
	"github.com/adaptive-vault/aev/internal/utils"
	"github.com/adaptive-vault/aev/internal/volatility"
)

// SnapshotSink persists settlement snapshots. The engine tolerates a nil
// sink and a failing one: persistence errors are logged, never block a
// settlement that already committed in memory.
type SnapshotSink interface {
	SaveSettlementSnapshot(snap types.SettlementSnapshot) (int64, error)
	IncrementSettlementCounter() (int, error)
}

// Engine is the composition root. All component state is owned here and
// every command runs under one mutex, so concurrent callers observe the
// vault as a sequence of whole transactions.
type Engine struct {
	mu     sync.Mutex
	logger zerolog.Logger
	params types.EngineParameters

	vol      *volatility.Monitor
	sched    *epoch.Scheduler
	fees     *fees.Curve
	ledger   *tranche.Ledger
	shield   *shield.Pool
	teleport *teleport.Pool
	ladder   *ladder.Allocator

	sink  SnapshotSink
	nowFn func() time.Time

	pendingPnL         sdkmath.Int
	lastUtilizationBps int64
	crankCount         int
	settlementCount    int
	recentSettlements  []types.SettlementSnapshot
}

const recentSettlementsKept = 64

// NewEngine wires every component from one parameter set. The sink may be
// nil when running without a database.
func NewEngine(params types.EngineParameters, sink SnapshotSink, now time.Time) (*Engine, error) {
	vol, err := volatility.NewMonitor(params.SmoothingAlphaBps)
	if err != nil {
		return nil, fmt.Errorf("volatility monitor: %w", err)
	}
	feeCurve := fees.NewCurve(params)
	ledgerMain, err := tranche.NewLedger(feeCurve)
	if err != nil {
		return nil, fmt.Errorf("tranche ledger: %w", err)
	}
	sched, err := epoch.NewScheduler(params.Epoch, vol, ledgerMain.State(), now)
	if err != nil {
		return nil, fmt.Errorf("epoch scheduler: %w", err)
	}
	shieldPool, err := shield.NewPool(params)
	if err != nil {
		return nil, fmt.Errorf("shield pool: %w", err)
	}
	teleportPool, err := teleport.NewPool(params, sched.CurrentEpoch().Index)
	if err != nil {
		return nil, fmt.Errorf("teleport pool: %w", err)
	}
	ladderAlloc, err := ladder.NewAllocator(params.LadderRungs, params.Epoch, vol, feeCurve, now)
	if err != nil {
		return nil, fmt.Errorf("ladder allocator: %w", err)
	}

	e := &Engine{
		logger:     logger.GetForComponent("engine_core"),
		params:     params,
		vol:        vol,
		sched:      sched,
		fees:       feeCurve,
		ledger:     ledgerMain,
		shield:     shieldPool,
		teleport:   teleportPool,
		ladder:     ladderAlloc,
		sink:       sink,
		nowFn:      time.Now,
		pendingPnL: sdkmath.ZeroInt(),
	}

	e.logger.Info().
		Dur("baseEpochDuration", params.Epoch.BaseDuration).
		Int("ladderRungs", ladderAlloc.RungCount()).
		Bool("persistence", sink != nil).
		Msg("Engine wired")
	return e, nil
}

// Execute runs one command as a transaction and returns its result. A failed
// command leaves every component unchanged.
func (e *Engine) Execute(cmd Command) (interface{}, error) {
	if cmd == nil {
		return nil, fmt.Errorf("%w: nil command", types.ErrInvalidParameter)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch c := cmd.(type) {
	case DepositCmd:
		return nil, e.ledger.Deposit(c.Amount, c.Tranche)
	case CrankCmd:
		now := c.Now
		if now.IsZero() {
			now = e.nowFn()
		}
		return e.crank(now)
	case RecordVolatilityCmd:
		return nil, e.vol.Record(c.SampleBps, c.Timestamp)
	case MarketUpdateCmd:
		return nil, e.marketUpdate(c)
	case PurchaseShieldCmd:
		return e.shield.PurchaseShield(c.Owner, c.ThresholdBps, c.Notional, c.DurationEpochs, e.nowFn())
	case ClaimShieldCmd:
		return e.shield.ClaimShield(c.Owner, c.PolicyID)
	case CancelShieldCmd:
		return e.shield.CancelShield(c.Owner, c.PolicyID)
	case AdvanceYieldCmd:
		return e.teleport.AdvanceYield(c.Owner, c.Epochs, c.Amount, e.nowFn())
	case RedeemNoteCmd:
		return e.teleport.RedeemNote(c.Owner, c.TokenID)
	case EarlyRedeemCmd:
		return e.teleport.EarlyRedeem(c.Owner, c.TokenID, c.PartialAmount)
	case TransferNoteCmd:
		return nil, e.teleport.TransferNote(c.Owner, c.TokenID, c.NewOwner)
	case DepositLadderCmd:
		return e.ladder.DepositLadder(c.Amount, c.Weights, c.Tranche)
	case SettleRungCmd:
		now := c.Now
		if now.IsZero() {
			now = e.nowFn()
		}
		return e.ladder.SettleRung(c.Index, now, c.PnL)
	case RebalanceLadderCmd:
		return nil, e.ladder.RebalanceLadder(c.Weights)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", types.ErrInvalidParameter, cmd.Name())
	}
}

func (e *Engine) marketUpdate(c MarketUpdateCmd) error {
	if c.UtilizationBps < 0 || c.UtilizationBps > utils.BpsDenom {
		return fmt.Errorf("%w: utilization %d bps outside [0, 10000]",
			types.ErrInvalidParameter, c.UtilizationBps)
	}
	e.lastUtilizationBps = c.UtilizationBps
	if !c.PnLDelta.IsNil() {
		e.pendingPnL = e.pendingPnL.Add(c.PnLDelta)
	}
	return nil
}

// crank attempts one settlement. On success the whole pipeline runs before
// the lock is released: waterfall, drawdown processing, shield and teleport
// epoch rolls, fee update, snapshot. The settlement itself is the only step
// that can fail; a failure there reverts the epoch and leaves the pending
// figure accrued for the retry.
func (e *Engine) crank(now time.Time) (*types.SettlementSnapshot, error) {
	e.crankCount++
	crankID := uuid.New().String()
	crankLogger := e.logger.With().Str("crank_id", crankID).Int("crank", e.crankCount).Logger()

	before := e.ledger.State()
	pnl := e.pendingPnL

	var result types.SettlementResult
	settled, err := e.sched.TryAdvance(now, func(ep *types.Epoch) (types.SettlementResult, types.TrancheState, error) {
		r, settleErr := e.ledger.SettleEpoch(ep, pnl)
		if settleErr != nil {
			return types.SettlementResult{}, types.TrancheState{}, settleErr
		}
		result = r
		return r, e.ledger.State(), nil
	})
	if err != nil {
		return nil, err
	}
	e.pendingPnL = sdkmath.ZeroInt()

	// Drawdown events pay out eligible shields before anything else moves.
	if result.Drawdown != nil {
		if ddErr := e.shield.ProcessDrawdown(result.Drawdown); ddErr != nil {
			crankLogger.Error().Err(ddErr).Msg("Drawdown shield processing failed")
		}
	}

	// A positive junior yield funds the shield reserves and the teleport
	// buffer before the pools roll to the new epoch.
	if result.JuniorYield.IsPositive() {
		if cut, cutErr := utils.MulBpsFloor(result.JuniorYield, e.params.ShieldContributionBps); cutErr == nil && cut.IsPositive() {
			e.shield.Contribute(cut)
		}
		if cut, cutErr := utils.MulBpsFloor(result.JuniorYield, e.params.TeleportBufferContributionBps); cutErr == nil && cut.IsPositive() {
			e.teleport.AccrueBuffer(cut)
		}
	}
	e.shield.AdvanceEpoch()
	e.teleport.AdvanceEpoch()

	if feeErr := e.fees.Update(e.lastUtilizationBps, result.RealizedReturnBps, now); feeErr != nil {
		crankLogger.Error().Err(feeErr).Msg("Fee curve update failed")
	}

	snap := e.buildSnapshot(crankID, now, settled, before, pnl, result)
	e.persistSnapshot(&snap, crankLogger)
	e.recentSettlements = append(e.recentSettlements, snap)
	if len(e.recentSettlements) > recentSettlementsKept {
		e.recentSettlements = e.recentSettlements[len(e.recentSettlements)-recentSettlementsKept:]
	}

	crankLogger.Info().
		Uint64("epoch", settled.Index).
		Int64("realizedReturnBps", result.RealizedReturnBps).
		Str("pnl", pnl.String()).
		Msg("Settlement complete")
	return &snap, nil
}

func (e *Engine) buildSnapshot(crankID string, now time.Time, settled types.Epoch, before types.TrancheState, pnl sdkmath.Int, result types.SettlementResult) types.SettlementSnapshot {
	after := e.ledger.State()
	next := e.sched.CurrentEpoch()
	shieldState := e.shield.State()
	teleportState := e.teleport.State()

	snap := types.SettlementSnapshot{
		SettlementNumber:    e.settlementCount + 1,
		EpochIndex:          settled.Index,
		CrankID:             crankID,
		Timestamp:           now,
		SeniorBefore:        before.SeniorAssets,
		JuniorBefore:        before.JuniorAssets,
		SeniorAfter:         after.SeniorAssets,
		JuniorAfter:         after.JuniorAssets,
		PnL:                 pnl,
		SeniorCoupon:        result.SeniorCoupon,
		SpilloverToSenior:   result.SpilloverToSenior,
		RealizedReturnBps:   result.RealizedReturnBps,
		ShieldReserves:      shieldState.TotalReserves,
		TeleportOutstanding: teleportState.TotalOutstanding,
		TeleportBuffer:      teleportState.JuniorYieldBuffer,
		Fees:                e.fees.Rates(),
		NextEpochIndex:      next.Index,
		NextEpochEnds:       next.EndTime,
		NextDuration:        next.EndTime.Sub(next.StartTime),
	}
	if result.Drawdown != nil {
		snap.DrawdownBps = result.Drawdown.DrawdownBps
		snap.ShieldsTriggered = result.Drawdown.ShieldsTriggered
		snap.ShieldPayout = result.Drawdown.TotalPayout
	} else {
		snap.ShieldPayout = sdkmath.ZeroInt()
	}
	return snap
}

func (e *Engine) persistSnapshot(snap *types.SettlementSnapshot, crankLogger zerolog.Logger) {
	if e.sink == nil {
		e.settlementCount++
		snap.SettlementNumber = e.settlementCount
		return
	}
	n, err := e.sink.IncrementSettlementCounter()
	if err != nil {
		crankLogger.Error().Err(err).Msg("Settlement counter increment failed, using in-memory count")
		e.settlementCount++
		n = e.settlementCount
	} else {
		e.settlementCount = n
	}
	snap.SettlementNumber = n

	id, err := e.sink.SaveSettlementSnapshot(*snap)
	if err != nil {
		crankLogger.Error().Err(err).Msg("Settlement snapshot persistence failed")
		return
	}
	snap.SnapshotID = id
}

// RunLoop cranks the engine on a fixed interval until the context is
// cancelled. An epoch that is not yet due is a quiet pass.
func (e *Engine) RunLoop(ctx context.Context, interval time.Duration) {
	e.logger.Info().Dur("interval", interval).Msg("Starting engine crank loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Engine loop stopped due to context cancellation")
			return
		case <-ticker.C:
			_, err := e.Execute(CrankCmd{})
			switch {
			case err == nil:
			case errors.Is(err, types.ErrEpochNotReady), errors.Is(err, types.ErrAlreadySettled):
				e.logger.Debug().Msg("Epoch not yet due")
			default:
				e.logger.Error().Err(err).Msg("Crank failed")
			}
		}
	}
}

// EpochSnapshot returns the current epoch record.
func (e *Engine) EpochSnapshot() types.Epoch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.CurrentEpoch()
}

// TrancheSnapshot returns the main ledger balances.
func (e *Engine) TrancheSnapshot() types.TrancheState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.State()
}

// FeeSnapshot returns the fee schedule in force.
func (e *Engine) FeeSnapshot() types.FeeRates {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fees.Rates()
}

// VolatilitySnapshot returns the monitor state.
func (e *Engine) VolatilitySnapshot() types.VolatilityState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vol.State()
}

// ShieldSnapshot returns the shield pool state and its policies.
func (e *Engine) ShieldSnapshot() (types.ShieldPoolState, []types.ShieldPolicy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shield.State(), e.shield.Policies()
}

// TeleportSnapshot returns the teleport pool state and its notes.
func (e *Engine) TeleportSnapshot() (types.TeleportPoolState, []types.YieldNote) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.teleport.State(), e.teleport.Notes()
}

// LadderSnapshot returns the per-rung views.
func (e *Engine) LadderSnapshot() []types.LadderRungSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ladder.Snapshots()
}

// RecentSettlements returns up to limit of the most recent settlement
// snapshots, newest last.
func (e *Engine) RecentSettlements(limit int) []types.SettlementSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 || limit > len(e.recentSettlements) {
		limit = len(e.recentSettlements)
	}
	out := make([]types.SettlementSnapshot, limit)
	copy(out, e.recentSettlements[len(e.recentSettlements)-limit:])
	return out
}
