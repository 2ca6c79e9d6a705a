package tranche

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/adaptive-vault/aev/internal/logger"
	"github.com/adaptive-vault/aev/internal/types"
	"github.com/adaptive-vault/aev/internal/utils"
)

// FeeReader is the ledger's read-only view of the fee curve.
type FeeReader interface {
	Rates() types.FeeRates
}

// Ledger owns the senior/junior balances and applies the epoch return
// waterfall at settlement. It is the only writer of TrancheState; the shield
// and teleport pools consume figures derived from it but never touch it.
type Ledger struct {
	logger zerolog.Logger
	fees   FeeReader

	state          types.TrancheState
	totalDeposited sdkmath.Int
	cumulativePnL  sdkmath.Int
}

// NewLedger creates an empty ledger reading coupon rates from fees.
func NewLedger(fees FeeReader) (*Ledger, error) {
	if fees == nil {
		return nil, fmt.Errorf("%w: fee reader cannot be nil", types.ErrInvalidParameter)
	}
	return &Ledger{
		logger: logger.GetForComponent("tranche_ledger"),
		fees:   fees,
		state: types.TrancheState{
			SeniorAssets: sdkmath.ZeroInt(),
			JuniorAssets: sdkmath.ZeroInt(),
		},
		totalDeposited: sdkmath.ZeroInt(),
		cumulativePnL:  sdkmath.ZeroInt(),
	}, nil
}

// Deposit increases the chosen tranche's assets.
func (l *Ledger) Deposit(amount sdkmath.Int, tranche types.Tranche) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be positive", types.ErrInvalidParameter)
	}
	switch tranche {
	case types.TrancheSenior:
		l.state.SeniorAssets = l.state.SeniorAssets.Add(amount)
	case types.TrancheJunior:
		l.state.JuniorAssets = l.state.JuniorAssets.Add(amount)
	default:
		return fmt.Errorf("%w: unknown tranche %q", types.ErrInvalidParameter, tranche)
	}
	l.totalDeposited = l.totalDeposited.Add(amount)

	l.logger.Debug().
		Str("tranche", string(tranche)).
		Str("amount", amount.String()).
		Str("senior", l.state.SeniorAssets.String()).
		Str("junior", l.state.JuniorAssets.String()).
		Msg("Deposit applied")
	return nil
}

// SettleEpoch applies the return waterfall for pnl and records the realized
// return on the epoch's behalf. Waterfall order: the senior tranche earns its
// fixed coupon first, the junior tranche takes the remaining gain or absorbs
// the loss down to zero, and any excess loss spills over to senior. The total
// after settlement always equals the total before plus pnl.
//
// All checks run before any balance moves: a returned error leaves the ledger
// untouched.
func (l *Ledger) SettleEpoch(ep *types.Epoch, pnl sdkmath.Int) (types.SettlementResult, error) {
	if ep == nil {
		return types.SettlementResult{}, fmt.Errorf("%w: epoch cannot be nil", types.ErrInvalidParameter)
	}
	if pnl.IsNil() {
		return types.SettlementResult{}, fmt.Errorf("%w: pnl cannot be nil", types.ErrInvalidParameter)
	}

	before := l.state.Total()
	if pnl.IsNegative() && pnl.Neg().GT(before) {
		return types.SettlementResult{}, fmt.Errorf(
			"%w: epoch %d loss %s exceeds total assets %s",
			types.ErrInsolvent, ep.Index, pnl.Neg().String(), before.String())
	}

	result := types.SettlementResult{
		EpochIndex:        ep.Index,
		SeniorCoupon:      sdkmath.ZeroInt(),
		JuniorDelta:       sdkmath.ZeroInt(),
		SpilloverToSenior: sdkmath.ZeroInt(),
		JuniorYield:       sdkmath.ZeroInt(),
	}

	if before.IsZero() {
		// Empty vault: any windfall accrues to the residual tranche. A loss
		// against zero assets was already rejected as insolvent.
		l.state.JuniorAssets = l.state.JuniorAssets.Add(pnl)
		l.cumulativePnL = l.cumulativePnL.Add(pnl)
		result.JuniorDelta = pnl
		if pnl.IsPositive() {
			result.JuniorYield = pnl
		}
		return result, nil
	}

	// Senior coupon comes out first; it rounds down in the pool's favor.
	coupon, err := utils.MulBpsFloor(l.state.SeniorAssets, l.fees.Rates().SeniorCouponBps)
	if err != nil {
		return types.SettlementResult{}, fmt.Errorf("coupon calculation failed: %w", err)
	}

	senior := l.state.SeniorAssets.Add(coupon)
	juniorDelta := pnl.Sub(coupon)
	junior := l.state.JuniorAssets.Add(juniorDelta)
	spill := sdkmath.ZeroInt()

	if junior.IsNegative() {
		// Loss exceeded the junior balance: junior floors at zero and senior
		// absorbs the excess. The insolvency check above guarantees the
		// spillover fits inside the senior balance.
		spill = junior.Neg()
		junior = sdkmath.ZeroInt()
		senior = senior.Sub(spill)
	}

	after := senior.Add(junior)
	returnBps, err := utils.RatioBps(after.Sub(before), before)
	if err != nil {
		return types.SettlementResult{}, fmt.Errorf("realized return calculation failed: %w", err)
	}

	// Commit.
	l.state.SeniorAssets = senior
	l.state.JuniorAssets = junior
	l.cumulativePnL = l.cumulativePnL.Add(pnl)

	result.SeniorCoupon = coupon
	result.JuniorDelta = juniorDelta
	result.SpilloverToSenior = spill
	result.RealizedReturnBps = returnBps
	if juniorDelta.IsPositive() {
		result.JuniorYield = juniorDelta
	}
	if returnBps < 0 {
		result.Drawdown = &types.DrawdownEvent{
			EpochIndex:     ep.Index,
			DrawdownBps:    -returnBps,
			JuniorWipedOut: spill.IsPositive(),
			TotalPayout:    sdkmath.ZeroInt(),
		}
	}

	l.logger.Info().
		Uint64("epoch", ep.Index).
		Str("pnl", pnl.String()).
		Str("coupon", coupon.String()).
		Str("spillover", spill.String()).
		Int64("realizedReturnBps", returnBps).
		Str("senior", senior.String()).
		Str("junior", junior.String()).
		Msg("Epoch settled")

	return result, nil
}

// State returns a copy of the tranche balances.
func (l *Ledger) State() types.TrancheState {
	return l.state
}

// TotalDeposited returns the cumulative deposits across both tranches.
func (l *Ledger) TotalDeposited() sdkmath.Int {
	return l.totalDeposited
}

// CumulativePnL returns the sum of all settled epoch P&L.
func (l *Ledger) CumulativePnL() sdkmath.Int {
	return l.cumulativePnL
}
