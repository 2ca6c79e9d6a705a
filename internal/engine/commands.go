/*

This file declares the engine's command set. Every externally visible
operation is one command record; the engine executes commands one at a time
under its lock, so each command is a serializable transaction against the
vault state.

*/

package engine

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/adaptive-vault/aev/internal/types"
)

// Command is one operation against the engine. Execute dispatches on the
// concrete type.
type Command interface {
	// Name identifies the command in logs.
	Name() string
}

// DepositCmd credits amount to one tranche of the main ledger.
type DepositCmd struct {
	Amount  sdkmath.Int
	Tranche types.Tranche
}

// CrankCmd attempts an epoch settlement at Now. A zero Now uses the engine
// clock.
type CrankCmd struct {
	Now time.Time
}

// RecordVolatilityCmd feeds one volatility sample into the monitor.
type RecordVolatilityCmd struct {
	SampleBps int64
	Timestamp time.Time
}

// MarketUpdateCmd applies a market snapshot: the utilization and trailing
// performance drivers for the fee curve, and the profit-and-loss accrued
// since the previous update. The accrued figure is settled at the next crank.
type MarketUpdateCmd struct {
	UtilizationBps int64
	PerformanceBps int64
	PnLDelta       sdkmath.Int
}

// PurchaseShieldCmd buys drawdown insurance.
type PurchaseShieldCmd struct {
	Owner          string
	ThresholdBps   int64
	Notional       sdkmath.Int
	DurationEpochs int
}

// ClaimShieldCmd claims a policy against the most recent drawdown event.
type ClaimShieldCmd struct {
	Owner    string
	PolicyID uint64
}

// CancelShieldCmd cancels a policy for a pro-rata premium refund.
type CancelShieldCmd struct {
	Owner    string
	PolicyID uint64
}

// AdvanceYieldCmd sells future yield for an upfront advance, minting a note.
type AdvanceYieldCmd struct {
	Owner  string
	Epochs int
	Amount sdkmath.Int
}

// RedeemNoteCmd releases the matured slice of a yield note.
type RedeemNoteCmd struct {
	Owner   string
	TokenID uint64
}

// EarlyRedeemCmd redeems part of a note's value before maturity at a
// haircut.
type EarlyRedeemCmd struct {
	Owner         string
	TokenID       uint64
	PartialAmount sdkmath.Int
}

// TransferNoteCmd reassigns note ownership.
type TransferNoteCmd struct {
	Owner    string
	TokenID  uint64
	NewOwner string
}

// DepositLadderCmd splits a deposit across the ladder rungs by weight. A nil
// Weights slice uses the ladder's current weights.
type DepositLadderCmd struct {
	Amount  sdkmath.Int
	Weights []int64
	Tranche types.Tranche
}

// SettleRungCmd cranks one ladder rung with its own profit-and-loss figure.
type SettleRungCmd struct {
	Index int
	Now   time.Time
	PnL   sdkmath.Int
}

// RebalanceLadderCmd installs new rung weights for future deposits.
type RebalanceLadderCmd struct {
	Weights []int64
}

func (DepositCmd) Name() string          { return "deposit" }
func (CrankCmd) Name() string            { return "crank" }
func (RecordVolatilityCmd) Name() string { return "record_volatility" }
func (MarketUpdateCmd) Name() string     { return "market_update" }
func (PurchaseShieldCmd) Name() string   { return "purchase_shield" }
func (ClaimShieldCmd) Name() string      { return "claim_shield" }
func (CancelShieldCmd) Name() string     { return "cancel_shield" }
func (AdvanceYieldCmd) Name() string     { return "advance_yield" }
func (RedeemNoteCmd) Name() string       { return "redeem_note" }
func (EarlyRedeemCmd) Name() string      { return "early_redeem" }
func (TransferNoteCmd) Name() string     { return "transfer_note" }
func (DepositLadderCmd) Name() string    { return "deposit_ladder" }
func (SettleRungCmd) Name() string       { return "settle_rung" }
func (RebalanceLadderCmd) Name() string  { return "rebalance_ladder" }
