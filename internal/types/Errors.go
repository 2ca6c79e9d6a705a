/*

This file contains the error kinds every engine command can return. All
validation happens before any state mutation, so a command that returns one of
these leaves every entity unchanged. Callers branch on the kind with
errors.Is; wrapped context never hides it.

*/

package types

import "errors"

var (
	// ErrInvalidParameter covers out-of-range thresholds, weights and amounts.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrEpochNotReady means settlement was requested before the epoch's end
	// time with no flash trigger fired.
	ErrEpochNotReady = errors.New("epoch not ready")

	// ErrAlreadySettled means a stale or duplicate crank: another caller won
	// the settlement race.
	ErrAlreadySettled = errors.New("epoch already settled")

	// ErrInsolvent means the waterfall would drive a tranche negative beyond
	// the allowed spillover. The caller decides remedial action.
	ErrInsolvent = errors.New("settlement would leave vault insolvent")

	// ErrPoolSaturated means a capacity or utilization ceiling was breached.
	ErrPoolSaturated = errors.New("pool saturated")

	// ErrInsufficientLiquidity means an advance exceeds the available buffer.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrNotMatured means a note redemption before its maturity epoch.
	ErrNotMatured = errors.New("note not matured")

	// ErrNotEligible means a shield claim with no qualifying drawdown or an
	// inactive policy.
	ErrNotEligible = errors.New("claim not eligible")

	// ErrNotOwner means the caller does not own the policy or note.
	ErrNotOwner = errors.New("caller is not the owner")

	// ErrStaleInput means an out-of-order timestamp on a feed sample.
	ErrStaleInput = errors.New("stale input")
)
