/*
This file contains common utility functions for fixed-point arithmetic.
All amounts are integers in the smallest currency unit, all rates are integer
basis points, and every operation states its rounding direction explicitly.
*/

package utils

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// BpsDenom is the basis-point denominator: 10000 bps = 100%.
const BpsDenom int64 = 10000

// Error definitions for zero-tolerance error handling
var (
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrRateOutOfRange   = errors.New("rate is outside [0, 10000] bps")
	ErrDenomNotPositive = errors.New("denominator is not positive")
)

// MulBpsFloor multiplies amount by a basis-point rate, rounding down.
// Use for amounts owed to the pool (fees retained, payouts released).
func MulBpsFloor(amount sdkmath.Int, bps int64) (sdkmath.Int, error) {
	if amount.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if bps < 0 || bps > BpsDenom {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d", ErrRateOutOfRange, bps)
	}
	return amount.MulRaw(bps).QuoRaw(BpsDenom), nil
}

// MulBpsCeil multiplies amount by a basis-point rate, rounding up.
// Use for amounts owed by the user (premiums, haircuts).
func MulBpsCeil(amount sdkmath.Int, bps int64) (sdkmath.Int, error) {
	if amount.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if bps < 0 || bps > BpsDenom {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d", ErrRateOutOfRange, bps)
	}
	return amount.MulRaw(bps).AddRaw(BpsDenom - 1).QuoRaw(BpsDenom), nil
}

// RatioBps returns numerator/denominator expressed in basis points, truncated
// toward zero. The numerator may be negative (realized losses); the
// denominator must be strictly positive.
func RatioBps(numerator, denominator sdkmath.Int) (int64, error) {
	if numerator.IsNil() || denominator.IsNil() {
		return 0, ErrAmountNil
	}
	if !denominator.IsPositive() {
		return 0, ErrDenomNotPositive
	}
	ratio := numerator.MulRaw(BpsDenom).Quo(denominator)
	if !ratio.IsInt64() {
		return 0, fmt.Errorf("ratio overflows int64: %s", ratio.String())
	}
	return ratio.Int64(), nil
}

// ClampBps bounds v to [lo, hi].
func ClampBps(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
