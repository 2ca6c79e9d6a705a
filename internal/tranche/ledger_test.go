package tranche

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/adaptive-vault/aev/internal/types"
)

type stubFees struct {
	rates types.FeeRates
}

func (s *stubFees) Rates() types.FeeRates { return s.rates }

func newTestLedger(t *testing.T, couponBps int64) *Ledger {
	t.Helper()
	l, err := NewLedger(&stubFees{rates: types.FeeRates{SeniorCouponBps: couponBps}})
	require.NoError(t, err)
	return l
}

func amt(v int64) sdkmath.Int { return sdkmath.NewInt(v) }

func TestDeposit(t *testing.T) {
	l := newTestLedger(t, 50)

	require.NoError(t, l.Deposit(amt(500000), types.TrancheSenior))
	require.NoError(t, l.Deposit(amt(250000), types.TrancheJunior))

	st := l.State()
	require.Equal(t, amt(500000), st.SeniorAssets)
	require.Equal(t, amt(250000), st.JuniorAssets)
	require.Equal(t, amt(750000), l.TotalDeposited())

	t.Run("rejects_non_positive_amounts", func(t *testing.T) {
		require.ErrorIs(t, l.Deposit(amt(0), types.TrancheSenior), types.ErrInvalidParameter)
		require.ErrorIs(t, l.Deposit(amt(-5), types.TrancheJunior), types.ErrInvalidParameter)
	})

	t.Run("rejects_unknown_tranche", func(t *testing.T) {
		require.ErrorIs(t, l.Deposit(amt(1), types.Tranche("MEZZANINE")), types.ErrInvalidParameter)
	})
}

func TestSettleEpochWaterfall(t *testing.T) {
	epoch := &types.Epoch{Index: 1}

	t.Run("gain_pays_coupon_then_junior", func(t *testing.T) {
		// senior=500000, junior=250000, coupon 50bps, pnl=+10000:
		// senior earns 2500, junior takes the remaining 7500.
		l := newTestLedger(t, 50)
		require.NoError(t, l.Deposit(amt(500000), types.TrancheSenior))
		require.NoError(t, l.Deposit(amt(250000), types.TrancheJunior))

		res, err := l.SettleEpoch(epoch, amt(10000))
		require.NoError(t, err)

		require.Equal(t, amt(2500), res.SeniorCoupon)
		require.Equal(t, amt(7500), res.JuniorDelta)
		require.Equal(t, amt(7500), res.JuniorYield)
		require.Nil(t, res.Drawdown)

		st := l.State()
		require.Equal(t, amt(502500), st.SeniorAssets)
		require.Equal(t, amt(257500), st.JuniorAssets)
		// (760000-750000)*10000/750000 = 133 bps truncated
		require.Equal(t, int64(133), res.RealizedReturnBps)
	})

	t.Run("loss_hits_junior_first", func(t *testing.T) {
		l := newTestLedger(t, 50)
		require.NoError(t, l.Deposit(amt(500000), types.TrancheSenior))
		require.NoError(t, l.Deposit(amt(250000), types.TrancheJunior))

		res, err := l.SettleEpoch(epoch, amt(-50000))
		require.NoError(t, err)

		st := l.State()
		// Senior still earns its coupon; junior absorbs loss + coupon.
		require.Equal(t, amt(502500), st.SeniorAssets)
		require.Equal(t, amt(250000-50000-2500), st.JuniorAssets)
		require.True(t, res.SpilloverToSenior.IsZero())
		require.NotNil(t, res.Drawdown)
		require.False(t, res.Drawdown.JuniorWipedOut)
	})

	t.Run("excess_loss_spills_to_senior", func(t *testing.T) {
		l := newTestLedger(t, 0)
		require.NoError(t, l.Deposit(amt(500000), types.TrancheSenior))
		require.NoError(t, l.Deposit(amt(100000), types.TrancheJunior))

		res, err := l.SettleEpoch(epoch, amt(-150000))
		require.NoError(t, err)

		st := l.State()
		require.True(t, st.JuniorAssets.IsZero())
		require.Equal(t, amt(450000), st.SeniorAssets)
		require.Equal(t, amt(50000), res.SpilloverToSenior)
		require.NotNil(t, res.Drawdown)
		require.True(t, res.Drawdown.JuniorWipedOut)
	})

	t.Run("loss_beyond_total_is_insolvent", func(t *testing.T) {
		l := newTestLedger(t, 0)
		require.NoError(t, l.Deposit(amt(100), types.TrancheSenior))
		require.NoError(t, l.Deposit(amt(100), types.TrancheJunior))

		_, err := l.SettleEpoch(epoch, amt(-201))
		require.ErrorIs(t, err, types.ErrInsolvent)

		// Failed settlement leaves balances untouched.
		st := l.State()
		require.Equal(t, amt(100), st.SeniorAssets)
		require.Equal(t, amt(100), st.JuniorAssets)
	})

	t.Run("drawdown_bps_matches_realized_loss", func(t *testing.T) {
		l := newTestLedger(t, 0)
		require.NoError(t, l.Deposit(amt(500000), types.TrancheSenior))
		require.NoError(t, l.Deposit(amt(500000), types.TrancheJunior))

		// 1.2% loss on 1000000
		res, err := l.SettleEpoch(epoch, amt(-12000))
		require.NoError(t, err)
		require.NotNil(t, res.Drawdown)
		require.Equal(t, int64(120), res.Drawdown.DrawdownBps)
		require.Equal(t, int64(-120), res.RealizedReturnBps)
	})
}

func TestConservation(t *testing.T) {
	// Over any sequence of deposits and settlements, senior+junior equals
	// deposits plus cumulative P&L.
	l := newTestLedger(t, 75)
	epoch := &types.Epoch{Index: 1}

	steps := []struct {
		deposit int64
		tranche types.Tranche
		pnl     int64
	}{
		{deposit: 300000, tranche: types.TrancheSenior},
		{deposit: 150000, tranche: types.TrancheJunior},
		{pnl: 12000},
		{pnl: -40000},
		{deposit: 50000, tranche: types.TrancheJunior},
		{pnl: -90000},
		{pnl: 7},
		{deposit: 1, tranche: types.TrancheSenior},
		{pnl: -1},
	}

	for i, step := range steps {
		if step.deposit != 0 {
			require.NoError(t, l.Deposit(amt(step.deposit), step.tranche), "step %d", i)
		} else {
			_, err := l.SettleEpoch(epoch, amt(step.pnl))
			require.NoError(t, err, "step %d", i)
		}

		st := l.State()
		require.False(t, st.SeniorAssets.IsNegative(), "step %d", i)
		require.False(t, st.JuniorAssets.IsNegative(), "step %d", i)

		expected := l.TotalDeposited().Add(l.CumulativePnL())
		require.Equal(t, expected, st.Total(), "conservation broken at step %d", i)
	}
}
