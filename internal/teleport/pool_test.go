package teleport

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/adaptive-vault/aev/internal/types"
)

func teleportParams() types.EngineParameters {
	return types.EngineParameters{
		TeleportOptions: []types.AdvanceOption{
			{Epochs: 4, YieldRateBps: 300, CollateralRatioBps: 8000},
			{Epochs: 8, YieldRateBps: 400, CollateralRatioBps: 6000},
			{Epochs: 16, YieldRateBps: 500, CollateralRatioBps: 5000},
		},
		TeleportDefaultRateBps:  1000, // 10% haircut
		TeleportEarlyHaircutBps: 1000, // 10% early exit penalty
	}
}

func amt(v int64) sdkmath.Int { return sdkmath.NewInt(v) }

var issueTime = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func fundedPool(t *testing.T, buffer int64) *Pool {
	t.Helper()
	p, err := NewPool(teleportParams(), 1)
	require.NoError(t, err)
	p.AccrueBuffer(amt(buffer))
	return p
}

func TestAdvanceYield(t *testing.T) {
	t.Run("issues_note_from_option_table", func(t *testing.T) {
		p := fundedPool(t, 1000000)

		note, err := p.AdvanceYield("alice", 4, amt(100000), issueTime)
		require.NoError(t, err)

		require.Equal(t, uint64(1), note.TokenID)
		require.Equal(t, int64(300), note.YieldRateBps)
		require.Equal(t, uint64(5), note.MaturityEpoch) // issued at epoch 1 + 4
		// 100000 * 300bps * 4 epochs = 12000
		require.Equal(t, amt(12000), note.TotalExpectedYield)
		require.Equal(t, 4, note.RemainingClaims)

		st := p.State()
		require.Equal(t, amt(100000), st.TotalAdvanced)
		require.Equal(t, amt(112000), st.TotalOutstanding)
	})

	t.Run("step_lookup_between_rows", func(t *testing.T) {
		p := fundedPool(t, 1000000)
		note, err := p.AdvanceYield("alice", 10, amt(10000), issueTime)
		require.NoError(t, err)
		require.Equal(t, int64(400), note.YieldRateBps) // 8-epoch row applies
	})

	t.Run("commitment_below_table_minimum_rejected", func(t *testing.T) {
		p := fundedPool(t, 1000000)
		_, err := p.AdvanceYield("alice", 2, amt(10000), issueTime)
		require.ErrorIs(t, err, types.ErrInvalidParameter)
	})

	t.Run("insufficient_liquidity", func(t *testing.T) {
		p := fundedPool(t, 10000) // available = 9000 after haircut
		_, err := p.AdvanceYield("alice", 4, amt(9000), issueTime)
		require.ErrorIs(t, err, types.ErrInsufficientLiquidity)
		require.True(t, p.State().TotalOutstanding.IsZero())
	})

	t.Run("longer_commitments_capped_tighter", func(t *testing.T) {
		p := fundedPool(t, 100000) // available 90000
		// 16-epoch row collateral ratio 50%: principal above 45000 refused.
		_, err := p.AdvanceYield("alice", 16, amt(46000), issueTime)
		require.ErrorIs(t, err, types.ErrInsufficientLiquidity)
		_, err = p.AdvanceYield("alice", 16, amt(40000), issueTime)
		require.NoError(t, err)
	})

	t.Run("outstanding_never_exceeds_haircut_buffer", func(t *testing.T) {
		p := fundedPool(t, 500000) // available = 450000
		for i := 0; i < 10; i++ {
			_, err := p.AdvanceYield("alice", 4, amt(40000), issueTime)
			if err != nil {
				require.ErrorIs(t, err, types.ErrInsufficientLiquidity)
				break
			}
		}
		st := p.State()
		require.True(t, st.TotalOutstanding.LTE(amt(450000)),
			"outstanding %s exceeds haircut buffer", st.TotalOutstanding)
	})
}

func TestRedeemNote(t *testing.T) {
	t.Run("not_matured", func(t *testing.T) {
		p := fundedPool(t, 1000000)
		note, err := p.AdvanceYield("alice", 4, amt(100000), issueTime)
		require.NoError(t, err)

		_, err = p.RedeemNote("alice", note.TokenID)
		require.ErrorIs(t, err, types.ErrNotMatured)
	})

	t.Run("full_redemption_over_claims", func(t *testing.T) {
		p := fundedPool(t, 1000000)
		note, err := p.AdvanceYield("alice", 4, amt(100000), issueTime)
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			p.AdvanceEpoch()
		}

		total := sdkmath.ZeroInt()
		for i := 0; i < 4; i++ {
			release, err := p.RedeemNote("alice", note.TokenID)
			require.NoError(t, err)
			total = total.Add(release)
		}

		// All four claims together release principal + expected yield exactly.
		require.Equal(t, amt(112000), total)

		got, ok := p.Note(note.TokenID)
		require.True(t, ok)
		require.False(t, got.IsActive)
		require.Equal(t, 0, got.RemainingClaims)
		require.True(t, p.State().TotalOutstanding.IsZero())

		_, err = p.RedeemNote("alice", note.TokenID)
		require.ErrorIs(t, err, types.ErrNotEligible)
	})

	t.Run("not_owner", func(t *testing.T) {
		p := fundedPool(t, 1000000)
		note, err := p.AdvanceYield("alice", 4, amt(100000), issueTime)
		require.NoError(t, err)
		for i := 0; i < 4; i++ {
			p.AdvanceEpoch()
		}
		_, err = p.RedeemNote("mallory", note.TokenID)
		require.ErrorIs(t, err, types.ErrNotOwner)
	})
}

func TestEarlyRedeem(t *testing.T) {
	t.Run("haircut_applied", func(t *testing.T) {
		p := fundedPool(t, 1000000)
		note, err := p.AdvanceYield("alice", 4, amt(100000), issueTime)
		require.NoError(t, err)

		payout, err := p.EarlyRedeem("alice", note.TokenID, amt(20000))
		require.NoError(t, err)
		// 10% haircut rounds up against the holder: 20000 - 2000.
		require.Equal(t, amt(18000), payout)

		got, _ := p.Note(note.TokenID)
		require.Equal(t, amt(20000), got.ClaimedYield)
		require.Less(t, got.RemainingClaims, 4)
		require.Equal(t, amt(92000), p.State().TotalOutstanding)
	})

	t.Run("full_early_exit_closes_note", func(t *testing.T) {
		p := fundedPool(t, 1000000)
		note, err := p.AdvanceYield("alice", 4, amt(100000), issueTime)
		require.NoError(t, err)

		payout, err := p.EarlyRedeem("alice", note.TokenID, amt(112000))
		require.NoError(t, err)
		require.Equal(t, amt(100800), payout) // 112000 less 10% haircut

		got, _ := p.Note(note.TokenID)
		require.False(t, got.IsActive)
		require.True(t, p.State().TotalOutstanding.IsZero())
	})

	t.Run("matured_note_must_use_redeem", func(t *testing.T) {
		p := fundedPool(t, 1000000)
		note, err := p.AdvanceYield("alice", 4, amt(100000), issueTime)
		require.NoError(t, err)
		for i := 0; i < 4; i++ {
			p.AdvanceEpoch()
		}
		_, err = p.EarlyRedeem("alice", note.TokenID, amt(1000))
		require.ErrorIs(t, err, types.ErrNotEligible)
	})

	t.Run("partial_above_remaining_value_rejected", func(t *testing.T) {
		p := fundedPool(t, 1000000)
		note, err := p.AdvanceYield("alice", 4, amt(100000), issueTime)
		require.NoError(t, err)
		_, err = p.EarlyRedeem("alice", note.TokenID, amt(112001))
		require.ErrorIs(t, err, types.ErrInvalidParameter)
	})
}

func TestTransferNote(t *testing.T) {
	p := fundedPool(t, 1000000)
	note, err := p.AdvanceYield("alice", 4, amt(100000), issueTime)
	require.NoError(t, err)

	t.Run("only_owner_may_transfer", func(t *testing.T) {
		require.ErrorIs(t, p.TransferNote("mallory", note.TokenID, "carol"), types.ErrNotOwner)
	})

	t.Run("transfer_moves_the_claim", func(t *testing.T) {
		require.NoError(t, p.TransferNote("alice", note.TokenID, "bob"))

		for i := 0; i < 4; i++ {
			p.AdvanceEpoch()
		}
		_, err := p.RedeemNote("alice", note.TokenID)
		require.ErrorIs(t, err, types.ErrNotOwner)

		release, err := p.RedeemNote("bob", note.TokenID)
		require.NoError(t, err)
		require.True(t, release.IsPositive())
	})
}

func TestDefaultRateSizing(t *testing.T) {
	p := fundedPool(t, 100000)
	require.Equal(t, amt(90000), p.AvailableAdvance())

	require.NoError(t, p.SetDefaultRate(5000))
	require.Equal(t, amt(50000), p.AvailableAdvance())

	require.ErrorIs(t, p.SetDefaultRate(10000), types.ErrInvalidParameter)
}
