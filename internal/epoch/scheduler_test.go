package epoch

import (
	"errors"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/adaptive-vault/aev/internal/types"
)

type stubVol struct {
	state types.VolatilityState
}

func (s *stubVol) State() types.VolatilityState { return s.state }

func testConfig() types.EpochConfig {
	return types.EpochConfig{
		BaseDuration:        86400 * time.Second,
		MinDuration:         21600 * time.Second,
		MaxDuration:         172800 * time.Second,
		LowVolThresholdBps:  2000, // 20%
		HighVolThresholdBps: 6000, // 60%
		SpeedMultiplierBps:  10000,
		FlashGuard:          time.Hour,
	}
}

func volAt(bps int64, ts time.Time) types.VolatilityState {
	return types.VolatilityState{CurrentBps: bps, HistoricalBps: bps, LastUpdate: ts}
}

func zeroTranches() types.TrancheState {
	return types.TrancheState{SeniorAssets: sdkmath.ZeroInt(), JuniorAssets: sdkmath.ZeroInt()}
}

func noopSettle(ep *types.Epoch) (types.SettlementResult, types.TrancheState, error) {
	return types.SettlementResult{EpochIndex: ep.Index}, zeroTranches(), nil
}

func TestCalculateOptimalDuration(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no_sample_uses_base", func(t *testing.T) {
		require.Equal(t, cfg.BaseDuration, CalculateOptimalDuration(types.VolatilityState{}, cfg))
	})

	t.Run("below_low_threshold_runs_max", func(t *testing.T) {
		require.Equal(t, cfg.MaxDuration, CalculateOptimalDuration(volAt(1500, now), cfg))
		require.Equal(t, cfg.MaxDuration, CalculateOptimalDuration(volAt(2000, now), cfg))
	})

	t.Run("above_high_threshold_clamps_to_min", func(t *testing.T) {
		// Scenario: base 86400s, low 20%, high 60%, current 70%.
		require.Equal(t, cfg.MinDuration, CalculateOptimalDuration(volAt(7000, now), cfg))
		require.Equal(t, cfg.MinDuration, CalculateOptimalDuration(volAt(6000, now), cfg))
	})

	t.Run("midband_interpolates", func(t *testing.T) {
		// Halfway through the band lands halfway through the duration window.
		got := CalculateOptimalDuration(volAt(4000, now), cfg)
		want := cfg.MaxDuration - (cfg.MaxDuration-cfg.MinDuration)/2
		require.Equal(t, want, got)
	})

	t.Run("monotone_in_volatility", func(t *testing.T) {
		prev := CalculateOptimalDuration(volAt(0, now), cfg)
		for v := int64(500); v <= 8000; v += 500 {
			cur := CalculateOptimalDuration(volAt(v, now), cfg)
			require.LessOrEqual(t, cur, prev, "duration increased at %d bps", v)
			require.GreaterOrEqual(t, cur, cfg.MinDuration)
			require.LessOrEqual(t, cur, cfg.MaxDuration)
			prev = cur
		}
	})

	t.Run("speed_multiplier_steepens", func(t *testing.T) {
		fast := cfg
		fast.SpeedMultiplierBps = 20000
		slow := CalculateOptimalDuration(volAt(3000, now), cfg)
		quick := CalculateOptimalDuration(volAt(3000, now), fast)
		require.Less(t, quick, slow)
	})
}

func TestSchedulerAdvance(t *testing.T) {
	cfg := testConfig()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("not_ready_before_end_time", func(t *testing.T) {
		vol := &stubVol{state: volAt(3000, start)}
		s, err := NewScheduler(cfg, vol, zeroTranches(), start)
		require.NoError(t, err)

		_, err = s.TryAdvance(start.Add(time.Minute), noopSettle)
		require.ErrorIs(t, err, types.ErrEpochNotReady)
		require.Equal(t, types.EpochActive, s.CurrentEpoch().State)
	})

	t.Run("advance_at_end_time", func(t *testing.T) {
		vol := &stubVol{} // no sample: genesis runs at base duration
		s, err := NewScheduler(cfg, vol, zeroTranches(), start)
		require.NoError(t, err)

		endsAt := start.Add(cfg.BaseDuration)
		settled, err := s.TryAdvance(endsAt, noopSettle)
		require.NoError(t, err)
		require.Equal(t, uint64(1), settled.Index)
		require.Equal(t, types.EpochSettled, settled.State)

		cur := s.CurrentEpoch()
		require.Equal(t, uint64(2), cur.Index)
		require.Equal(t, types.EpochActive, cur.State)
		require.Equal(t, endsAt, cur.StartTime)
	})

	t.Run("settlement_error_keeps_epoch_active", func(t *testing.T) {
		vol := &stubVol{}
		s, err := NewScheduler(cfg, vol, zeroTranches(), start)
		require.NoError(t, err)

		boom := errors.New("waterfall refused")
		_, err = s.TryAdvance(start.Add(cfg.BaseDuration), func(*types.Epoch) (types.SettlementResult, types.TrancheState, error) {
			return types.SettlementResult{}, types.TrancheState{}, boom
		})
		require.ErrorIs(t, err, boom)
		require.Equal(t, types.EpochActive, s.CurrentEpoch().State)
		require.Equal(t, 1, s.EpochCount())
	})

	t.Run("concurrent_cranks_one_winner", func(t *testing.T) {
		vol := &stubVol{}
		s, err := NewScheduler(cfg, vol, zeroTranches(), start)
		require.NoError(t, err)

		now := start.Add(cfg.BaseDuration)
		var wg sync.WaitGroup
		results := make(chan error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.TryAdvance(now, noopSettle)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var wins, losses int
		for err := range results {
			if err == nil {
				wins++
				continue
			}
			require.True(t,
				errors.Is(err, types.ErrAlreadySettled) || errors.Is(err, types.ErrEpochNotReady),
				"unexpected error: %v", err)
			losses++
		}
		require.Equal(t, 1, wins)
		require.Equal(t, 15, losses)
		require.Equal(t, 2, s.EpochCount())
	})
}

func TestFlashTrigger(t *testing.T) {
	cfg := testConfig()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("fires_at_high_volatility_after_guard", func(t *testing.T) {
		vol := &stubVol{state: volAt(7000, start)}
		s, err := NewScheduler(cfg, vol, zeroTranches(), start)
		require.NoError(t, err)

		at := start.Add(2 * time.Hour) // past the one hour guard
		require.True(t, s.CheckFlashTrigger(at))

		cur := s.CurrentEpoch()
		require.True(t, cur.FlashTriggered)
		require.True(t, !cur.EndTime.After(at), "end time %s not pulled to %s", cur.EndTime, at)
	})

	t.Run("guard_suppresses_early_fire", func(t *testing.T) {
		vol := &stubVol{state: volAt(7000, start)}
		s, err := NewScheduler(cfg, vol, zeroTranches(), start)
		require.NoError(t, err)

		require.False(t, s.CheckFlashTrigger(start.Add(30*time.Minute)))
		require.False(t, s.CurrentEpoch().FlashTriggered)
	})

	t.Run("below_threshold_never_fires", func(t *testing.T) {
		vol := &stubVol{state: volAt(5999, start)}
		s, err := NewScheduler(cfg, vol, zeroTranches(), start)
		require.NoError(t, err)

		require.False(t, s.CheckFlashTrigger(start.Add(3*time.Hour)))
	})

	t.Run("flash_permits_early_advance", func(t *testing.T) {
		vol := &stubVol{state: volAt(3000, start)}
		s, err := NewScheduler(cfg, vol, zeroTranches(), start)
		require.NoError(t, err)

		// Volatility spikes mid-epoch.
		vol.state = volAt(7000, start.Add(2*time.Hour))
		settled, err := s.TryAdvance(start.Add(2*time.Hour), noopSettle)
		require.NoError(t, err)
		require.True(t, settled.FlashTriggered)

		// The replacement epoch runs at min duration while volatility stays high.
		cur := s.CurrentEpoch()
		require.Equal(t, cfg.MinDuration, cur.EndTime.Sub(cur.StartTime))
	})
}

func TestNewSchedulerValidation(t *testing.T) {
	bad := testConfig()
	bad.LowVolThresholdBps = 7000 // above high
	_, err := NewScheduler(bad, &stubVol{}, zeroTranches(), time.Now())
	require.ErrorIs(t, err, types.ErrInvalidParameter)
}
