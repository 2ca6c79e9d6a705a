package volatility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adaptive-vault/aev/internal/types"
)

func TestMonitorRecord(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("first_sample_seeds_history", func(t *testing.T) {
		m, err := NewMonitor(2000)
		require.NoError(t, err)

		require.NoError(t, m.Record(4000, base))

		st := m.State()
		require.Equal(t, int64(4000), st.CurrentBps)
		require.Equal(t, int64(4000), st.HistoricalBps)
		require.Equal(t, int64(0), st.ChangeRate)
		require.True(t, st.HasSample())
	})

	t.Run("exponential_smoothing", func(t *testing.T) {
		m, err := NewMonitor(2000) // alpha = 0.2
		require.NoError(t, err)

		require.NoError(t, m.Record(4000, base))
		require.NoError(t, m.Record(6000, base.Add(10*time.Second)))

		st := m.State()
		require.Equal(t, int64(6000), st.CurrentBps)
		// 4000*0.8 + 6000*0.2 = 4400
		require.Equal(t, int64(4400), st.HistoricalBps)
		// (6000-4000)/10s = 200 bps/s
		require.Equal(t, int64(200), st.ChangeRate)
	})

	t.Run("sub_second_delta_floors_to_one", func(t *testing.T) {
		m, err := NewMonitor(1000)
		require.NoError(t, err)

		require.NoError(t, m.Record(1000, base))
		require.NoError(t, m.Record(1500, base.Add(200*time.Millisecond)))
		require.Equal(t, int64(500), m.State().ChangeRate)
	})

	t.Run("stale_timestamp_rejected", func(t *testing.T) {
		m, err := NewMonitor(2000)
		require.NoError(t, err)

		require.NoError(t, m.Record(4000, base))
		err = m.Record(5000, base.Add(-time.Second))
		require.ErrorIs(t, err, types.ErrStaleInput)

		// Rejected sample changed nothing.
		st := m.State()
		require.Equal(t, int64(4000), st.CurrentBps)
		require.Equal(t, base, st.LastUpdate)
	})

	t.Run("equal_timestamp_accepted", func(t *testing.T) {
		m, err := NewMonitor(2000)
		require.NoError(t, err)

		require.NoError(t, m.Record(4000, base))
		require.NoError(t, m.Record(4200, base))
		require.Equal(t, int64(4200), m.State().CurrentBps)
	})

	t.Run("negative_sample_rejected", func(t *testing.T) {
		m, err := NewMonitor(2000)
		require.NoError(t, err)
		require.ErrorIs(t, m.Record(-1, base), types.ErrInvalidParameter)
	})
}

func TestNewMonitorValidation(t *testing.T) {
	_, err := NewMonitor(0)
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	_, err = NewMonitor(10001)
	require.ErrorIs(t, err, types.ErrInvalidParameter)

	_, err = NewMonitor(10000)
	require.NoError(t, err)
}
