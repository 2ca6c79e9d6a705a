package volatility

import (
	"fmt"
	"time"

	"github.com/adaptive-vault/aev/internal/types"
	"github.com/adaptive-vault/aev/internal/utils"
)

// Monitor tracks current and historical volatility and its rate of change.
// Pure state: nothing else is mutated, the scheduler only reads it.
// Volatility is integer basis points (7000 = 70%).
type Monitor struct {
	alphaBps int64
	state    types.VolatilityState
}

// NewMonitor creates a monitor with the given smoothing weight. alphaBps is
// the weight of the newest sample in the exponential moving average and must
// lie in (0, 10000].
func NewMonitor(alphaBps int64) (*Monitor, error) {
	if alphaBps <= 0 || alphaBps > utils.BpsDenom {
		return nil, fmt.Errorf("%w: smoothing alpha %d bps outside (0, 10000]",
			types.ErrInvalidParameter, alphaBps)
	}
	return &Monitor{alphaBps: alphaBps}, nil
}

// Record applies one feed sample. Timestamps must be monotone: a sample older
// than the last update is rejected with ErrStaleInput and nothing changes.
// Equal timestamps are accepted (idempotent feeds re-deliver).
func (m *Monitor) Record(sampleBps int64, timestamp time.Time) error {
	if sampleBps < 0 {
		return fmt.Errorf("%w: volatility sample %d bps is negative",
			types.ErrInvalidParameter, sampleBps)
	}
	if timestamp.IsZero() {
		return fmt.Errorf("%w: sample timestamp is zero", types.ErrInvalidParameter)
	}
	if m.state.HasSample() && timestamp.Before(m.state.LastUpdate) {
		return fmt.Errorf("%w: sample at %s predates last update %s",
			types.ErrStaleInput, timestamp.Format(time.RFC3339), m.state.LastUpdate.Format(time.RFC3339))
	}

	if !m.state.HasSample() {
		// First reading seeds the smoothed history directly.
		m.state = types.VolatilityState{
			CurrentBps:    sampleBps,
			HistoricalBps: sampleBps,
			LastUpdate:    timestamp,
		}
		return nil
	}

	deltaSeconds := int64(timestamp.Sub(m.state.LastUpdate) / time.Second)
	if deltaSeconds < 1 {
		deltaSeconds = 1
	}
	m.state.ChangeRate = (sampleBps - m.state.CurrentBps) / deltaSeconds

	// historical' = historical*(1-alpha) + current*alpha, truncating division
	m.state.HistoricalBps = (m.state.HistoricalBps*(utils.BpsDenom-m.alphaBps) +
		sampleBps*m.alphaBps) / utils.BpsDenom

	m.state.CurrentBps = sampleBps
	m.state.LastUpdate = timestamp
	return nil
}

// State returns a copy of the monitor's state.
func (m *Monitor) State() types.VolatilityState {
	return m.state
}
