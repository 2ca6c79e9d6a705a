/*

This file contains the types for the volatility monitor. Volatility is carried
as integer basis points (7000 = 70% annualized) so the whole engine stays in
fixed-point arithmetic.

*/

package types

import "time"

// VolatilityState is the monitor's full state: the latest sample, the
// exponentially smoothed history, and the rate of change between the last two
// samples.
type VolatilityState struct {
	CurrentBps    int64     `json:"current_bps"`
	HistoricalBps int64     `json:"historical_bps"` // exponentially smoothed
	LastUpdate    time.Time `json:"last_update"`
	ChangeRate    int64     `json:"change_rate"` // bps per second between the last two samples
}

// HasSample reports whether at least one reading has been recorded. Before
// the first sample the scheduler falls back to the configured base duration.
func (v VolatilityState) HasSample() bool {
	return !v.LastUpdate.IsZero()
}
