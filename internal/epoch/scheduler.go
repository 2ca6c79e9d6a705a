package epoch

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adaptive-vault/aev/internal/logger"
	"github.com/adaptive-vault/aev/internal/types"
	"github.com/adaptive-vault/aev/internal/utils"
)

// VolatilityReader is the read-only view the scheduler has of the monitor.
type VolatilityReader interface {
	State() types.VolatilityState
}

// SettleFunc runs the ledger settlement for the epoch being closed. It
// returns the waterfall result and the tranche state the next epoch opens
// with. An error aborts the advance and leaves the epoch active.
type SettleFunc func(ep *types.Epoch) (types.SettlementResult, types.TrancheState, error)

// Scheduler owns the epoch lifecycle: the append-only epoch log, the adaptive
// duration calculation, and the advance transition. The most recent log entry
// is the current epoch.
type Scheduler struct {
	cfg    types.EpochConfig
	vol    VolatilityReader
	logger zerolog.Logger

	mu     sync.Mutex
	epochs []*types.Epoch
}

// NewScheduler validates the config and opens the genesis epoch at now.
// Before any volatility sample arrives the genesis epoch runs at the base
// duration.
func NewScheduler(cfg types.EpochConfig, vol VolatilityReader, initial types.TrancheState, now time.Time) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidParameter, err)
	}
	if vol == nil {
		return nil, fmt.Errorf("%w: volatility reader cannot be nil", types.ErrInvalidParameter)
	}

	s := &Scheduler{
		cfg:    cfg,
		vol:    vol,
		logger: logger.GetForComponent("epoch_scheduler"),
	}
	genesis := &types.Epoch{
		Index:               1,
		StartTime:           now,
		EndTime:             now.Add(CalculateOptimalDuration(vol.State(), cfg)),
		State:               types.EpochActive,
		SeniorAssetsAtStart: initial.SeniorAssets,
		JuniorAssetsAtStart: initial.JuniorAssets,
	}
	s.epochs = append(s.epochs, genesis)

	s.logger.Info().
		Uint64("epoch", genesis.Index).
		Time("endTime", genesis.EndTime).
		Msg("Genesis epoch opened")
	return s, nil
}

// CalculateOptimalDuration maps the current volatility reading onto the
// configured duration band. At or below the low threshold epochs run at
// MaxDuration; at or above the high threshold they run at MinDuration; in
// between the duration interpolates linearly, steepened by the speed
// multiplier. The result is always clamped to [MinDuration, MaxDuration] and
// is monotone: higher volatility never yields a longer epoch.
func CalculateOptimalDuration(vol types.VolatilityState, cfg types.EpochConfig) time.Duration {
	if !vol.HasSample() {
		// No reading yet is a recoverable condition, not an error.
		return cfg.BaseDuration
	}

	v := vol.CurrentBps
	if v <= cfg.LowVolThresholdBps {
		return cfg.MaxDuration
	}
	if v >= cfg.HighVolThresholdBps {
		return cfg.MinDuration
	}

	span := cfg.HighVolThresholdBps - cfg.LowVolThresholdBps
	fracBps := (v - cfg.LowVolThresholdBps) * utils.BpsDenom / span
	fracBps = fracBps * cfg.SpeedMultiplierBps / utils.BpsDenom
	fracBps = utils.ClampBps(fracBps, 0, utils.BpsDenom)

	window := int64(cfg.MaxDuration - cfg.MinDuration)
	dur := cfg.MaxDuration - time.Duration(window*fracBps/utils.BpsDenom)

	if dur < cfg.MinDuration {
		dur = cfg.MinDuration
	}
	if dur > cfg.MaxDuration {
		dur = cfg.MaxDuration
	}
	return dur
}

// CheckFlashTrigger fires when current volatility has reached the high
// threshold and the epoch has been running longer than the flash guard. When
// it fires the active epoch's end time is pulled forward to now; this is the
// only revision an epoch's end time ever sees.
func (s *Scheduler) CheckFlashTrigger(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flashTriggerLocked(now)
}

func (s *Scheduler) flashTriggerLocked(now time.Time) bool {
	cur := s.epochs[len(s.epochs)-1]
	if cur.State != types.EpochActive {
		return false
	}
	if s.vol.State().CurrentBps < s.cfg.HighVolThresholdBps {
		return false
	}
	if now.Sub(cur.StartTime) <= s.cfg.FlashGuard {
		// Guard against thrashing right after an epoch opens.
		return false
	}
	if now.Before(cur.EndTime) {
		cur.EndTime = now
		cur.FlashTriggered = true
		s.logger.Warn().
			Uint64("epoch", cur.Index).
			Int64("volatilityBps", s.vol.State().CurrentBps).
			Time("newEndTime", now).
			Msg("Flash trigger fired, epoch end pulled forward")
	}
	return true
}

// TryAdvance runs the Active -> Settling -> Settled transition and opens the
// next epoch. Exactly one concurrent caller wins: the state check under the
// lock is the check-and-set guard, losers observe ErrAlreadySettled (mid
// settlement) or ErrEpochNotReady (the new epoch is already running). A
// settlement error reverts the epoch to Active so the caller can retry after
// remediation.
func (s *Scheduler) TryAdvance(now time.Time, settle SettleFunc) (types.Epoch, error) {
	if settle == nil {
		return types.Epoch{}, fmt.Errorf("%w: settle function cannot be nil", types.ErrInvalidParameter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.epochs[len(s.epochs)-1]
	switch cur.State {
	case types.EpochActive:
		// fall through to the due-time check
	case types.EpochSettling:
		return types.Epoch{}, fmt.Errorf("%w: epoch %d is settling", types.ErrAlreadySettled, cur.Index)
	default:
		return types.Epoch{}, fmt.Errorf("%w: epoch %d", types.ErrAlreadySettled, cur.Index)
	}

	if now.Before(cur.EndTime) && !s.flashTriggerLocked(now) {
		return types.Epoch{}, fmt.Errorf("%w: epoch %d ends at %s",
			types.ErrEpochNotReady, cur.Index, cur.EndTime.Format(time.RFC3339))
	}

	cur.State = types.EpochSettling
	result, after, err := settle(cur)
	if err != nil {
		cur.State = types.EpochActive
		s.logger.Error().Err(err).Uint64("epoch", cur.Index).Msg("Settlement failed, epoch remains active")
		return types.Epoch{}, err
	}

	cur.RealizedReturnBps = result.RealizedReturnBps
	cur.State = types.EpochSettled

	next := &types.Epoch{
		Index:               cur.Index + 1,
		StartTime:           now,
		EndTime:             now.Add(CalculateOptimalDuration(s.vol.State(), s.cfg)),
		State:               types.EpochActive,
		SeniorAssetsAtStart: after.SeniorAssets,
		JuniorAssetsAtStart: after.JuniorAssets,
	}
	s.epochs = append(s.epochs, next)

	s.logger.Info().
		Uint64("settledEpoch", cur.Index).
		Int64("realizedReturnBps", cur.RealizedReturnBps).
		Uint64("nextEpoch", next.Index).
		Time("nextEndTime", next.EndTime).
		Msg("Epoch advanced")

	return *cur, nil
}

// CurrentEpoch returns a copy of the most recent epoch record.
func (s *Scheduler) CurrentEpoch() types.Epoch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.epochs[len(s.epochs)-1]
}

// EpochCount returns the length of the epoch log.
func (s *Scheduler) EpochCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.epochs)
}

// Config returns the scheduler's epoch configuration.
func (s *Scheduler) Config() types.EpochConfig {
	return s.cfg
}
