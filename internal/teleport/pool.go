package teleport

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/adaptive-vault/aev/internal/logger"
	"github.com/adaptive-vault/aev/internal/types"
	"github.com/adaptive-vault/aev/internal/utils"
)

// Pool advances cash against forecast future junior yield and issues
// transferable notes. The junior yield buffer accrues at every settlement;
// advances are admitted only up to the buffer haircut by the exogenous
// default rate, so the pool never promises more than the buffer can
// plausibly cover.
type Pool struct {
	logger zerolog.Logger
	params types.EngineParameters

	buffer           sdkmath.Int // junior yield accrued and not yet claimed
	totalAdvanced    sdkmath.Int
	totalOutstanding sdkmath.Int // principal + expected yield not yet released
	defaultRateBps   int64
	currentEpoch     uint64

	notes  map[uint64]*types.YieldNote
	order  []uint64
	nextID uint64
}

// NewPool validates the option table and returns an empty pool.
func NewPool(params types.EngineParameters, currentEpoch uint64) (*Pool, error) {
	if len(params.TeleportOptions) == 0 {
		return nil, fmt.Errorf("%w: teleport option table is empty", types.ErrInvalidParameter)
	}
	for i, opt := range params.TeleportOptions {
		if opt.Epochs < 1 || opt.YieldRateBps <= 0 || opt.CollateralRatioBps <= 0 {
			return nil, fmt.Errorf("%w: option table row %d is malformed", types.ErrInvalidParameter, i)
		}
		if i == 0 {
			continue
		}
		prev := params.TeleportOptions[i-1]
		if opt.Epochs <= prev.Epochs {
			return nil, fmt.Errorf("%w: option table epochs must be strictly increasing", types.ErrInvalidParameter)
		}
		// Longer commitments carry higher rates and lower collateral ratios.
		if opt.YieldRateBps < prev.YieldRateBps || opt.CollateralRatioBps > prev.CollateralRatioBps {
			return nil, fmt.Errorf("%w: option table must be monotone in duration", types.ErrInvalidParameter)
		}
	}
	if params.TeleportDefaultRateBps < 0 || params.TeleportDefaultRateBps >= utils.BpsDenom {
		return nil, fmt.Errorf("%w: default rate %d bps outside [0, 10000)",
			types.ErrInvalidParameter, params.TeleportDefaultRateBps)
	}

	return &Pool{
		logger:           logger.GetForComponent("teleport_pool"),
		params:           params,
		buffer:           sdkmath.ZeroInt(),
		totalAdvanced:    sdkmath.ZeroInt(),
		totalOutstanding: sdkmath.ZeroInt(),
		defaultRateBps:   params.TeleportDefaultRateBps,
		currentEpoch:     currentEpoch,
		notes:            make(map[uint64]*types.YieldNote),
	}, nil
}

// option resolves the duration-keyed table row: a step lookup on the highest
// row at or below the requested commitment.
func (p *Pool) option(epochs int) (types.AdvanceOption, error) {
	if epochs < p.params.TeleportOptions[0].Epochs {
		return types.AdvanceOption{}, fmt.Errorf("%w: commitment of %d epochs below table minimum %d",
			types.ErrInvalidParameter, epochs, p.params.TeleportOptions[0].Epochs)
	}
	row := p.params.TeleportOptions[0]
	for _, opt := range p.params.TeleportOptions {
		if opt.Epochs > epochs {
			break
		}
		row = opt
	}
	return row, nil
}

// AvailableAdvance is the buffer haircut by the default rate, minus what is
// already outstanding, floored at zero.
func (p *Pool) AvailableAdvance() sdkmath.Int {
	covered, err := utils.MulBpsFloor(p.buffer, utils.BpsDenom-p.defaultRateBps)
	if err != nil {
		return sdkmath.ZeroInt()
	}
	available := covered.Sub(p.totalOutstanding)
	if available.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return available
}

// AdvanceYield admits an advance of amount against epochs of future junior
// yield and issues the note. Outstanding grows by principal plus the full
// expected yield, which is what the buffer must eventually release.
func (p *Pool) AdvanceYield(owner string, epochs int, amount sdkmath.Int, now time.Time) (types.YieldNote, error) {
	if owner == "" {
		return types.YieldNote{}, fmt.Errorf("%w: owner cannot be empty", types.ErrInvalidParameter)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return types.YieldNote{}, fmt.Errorf("%w: advance amount must be positive", types.ErrInvalidParameter)
	}
	opt, err := p.option(epochs)
	if err != nil {
		return types.YieldNote{}, err
	}

	// Yield owed to the note holder rounds down in the pool's favor.
	expectedYield := amount.MulRaw(opt.YieldRateBps).MulRaw(int64(epochs)).QuoRaw(utils.BpsDenom)

	// Admission counts the full commitment, principal plus expected yield,
	// so outstanding never exceeds the haircut buffer.
	available := p.AvailableAdvance()
	if amount.Add(expectedYield).GT(available) {
		return types.YieldNote{}, fmt.Errorf("%w: commitment %s exceeds available %s",
			types.ErrInsufficientLiquidity, amount.Add(expectedYield).String(), available.String())
	}
	maxPrincipal, err := utils.MulBpsFloor(available, opt.CollateralRatioBps)
	if err != nil {
		return types.YieldNote{}, fmt.Errorf("collateral cap calculation failed: %w", err)
	}
	if amount.GT(maxPrincipal) {
		return types.YieldNote{}, fmt.Errorf("%w: advance %s exceeds collateral cap %s for %d epochs",
			types.ErrInsufficientLiquidity, amount.String(), maxPrincipal.String(), epochs)
	}

	p.nextID++
	note := &types.YieldNote{
		TokenID:            p.nextID,
		Owner:              owner,
		Notional:           amount,
		FutureEpochs:       epochs,
		IssuedAtEpoch:      p.currentEpoch,
		MaturityEpoch:      p.currentEpoch + uint64(epochs),
		YieldRateBps:       opt.YieldRateBps,
		TotalExpectedYield: expectedYield,
		RemainingClaims:    epochs,
		ClaimedYield:       sdkmath.ZeroInt(),
		IsActive:           true,
		IssuedAt:           now,
	}
	p.notes[note.TokenID] = note
	p.order = append(p.order, note.TokenID)

	p.totalAdvanced = p.totalAdvanced.Add(amount)
	p.totalOutstanding = p.totalOutstanding.Add(amount).Add(expectedYield)

	p.logger.Info().
		Uint64("note", note.TokenID).
		Str("owner", owner).
		Int("epochs", epochs).
		Str("amount", amount.String()).
		Int64("yieldRateBps", opt.YieldRateBps).
		Str("expectedYield", expectedYield.String()).
		Msg("Yield advance issued")

	return *note, nil
}

// noteValue is the full amount a note will release over its life.
func noteValue(n *types.YieldNote) sdkmath.Int {
	return n.Notional.Add(n.TotalExpectedYield)
}

// RedeemNote releases one claim of a matured note: the unreleased value
// pro-rated by the remaining claims, the final claim sweeping the rounding
// remainder. The note deactivates when its last claim is taken.
func (p *Pool) RedeemNote(owner string, tokenID uint64) (sdkmath.Int, error) {
	note, ok := p.notes[tokenID]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: note %d not found", types.ErrNotEligible, tokenID)
	}
	if note.Owner != owner {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: note %d", types.ErrNotOwner, tokenID)
	}
	if !note.IsActive {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: note %d is closed", types.ErrNotEligible, tokenID)
	}
	if p.currentEpoch < note.MaturityEpoch {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: note %d matures at epoch %d, current %d",
			types.ErrNotMatured, tokenID, note.MaturityEpoch, p.currentEpoch)
	}

	remainingValue := noteValue(note).Sub(note.ClaimedYield)
	var release sdkmath.Int
	if note.RemainingClaims <= 1 {
		release = remainingValue
	} else {
		release = remainingValue.QuoRaw(int64(note.RemainingClaims))
	}

	note.ClaimedYield = note.ClaimedYield.Add(release)
	note.RemainingClaims--
	if note.RemainingClaims <= 0 {
		note.IsActive = false
	}
	p.totalOutstanding = p.totalOutstanding.Sub(release)
	p.buffer = p.buffer.Sub(release)

	p.logger.Info().
		Uint64("note", tokenID).
		Str("release", release.String()).
		Int("remainingClaims", note.RemainingClaims).
		Msg("Note redeemed")

	return release, nil
}

// EarlyRedeem releases part of a note before maturity at a fixed haircut.
// The haircut rounds up against the holder and stays in the buffer; the
// remaining claims shrink in proportion to the value taken.
func (p *Pool) EarlyRedeem(owner string, tokenID uint64, partialAmount sdkmath.Int) (sdkmath.Int, error) {
	note, ok := p.notes[tokenID]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: note %d not found", types.ErrNotEligible, tokenID)
	}
	if note.Owner != owner {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: note %d", types.ErrNotOwner, tokenID)
	}
	if !note.IsActive {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: note %d is closed", types.ErrNotEligible, tokenID)
	}
	if p.currentEpoch >= note.MaturityEpoch {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: note %d is matured, redeem it instead",
			types.ErrNotEligible, tokenID)
	}
	if partialAmount.IsNil() || !partialAmount.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: partial amount must be positive", types.ErrInvalidParameter)
	}
	remainingValue := noteValue(note).Sub(note.ClaimedYield)
	if partialAmount.GT(remainingValue) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: partial amount %s exceeds remaining value %s",
			types.ErrInvalidParameter, partialAmount.String(), remainingValue.String())
	}

	haircut, err := utils.MulBpsCeil(partialAmount, p.params.TeleportEarlyHaircutBps)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("haircut calculation failed: %w", err)
	}
	payout := partialAmount.Sub(haircut)

	note.ClaimedYield = note.ClaimedYield.Add(partialAmount)
	p.totalOutstanding = p.totalOutstanding.Sub(partialAmount)
	p.buffer = p.buffer.Sub(payout)

	// Shrink claims in proportion to the value consumed, rounding down but
	// never below one while value remains.
	valueLeft := remainingValue.Sub(partialAmount)
	if valueLeft.IsZero() {
		note.RemainingClaims = 0
		note.IsActive = false
	} else {
		claims := int(valueLeft.MulRaw(int64(note.FutureEpochs)).Quo(noteValue(note)).Int64())
		if claims < 1 {
			claims = 1
		}
		if claims < note.RemainingClaims {
			note.RemainingClaims = claims
		}
	}

	p.logger.Info().
		Uint64("note", tokenID).
		Str("partial", partialAmount.String()).
		Str("haircut", haircut.String()).
		Str("payout", payout.String()).
		Int("remainingClaims", note.RemainingClaims).
		Msg("Note redeemed early")

	return payout, nil
}

// TransferNote reassigns ownership: a pure field rewrite, the note itself
// never moves.
func (p *Pool) TransferNote(owner string, tokenID uint64, newOwner string) error {
	if newOwner == "" {
		return fmt.Errorf("%w: new owner cannot be empty", types.ErrInvalidParameter)
	}
	note, ok := p.notes[tokenID]
	if !ok {
		return fmt.Errorf("%w: note %d not found", types.ErrNotEligible, tokenID)
	}
	if note.Owner != owner {
		return fmt.Errorf("%w: note %d", types.ErrNotOwner, tokenID)
	}
	note.Owner = newOwner

	p.logger.Info().
		Uint64("note", tokenID).
		Str("from", owner).
		Str("to", newOwner).
		Msg("Note transferred")
	return nil
}

// AccrueBuffer adds the junior-yield settlement contribution to the buffer.
func (p *Pool) AccrueBuffer(amount sdkmath.Int) {
	if amount.IsNil() || !amount.IsPositive() {
		return
	}
	p.buffer = p.buffer.Add(amount)
}

// SetDefaultRate updates the exogenous default-risk haircut.
func (p *Pool) SetDefaultRate(bps int64) error {
	if bps < 0 || bps >= utils.BpsDenom {
		return fmt.Errorf("%w: default rate %d bps outside [0, 10000)", types.ErrInvalidParameter, bps)
	}
	p.defaultRateBps = bps
	return nil
}

// AdvanceEpoch moves the pool's epoch cursor forward. Called inside the
// settlement transaction after the ledger waterfall.
func (p *Pool) AdvanceEpoch() {
	p.currentEpoch++
}

// Note returns a copy of one note.
func (p *Pool) Note(tokenID uint64) (types.YieldNote, bool) {
	note, ok := p.notes[tokenID]
	if !ok {
		return types.YieldNote{}, false
	}
	return *note, true
}

// Notes returns copies of every note in issue order.
func (p *Pool) Notes() []types.YieldNote {
	out := make([]types.YieldNote, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.notes[id])
	}
	return out
}

// State returns the pool snapshot.
func (p *Pool) State() types.TeleportPoolState {
	active := 0
	for _, id := range p.order {
		if p.notes[id].IsActive {
			active++
		}
	}
	return types.TeleportPoolState{
		TotalAdvanced:     p.totalAdvanced,
		TotalOutstanding:  p.totalOutstanding,
		AvailableAdvance:  p.AvailableAdvance(),
		JuniorYieldBuffer: p.buffer,
		DefaultRateBps:    p.defaultRateBps,
		ActiveNotes:       active,
		CurrentEpoch:      p.currentEpoch,
	}
}
