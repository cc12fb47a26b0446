package oracle

import (
	"errors"
	"fmt"

	"PegSentinel/internal/calculator"
	"PegSentinel/internal/hub"
	"PegSentinel/internal/model"
)

var (
	ErrBlockOrder       = fmt.Errorf("%w: blocks must advance in number and not go back in time", hub.ErrPrecondition)
	ErrUnknownOperation = fmt.Errorf("%w: unknown operation", hub.ErrPrecondition)
	ErrInvalidConfig    = errors.New("invalid oracle config")
)

// Config holds the driver cadence and the fixed amounts used per block.
type Config struct {
	RewardInterval   int64 `json:"reward_interval"`    // accrue rewards every N blocks
	WindowBlocks     int64 `json:"window_blocks"`      // blocks per averaging window
	SlashDivisor     int64 `json:"slash_divisor"`      // a slashing removes total/divisor
	ConvertMinIssued int64 `json:"convert_min_issued"` // conversions need more issued than this
	ConvertAmount    int64 `json:"convert_amount"`
	PriceNotional    int64 `json:"price_notional"` // amount priced by the dry-run conversions
}

// DefaultConfig returns the reference cadence.
func DefaultConfig() Config {
	return Config{
		RewardInterval:   10,
		WindowBlocks:     model.BlocksPerDay,
		SlashDivisor:     1000,
		ConvertMinIssued: 10_000,
		ConvertAmount:    5_000,
		PriceNotional:    1_000_000,
	}
}

// Validate checks that every cadence and amount is usable.
func (c Config) Validate() error {
	switch {
	case c.RewardInterval <= 0:
		return fmt.Errorf("%w: reward_interval must be positive", ErrInvalidConfig)
	case c.WindowBlocks <= 0:
		return fmt.Errorf("%w: window_blocks must be positive", ErrInvalidConfig)
	case c.SlashDivisor <= 0:
		return fmt.Errorf("%w: slash_divisor must be positive", ErrInvalidConfig)
	case c.ConvertMinIssued < 0:
		return fmt.Errorf("%w: convert_min_issued must not be negative", ErrInvalidConfig)
	case c.ConvertAmount <= 0:
		return fmt.Errorf("%w: convert_amount must be positive", ErrInvalidConfig)
	case c.PriceNotional <= 0:
		return fmt.Errorf("%w: price_notional must be positive", ErrInvalidConfig)
	}
	return nil
}

// accumulator is the oracle state that a failed block must roll back.
type accumulator struct {
	cum0, cum1      int64
	lastSampleTime  int64
	windowStartTime int64
	windowStartCum0 int64
	windowStartCum1 int64
	avg0, avg1      float64
}

// PriceOracle wraps a Hub with Uniswap-style cumulative price accumulators
// for both conversion directions and derives windowed averages. Index 0 is
// the B->A price, index 1 the A->B price.
type PriceOracle struct {
	hub    *hub.Hub
	policy AccumulationPolicy
	cfg    Config

	acc     accumulator
	series  model.Series
	last    model.Block
	started bool
}

// New creates an oracle that owns h. Each oracle must get its own Hub.
func New(h *hub.Hub, policy AccumulationPolicy, cfg Config) (*PriceOracle, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil hub", ErrInvalidConfig)
	}
	if policy.ReferenceTime == nil {
		return nil, fmt.Errorf("%w: policy %q has no reference time", ErrInvalidConfig, policy.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PriceOracle{hub: h, policy: policy, cfg: cfg}, nil
}

func (o *PriceOracle) Hub() *hub.Hub              { return o.hub }
func (o *PriceOracle) Policy() AccumulationPolicy { return o.policy }
func (o *PriceOracle) Config() Config             { return o.cfg }
func (o *PriceOracle) LastSampleTime() int64      { return o.acc.lastSampleTime }
func (o *PriceOracle) Len() int                   { return o.series.Len() }

// CumulativePrices returns the last committed accumulator values.
func (o *PriceOracle) CumulativePrices() (int64, int64) { return o.acc.cum0, o.acc.cum1 }

// Series returns the recorded series. The slices are shared; do not modify.
func (o *PriceOracle) Series() model.Series { return o.series }

// LastBlock returns the last processed block, if any.
func (o *PriceOracle) LastBlock() (model.Block, bool) { return o.last, o.started }

// Prices returns the dry-run conversion output for the configured notional
// in both directions.
func (o *PriceOracle) Prices() (int64, int64, error) {
	p0, err := o.hub.ConvertBtoA(o.cfg.PriceNotional, true)
	if err != nil {
		return 0, 0, fmt.Errorf("price %s: %w", hub.BtoA, err)
	}
	p1, err := o.hub.ConvertAtoB(o.cfg.PriceNotional, true)
	if err != nil {
		return 0, 0, fmt.Errorf("price %s: %w", hub.AtoB, err)
	}
	return p0, p1, nil
}

func (o *PriceOracle) accumulate(block model.Block) (cum0, cum1 int64, ok bool, err error) {
	elapsed := block.Time - o.policy.ReferenceTime(o.acc.lastSampleTime, o.hub)
	if elapsed <= 0 {
		return o.acc.cum0, o.acc.cum1, false, nil
	}
	p0, p1, err := o.Prices()
	if err != nil {
		return 0, 0, false, err
	}
	return o.acc.cum0 + elapsed*p0, o.acc.cum1 + elapsed*p1, true, nil
}

// Sample commits the current prices into the accumulators. It reports false
// and changes nothing when no time has elapsed since the reference time.
func (o *PriceOracle) Sample(block model.Block) (bool, error) {
	cum0, cum1, ok, err := o.accumulate(block)
	if err != nil || !ok {
		return false, err
	}
	o.acc.cum0, o.acc.cum1, o.acc.lastSampleTime = cum0, cum1, block.Time
	return true, nil
}

// CurrentCumulativePrices returns what the accumulators would hold if they
// were sampled at block, without committing.
func (o *PriceOracle) CurrentCumulativePrices(block model.Block) (int64, int64, error) {
	cum0, cum1, _, err := o.accumulate(block)
	return cum0, cum1, err
}

// ExecuteBlock applies one block: reward accrual on the configured cadence,
// an optional slashing, the operation, and price accumulation as the policy
// dictates. Exactly one entry is appended to every series on success. On
// error the hub and oracle are left as they were before the call.
func (o *PriceOracle) ExecuteBlock(block model.Block, isSlashing bool, op model.Operation, amount int64) (model.Observation, error) {
	if err := o.checkInput(block, op, amount); err != nil {
		return model.Observation{}, err
	}

	hubState, acc := o.hub.Snapshot(), o.acc
	obs, err := o.executeBlock(block, isSlashing, op, amount)
	if err != nil {
		o.hub.Restore(hubState)
		o.acc = acc
		return model.Observation{}, fmt.Errorf("block %d (%s): %w", block.Number, o.policy.Name, err)
	}

	o.series.Append(obs.Cum0, obs.Cum1, obs.Avg0, obs.Avg1)
	o.last, o.started = block, true
	return obs, nil
}

// Execute is ExecuteBlock for a driver step.
func (o *PriceOracle) Execute(step model.Step) (model.Observation, error) {
	return o.ExecuteBlock(step.Block, step.Slashing, step.Op, step.Amount)
}

func (o *PriceOracle) checkInput(block model.Block, op model.Operation, amount int64) error {
	if block.Number < 0 || block.Time < 0 {
		return fmt.Errorf("block {%d %d}: %w", block.Number, block.Time, ErrBlockOrder)
	}
	if o.started && (block.Number <= o.last.Number || block.Time < o.last.Time) {
		return fmt.Errorf("block {%d %d} after {%d %d}: %w",
			block.Number, block.Time, o.last.Number, o.last.Time, ErrBlockOrder)
	}
	if !op.Valid() {
		return fmt.Errorf("%s: %w", op, ErrUnknownOperation)
	}
	if op.IsBond() && amount <= 0 {
		return fmt.Errorf("%s %d: %w", op, amount, hub.ErrInvalidAmount)
	}
	return nil
}

func (o *PriceOracle) executeBlock(block model.Block, isSlashing bool, op model.Operation, amount int64) (model.Observation, error) {
	obs := model.Observation{Block: block}

	if o.policy.SampleBeforeBlockEffects {
		sampled, err := o.Sample(block)
		if err != nil {
			return obs, err
		}
		obs.Sampled = sampled
	}

	if block.Number%o.cfg.RewardInterval == 0 {
		if _, err := o.hub.AccrueRewards(block); err != nil {
			return obs, err
		}
	}
	if isSlashing {
		if err := o.hub.Slash(o.hub.TotalBonded() / o.cfg.SlashDivisor); err != nil {
			return obs, err
		}
	}
	converted, err := o.apply(op, amount)
	if err != nil {
		return obs, err
	}

	if !o.policy.SampleBeforeBlockEffects && (o.policy.CommitOnRead || converted) {
		sampled, err := o.Sample(block)
		if err != nil {
			return obs, err
		}
		obs.Sampled = sampled
	}

	// Equal to the committed values whenever this block already sampled.
	obs.Cum0, obs.Cum1, err = o.CurrentCumulativePrices(block)
	if err != nil {
		return obs, err
	}

	obs.WindowClosed = o.closeWindow(block, obs.Cum0, obs.Cum1)
	obs.Avg0, obs.Avg1 = o.acc.avg0, o.acc.avg1
	obs.RateA, obs.RateB = o.hub.RateA(), o.hub.RateB()
	return obs, nil
}

// apply dispatches the operation and reports whether a conversion executed.
func (o *PriceOracle) apply(op model.Operation, amount int64) (bool, error) {
	switch op {
	case model.OpNothing:
		return false, nil
	case model.OpBondA:
		_, err := o.hub.Bond(hub.SideA, amount)
		return false, err
	case model.OpBondB:
		_, err := o.hub.Bond(hub.SideB, amount)
		return false, err
	case model.OpBondBoth:
		if _, err := o.hub.Bond(hub.SideA, amount); err != nil {
			return false, err
		}
		_, err := o.hub.Bond(hub.SideB, amount)
		return false, err
	case model.OpConvertBtoA:
		if o.hub.PoolB().Issued <= o.cfg.ConvertMinIssued {
			return false, nil
		}
		_, err := o.hub.ConvertBtoA(o.cfg.ConvertAmount, false)
		return err == nil, err
	case model.OpConvertAtoB:
		if o.hub.PoolA().Issued <= o.cfg.ConvertMinIssued {
			return false, nil
		}
		_, err := o.hub.ConvertAtoB(o.cfg.ConvertAmount, false)
		return err == nil, err
	default:
		return false, fmt.Errorf("%s: %w", op, ErrUnknownOperation)
	}
}

// closeWindow computes a new average at window boundaries. A boundary with
// no time elapsed since the window opened keeps the previous averages.
func (o *PriceOracle) closeWindow(block model.Block, cum0, cum1 int64) bool {
	if block.Number%o.cfg.WindowBlocks != 0 {
		return false
	}
	avg0, err := calculator.WindowAverage(cum0, o.acc.windowStartCum0, block.Time, o.acc.windowStartTime)
	if err != nil {
		return false
	}
	avg1, err := calculator.WindowAverage(cum1, o.acc.windowStartCum1, block.Time, o.acc.windowStartTime)
	if err != nil {
		return false
	}
	o.acc.avg0, o.acc.avg1 = avg0, avg1
	o.acc.windowStartTime = block.Time
	o.acc.windowStartCum0, o.acc.windowStartCum1 = cum0, cum1
	return true
}
