package hub

import (
	"fmt"

	"PegSentinel/internal/model"
)

// Params configures fee and reward policy.
type Params struct {
	RecoveryFeeRate    float64      `json:"recovery_fee_rate"`
	PegThreshold       float64      `json:"peg_threshold"`
	RewardRatePerBlock float64      `json:"reward_rate_per_block"`
	InitialA           ExchangePool `json:"initial_a"`
	InitialB           ExchangePool `json:"initial_b"`
}

// DefaultAnnualRewardRate is the yield accrued to pool B per year.
const DefaultAnnualRewardRate = 0.09

// PerBlockRate spreads an annual reward rate over a year of blocks.
func PerBlockRate(annual float64) float64 {
	return annual / model.BlocksPerYear
}

// DefaultParams returns the reference deployment parameters.
func DefaultParams() Params {
	return Params{
		RecoveryFeeRate:    0.05,
		PegThreshold:       1.0,
		RewardRatePerBlock: PerBlockRate(DefaultAnnualRewardRate),
		InitialA:           ExchangePool{Bonded: 1_000_000, Issued: 1_000_000},
		InitialB:           ExchangePool{Bonded: 1_500_000, Issued: 1_000_000},
	}
}

// Validate checks parameter ranges and the initial pools.
func (p Params) Validate() error {
	if p.RecoveryFeeRate < 0 || p.RecoveryFeeRate > 1 {
		return fmt.Errorf("recovery fee rate %v not in [0,1]: %w", p.RecoveryFeeRate, ErrInvalidParams)
	}
	if p.PegThreshold <= 0 {
		return fmt.Errorf("peg threshold %v must be positive: %w", p.PegThreshold, ErrInvalidParams)
	}
	if p.RewardRatePerBlock < 0 {
		return fmt.Errorf("reward rate %v must not be negative: %w", p.RewardRatePerBlock, ErrInvalidParams)
	}
	for side, pool := range map[Side]ExchangePool{SideA: p.InitialA, SideB: p.InitialB} {
		if pool.Bonded < 0 || pool.Issued < 0 {
			return fmt.Errorf("initial pool %s is negative: %w", side, ErrInvalidParams)
		}
		if err := pool.checkSupply(side); err != nil {
			return err
		}
	}
	return nil
}

// State is a copy of everything a Hub mutates.
type State struct {
	A               ExchangePool `json:"a"`
	B               ExchangePool `json:"b"`
	LastRewardBlock model.Block  `json:"last_reward_block"`
}

// Hub owns both exchange pools and applies bonding, slashing, rewards and
// conversions. It is not safe for concurrent use.
type Hub struct {
	params          Params
	a, b            ExchangePool
	lastRewardBlock model.Block
}

// New creates a Hub seeded with the initial pools from params.
func New(params Params) (*Hub, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Hub{params: params, a: params.InitialA, b: params.InitialB}, nil
}

func (h *Hub) Params() Params               { return h.params }
func (h *Hub) PoolA() ExchangePool          { return h.a }
func (h *Hub) PoolB() ExchangePool          { return h.b }
func (h *Hub) RateA() float64               { return h.a.Rate() }
func (h *Hub) RateB() float64               { return h.b.Rate() }
func (h *Hub) LastRewardBlock() model.Block { return h.lastRewardBlock }
func (h *Hub) TotalBonded() int64           { return h.a.Bonded + h.b.Bonded }

// Pool returns a copy of the pool on the given side.
func (h *Hub) Pool(side Side) ExchangePool {
	if side == SideB {
		return h.b
	}
	return h.a
}

func (h *Hub) pool(side Side) *ExchangePool {
	if side == SideB {
		return &h.b
	}
	return &h.a
}

// Snapshot captures the mutable state.
func (h *Hub) Snapshot() State {
	return State{A: h.a, B: h.b, LastRewardBlock: h.lastRewardBlock}
}

// Restore overwrites the mutable state with a previous snapshot.
func (h *Hub) Restore(s State) {
	h.a, h.b, h.lastRewardBlock = s.A, s.B, s.LastRewardBlock
}

func (h *Hub) checkSupplies() error {
	if err := h.a.checkSupply(SideA); err != nil {
		return err
	}
	return h.b.checkSupply(SideB)
}

// pegFee is the peg-recovery fee on a mint of `mint` tokens backed by
// `amount` principal. The result is deliberately not clamped at zero: a
// negative required fee turns into a bonus mint while the pool re-pegs.
func (h *Hub) pegFee(p ExchangePool, mint, amount int64) int64 {
	if p.Rate() >= h.params.PegThreshold {
		return 0
	}
	maxFee := int64(float64(mint) * h.params.RecoveryFeeRate)
	requiredFee := (p.Issued + mint) - (p.Bonded + amount)
	return min(maxFee, requiredFee)
}

// Bond deposits amount principal into the given pool and returns the
// claim tokens minted after the peg-recovery fee.
func (h *Hub) Bond(side Side, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("bond %s %d: %w", side, amount, ErrInvalidAmount)
	}
	p := h.pool(side)
	if err := p.checkSupply(side); err != nil {
		return 0, fmt.Errorf("bond %s: %w", side, err)
	}

	mint := int64(float64(amount) / p.Rate())
	minted := mint - h.pegFee(*p, mint, amount)

	p.Bonded += amount
	p.Issued += minted
	return minted, nil
}

// Slash removes amount principal from both pools in proportion to their
// bonded size. Issued supplies are untouched; pool B absorbs the rounding.
func (h *Hub) Slash(amount int64) error {
	total := h.TotalBonded()
	if amount < 0 || amount > total {
		return fmt.Errorf("slash %d of %d: %w", amount, total, ErrInvalidSlash)
	}
	if total == 0 {
		return nil
	}
	remaining := total - amount
	ratioA := float64(h.a.Bonded) / float64(total)
	h.a.Bonded = int64(float64(remaining) * ratioA)
	h.b.Bonded = remaining - h.a.Bonded
	return nil
}

// AccrueRewards credits pool B with rewards for every block since the last
// accrual and moves the reward checkpoint to block.
func (h *Hub) AccrueRewards(block model.Block) (int64, error) {
	if block.Number < h.lastRewardBlock.Number {
		return 0, fmt.Errorf("accrue at block %d after %d: %w", block.Number, h.lastRewardBlock.Number, ErrRewardOrder)
	}
	elapsed := block.Number - h.lastRewardBlock.Number
	rewards := int64(float64(h.b.Bonded) * h.params.RewardRatePerBlock * float64(elapsed))
	h.b.Bonded += rewards
	h.lastRewardBlock = block
	return rewards, nil
}
