package scenario

import (
	"errors"
	"fmt"
	"math/rand"

	"PegSentinel/internal/model"
)

// Config shapes the random step stream.
type Config struct {
	Blocks int64 `yaml:"blocks"`

	// Seed 0 picks a time-based seed per run.
	Seed int64 `yaml:"seed"`

	// Block n lands at n*TimeStep plus a uniform jitter in [JitterMin, JitterMax].
	TimeStep  int64 `yaml:"time_step"`
	JitterMin int64 `yaml:"jitter_min"`
	JitterMax int64 `yaml:"jitter_max"`

	// Heights divisible by SlashCheckInterval are slashed one time in SlashOdds.
	SlashCheckInterval int64 `yaml:"slash_check_interval"`
	SlashOdds          int64 `yaml:"slash_odds"`
	BondMin            int64 `yaml:"bond_min"`
	BondMax            int64 `yaml:"bond_max"`
}

// DefaultConfig is three months of ten-second blocks.
func DefaultConfig() Config {
	return Config{
		Blocks:             model.BlocksPerMonth * 3,
		TimeStep:           10,
		JitterMin:          1,
		JitterMax:          5,
		SlashCheckInterval: 10,
		SlashOdds:          100_001,
		BondMin:            1_000_000,
		BondMax:            10_000_000,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Blocks <= 0:
		return errors.New("scenario: blocks must be positive")
	case c.TimeStep <= 0:
		return errors.New("scenario: time_step must be positive")
	case c.JitterMin < 0 || c.JitterMax < c.JitterMin:
		return fmt.Errorf("scenario: bad jitter range [%d, %d]", c.JitterMin, c.JitterMax)
	case c.JitterMax-c.JitterMin > c.TimeStep:
		return errors.New("scenario: jitter range wider than time_step would move time backwards")
	case c.SlashCheckInterval <= 0:
		return errors.New("scenario: slash_check_interval must be positive")
	case c.SlashOdds <= 0:
		return errors.New("scenario: slash_odds must be positive")
	case c.BondMin <= 0 || c.BondMax < c.BondMin:
		return fmt.Errorf("scenario: bad bond range [%d, %d]", c.BondMin, c.BondMax)
	}
	return nil
}

// Generator draws a reproducible random step stream from a seed.
type Generator struct {
	cfg  Config
	rng  *rand.Rand
	next int64
}

// NewGenerator uses cfg.Seed as given, zero included.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

func (g *Generator) Name() string { return "random" }

func (g *Generator) between(lo, hi int64) int64 {
	return lo + g.rng.Int63n(hi-lo+1)
}

func (g *Generator) Next() (model.Step, bool) {
	if g.next >= g.cfg.Blocks {
		return model.Step{}, false
	}
	n := g.next
	g.next++

	step := model.Step{
		Block: model.Block{Number: n, Time: n*g.cfg.TimeStep + g.between(g.cfg.JitterMin, g.cfg.JitterMax)},
	}
	if n%g.cfg.SlashCheckInterval == 0 {
		step.Slashing = g.rng.Int63n(g.cfg.SlashOdds) == 0
	}
	ops := model.Operations()
	step.Op = ops[g.rng.Intn(len(ops))]
	step.Amount = g.between(g.cfg.BondMin, g.cfg.BondMax)
	return step, true
}
