package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"PegSentinel/internal/hub"
	"PegSentinel/internal/model"
	"PegSentinel/internal/oracle"
	"PegSentinel/internal/scenario"
)

// PoolConfig seeds one exchange pool.
type PoolConfig struct {
	Bonded int64 `yaml:"bonded"`
	Issued int64 `yaml:"issued"`
}

// Config holds all application configuration.
type Config struct {
	Hub struct {
		RecoveryFeeRate  float64    `yaml:"recovery_fee_rate"`
		PegThreshold     float64    `yaml:"peg_threshold"`
		AnnualRewardRate float64    `yaml:"annual_reward_rate"`
		InitialA         PoolConfig `yaml:"initial_a"`
		InitialB         PoolConfig `yaml:"initial_b"`
	} `yaml:"hub"`
	Oracle struct {
		RewardInterval   int64 `yaml:"reward_interval"`
		WindowBlocks     int64 `yaml:"window_blocks"`
		SlashDivisor     int64 `yaml:"slash_divisor"`
		ConvertMinIssued int64 `yaml:"convert_min_issued"`
		ConvertAmount    int64 `yaml:"convert_amount"`
		PriceNotional    int64 `yaml:"price_notional"`
	} `yaml:"oracle"`
	Scenario scenario.Config `yaml:"scenario"`
	Policies []string        `yaml:"policies"`
	Schedule struct {
		Cron       string `yaml:"cron"` // empty runs once and exits
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath  string `yaml:"sqlite_path"`
		ParquetDir  string `yaml:"parquet_dir"`
		RecordEvery int64  `yaml:"record_every"`
	} `yaml:"database"`
	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
		MaxAge int    `yaml:"max_age"`
	} `yaml:"logging"`
}

// Default returns the configuration used for anything a file leaves out.
func Default() *Config {
	cfg := &Config{}

	hp := hub.DefaultParams()
	cfg.Hub.RecoveryFeeRate = hp.RecoveryFeeRate
	cfg.Hub.PegThreshold = hp.PegThreshold
	cfg.Hub.AnnualRewardRate = hub.DefaultAnnualRewardRate
	cfg.Hub.InitialA = PoolConfig{Bonded: hp.InitialA.Bonded, Issued: hp.InitialA.Issued}
	cfg.Hub.InitialB = PoolConfig{Bonded: hp.InitialB.Bonded, Issued: hp.InitialB.Issued}

	oc := oracle.DefaultConfig()
	cfg.Oracle.RewardInterval = oc.RewardInterval
	cfg.Oracle.WindowBlocks = oc.WindowBlocks
	cfg.Oracle.SlashDivisor = oc.SlashDivisor
	cfg.Oracle.ConvertMinIssued = oc.ConvertMinIssued
	cfg.Oracle.ConvertAmount = oc.ConvertAmount
	cfg.Oracle.PriceNotional = oc.PriceNotional

	cfg.Scenario = scenario.DefaultConfig()
	cfg.Database.RecordEvery = model.BlocksPerHour
	return cfg
}

// Load reads a .env file if present, then config from a YAML file on top of
// Default, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PEGSIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("PEGSIM_SEED: %w", err)
		}
		cfg.Scenario.Seed = seed
	}
	if v := os.Getenv("PEGSIM_BLOCKS"); v != "" {
		blocks, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("PEGSIM_BLOCKS: %w", err)
		}
		cfg.Scenario.Blocks = blocks
	}
	if v := os.Getenv("PEGSIM_CRON"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("PARQUET_DIR"); v != "" {
		cfg.Database.ParquetDir = v
	}
	if v := os.Getenv("METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Defaults
	if len(cfg.Policies) == 0 {
		cfg.Policies = []string{oracle.Standard.Name, oracle.PreSample.Name, oracle.HubReferenced.Name}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	return cfg, nil
}

// HubParams converts the hub section.
func (c *Config) HubParams() hub.Params {
	return hub.Params{
		RecoveryFeeRate:    c.Hub.RecoveryFeeRate,
		PegThreshold:       c.Hub.PegThreshold,
		RewardRatePerBlock: hub.PerBlockRate(c.Hub.AnnualRewardRate),
		InitialA:           hub.ExchangePool{Bonded: c.Hub.InitialA.Bonded, Issued: c.Hub.InitialA.Issued},
		InitialB:           hub.ExchangePool{Bonded: c.Hub.InitialB.Bonded, Issued: c.Hub.InitialB.Issued},
	}
}

// OracleConfig converts the oracle section.
func (c *Config) OracleConfig() oracle.Config {
	return oracle.Config{
		RewardInterval:   c.Oracle.RewardInterval,
		WindowBlocks:     c.Oracle.WindowBlocks,
		SlashDivisor:     c.Oracle.SlashDivisor,
		ConvertMinIssued: c.Oracle.ConvertMinIssued,
		ConvertAmount:    c.Oracle.ConvertAmount,
		PriceNotional:    c.Oracle.PriceNotional,
	}
}

// AccumulationPolicies resolves the configured policy names, in order.
func (c *Config) AccumulationPolicies() ([]oracle.AccumulationPolicy, error) {
	seen := make(map[string]bool, len(c.Policies))
	policies := make([]oracle.AccumulationPolicy, 0, len(c.Policies))
	for _, name := range c.Policies {
		p, err := oracle.PolicyByName(name)
		if err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("policy %s listed twice", p.Name)
		}
		seen[p.Name] = true
		policies = append(policies, p)
	}
	return policies, nil
}

// Validate checks that every section converts to a usable value.
func (c *Config) Validate() error {
	if err := c.HubParams().Validate(); err != nil {
		return fmt.Errorf("hub: %w", err)
	}
	if err := c.OracleConfig().Validate(); err != nil {
		return fmt.Errorf("oracle: %w", err)
	}
	if err := c.Scenario.Validate(); err != nil {
		return err
	}
	if _, err := c.AccumulationPolicies(); err != nil {
		return fmt.Errorf("policies: %w", err)
	}
	if c.Database.RecordEvery < 0 {
		return fmt.Errorf("database.record_every must not be negative")
	}
	if c.Logging.MaxAge < 0 {
		return fmt.Errorf("logging.max_age must not be negative")
	}
	return nil
}
