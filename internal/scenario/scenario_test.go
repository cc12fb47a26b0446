package scenario

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PegSentinel/internal/hub"
	"PegSentinel/internal/metrics"
	"PegSentinel/internal/model"
	"PegSentinel/internal/oracle"
	"PegSentinel/internal/recorder"
)

type memRecorder struct {
	mu        sync.Mutex
	runs      []*recorder.RunInfo
	samples   []*recorder.Sample
	windows   []*recorder.Window
	summaries []*recorder.RunSummary
}

func (m *memRecorder) RecordRun(info *recorder.RunInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, info)
	return nil
}

func (m *memRecorder) RecordSample(s *recorder.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s)
	return nil
}

func (m *memRecorder) RecordWindow(w *recorder.Window) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = append(m.windows, w)
	return nil
}

func (m *memRecorder) FinishRun(sum *recorder.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, sum)
	return nil
}

func (m *memRecorder) Close() error { return nil }

func smallScenario(blocks, seed int64) Config {
	cfg := DefaultConfig()
	cfg.Blocks = blocks
	cfg.Seed = seed
	return cfg
}

func newRunner(rec recorder.Recorder, policies ...oracle.AccumulationPolicy) *Runner {
	ocfg := oracle.DefaultConfig()
	ocfg.WindowBlocks = 50
	return &Runner{
		HubParams:   hub.DefaultParams(),
		Oracle:      ocfg,
		Scenario:    smallScenario(200, 42),
		Policies:    policies,
		RecordEvery: 10,
		Recorder:    rec,
		Metrics:     metrics.NewSim(prometheus.NewRegistry()),
	}
}

func TestGenerator_Reproducible(t *testing.T) {
	a, err := NewGenerator(smallScenario(500, 7))
	require.NoError(t, err)
	b, err := NewGenerator(smallScenario(500, 7))
	require.NoError(t, err)

	for {
		sa, okA := a.Next()
		sb, okB := b.Next()
		require.Equal(t, okA, okB)
		if !okA {
			break
		}
		require.Equal(t, sa, sb)
	}
}

func TestGenerator_StepShape(t *testing.T) {
	cfg := smallScenario(1_000, 99)
	cfg.SlashOdds = 1 // every eligible height slashes
	g, err := NewGenerator(cfg)
	require.NoError(t, err)

	var prev model.Block
	count := int64(0)
	for {
		s, ok := g.Next()
		if !ok {
			break
		}
		assert.Equal(t, count, s.Block.Number)
		assert.GreaterOrEqual(t, s.Block.Time, s.Block.Number*10+1)
		assert.LessOrEqual(t, s.Block.Time, s.Block.Number*10+5)
		if count > 0 {
			assert.Greater(t, s.Block.Time, prev.Time)
		}
		assert.Equal(t, s.Block.Number%10 == 0, s.Slashing)
		assert.True(t, s.Op.Valid())
		assert.GreaterOrEqual(t, s.Amount, cfg.BondMin)
		assert.LessOrEqual(t, s.Amount, cfg.BondMax)
		prev = s.Block
		count++
	}
	assert.Equal(t, cfg.Blocks, count)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no blocks", func(c *Config) { c.Blocks = 0 }},
		{"no time step", func(c *Config) { c.TimeStep = 0 }},
		{"inverted jitter", func(c *Config) { c.JitterMin, c.JitterMax = 5, 1 }},
		{"jitter wider than step", func(c *Config) { c.JitterMax = 20 }},
		{"no slash interval", func(c *Config) { c.SlashCheckInterval = 0 }},
		{"no slash odds", func(c *Config) { c.SlashOdds = 0 }},
		{"inverted bond range", func(c *Config) { c.BondMin, c.BondMax = 10, 1 }},
	}
	assert.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRunner_RunRecordsAndSummarizes(t *testing.T) {
	rec := &memRecorder{}
	r := newRunner(rec, oracle.Standard, oracle.PreSample, oracle.HubReferenced)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, recorder.StatusCompleted, res.Status)
	assert.Equal(t, int64(42), res.Seed)
	assert.Equal(t, "random", res.Source)
	assert.Equal(t, int64(200), res.Processed)
	assert.Len(t, res.RatesB, 200)
	require.Len(t, res.Policies, 3)

	for _, p := range res.Policies {
		assert.Equal(t, 200, p.Series.Len(), p.Policy)
		assert.Equal(t, res.Policies[0].Final, p.Final, "policies never change hub evolution")
	}
	assert.Zero(t, res.Baseline().MaxDrift)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, res.RunID, rec.runs[0].RunID)
	assert.Equal(t, []string{"standard", "pre_sample", "hub_referenced"}, rec.runs[0].Policies)

	// Heights 0..199: 20 multiples of 10, window boundaries (50s) are among them.
	assert.Len(t, rec.samples, 3*20)
	assert.Len(t, rec.windows, 3*4)
	require.Len(t, rec.summaries, 1)
	assert.Equal(t, recorder.StatusCompleted, rec.summaries[0].Status)
	assert.Equal(t, int64(200), rec.summaries[0].Processed)
}

func TestRunner_ReplayMatchesDirectExecution(t *testing.T) {
	steps := []model.Step{
		{Block: model.Block{Number: 1, Time: 12}, Op: model.OpBondA, Amount: 2_000_000},
		{Block: model.Block{Number: 2, Time: 23}, Op: model.OpConvertBtoA},
		{Block: model.Block{Number: 10, Time: 101}, Slashing: true, Op: model.OpBondB, Amount: 3_000_000},
	}
	r := newRunner(nil, oracle.Standard, oracle.SwapTriggered)

	res, err := r.RunSource(context.Background(), 0, int64(len(steps)), &Replay{Steps: steps})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Slashings)
	assert.Equal(t, []int64{1, 2, 10}, res.Blocks)

	h, err := hub.New(hub.DefaultParams())
	require.NoError(t, err)
	o, err := oracle.New(h, oracle.Standard, r.Oracle)
	require.NoError(t, err)
	for _, s := range steps {
		_, err := o.Execute(s)
		require.NoError(t, err)
	}
	assert.Equal(t, o.Series(), res.Policies[0].Series)
	assert.Equal(t, h.Snapshot(), res.Policies[0].Final)

	gross, mint, err := h.ReverseConvertAtoB(r.Oracle.PriceNotional)
	require.NoError(t, err)
	require.NotNil(t, res.Quote)
	assert.Equal(t, Quote{NetA: r.Oracle.PriceNotional, GrossA: gross, MintB: mint}, *res.Quote)
}

func TestRunner_Cancelled(t *testing.T) {
	rec := &memRecorder{}
	r := newRunner(rec, oracle.Standard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, recorder.StatusCancelled, res.Status)
	assert.Zero(t, res.Processed)
	require.Len(t, rec.summaries, 1)
	assert.Equal(t, recorder.StatusCancelled, rec.summaries[0].Status)
}

func TestRunner_FailsOnBadStream(t *testing.T) {
	rec := &memRecorder{}
	r := newRunner(rec, oracle.Standard)
	steps := []model.Step{
		{Block: model.Block{Number: 5, Time: 50}},
		{Block: model.Block{Number: 4, Time: 60}},
	}

	res, err := r.RunSource(context.Background(), 0, 2, &Replay{Steps: steps})
	require.ErrorIs(t, err, oracle.ErrBlockOrder)
	assert.Equal(t, recorder.StatusFailed, res.Status)
	assert.Equal(t, int64(1), res.Processed)
	require.Len(t, rec.summaries, 1)
	assert.NotEmpty(t, rec.summaries[0].Error)
}

func TestRunner_NeedsPolicies(t *testing.T) {
	_, err := newRunner(nil).Run(context.Background())
	assert.Error(t, err)
}
