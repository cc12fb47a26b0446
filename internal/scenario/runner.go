package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"PegSentinel/internal/calculator"
	"PegSentinel/internal/hub"
	"PegSentinel/internal/logger"
	"PegSentinel/internal/metrics"
	"PegSentinel/internal/model"
	"PegSentinel/internal/oracle"
	"PegSentinel/internal/recorder"
)

// PolicyResult is the outcome of one oracle over a run.
type PolicyResult struct {
	Policy string
	Final  hub.State
	Cum0   int64
	Cum1   int64
	Avg0   float64
	Avg1   float64
	Series model.Series

	// Cum0 drift against the run's first policy, in percent.
	MaxDrift  float64
	MeanDrift float64

	// Largest gap between the B->A window average and the rate it tracks, in percent.
	MaxDeviation float64
}

// Quote is a reverse A->B quote against the final hub state: offering
// GrossA leaves NetA after the peg-recovery fee and mints MintB.
type Quote struct {
	NetA   int64
	GrossA int64
	MintB  int64
}

// Result is everything a run produced.
type Result struct {
	RunID      string
	Seed       int64
	Source     string
	Status     string
	Processed  int64
	Slashings  int
	StartedAt  time.Time
	FinishedAt time.Time
	Notional   int64

	// Per-block exchange rates, identical for every policy.
	Blocks []int64
	RatesA []float64
	RatesB []float64

	Policies []PolicyResult

	// Quote for one notional of A, nil when the final hub cannot quote.
	Quote *Quote
}

// Baseline returns the first policy's result, which drift is measured against.
func (r *Result) Baseline() *PolicyResult {
	if len(r.Policies) == 0 {
		return nil
	}
	return &r.Policies[0]
}

// Runner feeds one step stream to an independent oracle per policy.
type Runner struct {
	HubParams   hub.Params
	Oracle      oracle.Config
	Scenario    Config
	Policies    []oracle.AccumulationPolicy
	RecordEvery int64 // record every N blocks in addition to window boundaries; 0 records boundaries only
	Recorder    recorder.Recorder
	Metrics     *metrics.SimMetrics
}

func (r *Runner) log() *logger.Entry {
	return logger.GetLogger().WithComponent("runner")
}

// Run draws a fresh random stream and runs it.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.Scenario
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	gen, err := NewGenerator(cfg)
	if err != nil {
		return nil, err
	}
	return r.RunSource(ctx, cfg.Seed, cfg.Blocks, gen)
}

// RunSource runs the steps of src. seed and blocks are only recorded.
func (r *Runner) RunSource(ctx context.Context, seed, blocks int64, src Source) (*Result, error) {
	if len(r.Policies) == 0 {
		return nil, errors.New("runner: no accumulation policies")
	}
	rec := r.Recorder
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}

	oracles := make([]*oracle.PriceOracle, len(r.Policies))
	names := make([]string, len(r.Policies))
	for i, p := range r.Policies {
		h, err := hub.New(r.HubParams)
		if err != nil {
			return nil, fmt.Errorf("runner: %w", err)
		}
		o, err := oracle.New(h, p, r.Oracle)
		if err != nil {
			return nil, fmt.Errorf("runner: policy %s: %w", p.Name, err)
		}
		oracles[i], names[i] = o, p.Name
	}

	res := &Result{
		RunID:     uuid.NewString(),
		Seed:      seed,
		Source:    src.Name(),
		StartedAt: time.Now(),
		Notional:  r.Oracle.PriceNotional,
	}
	log := r.log().WithFields(logger.Fields{"run_id": res.RunID, "seed": seed, "source": res.Source})
	log.WithFields(logger.Fields{"blocks": blocks, "policies": names}).Info("run started")

	r.record(log, rec.RecordRun(&recorder.RunInfo{
		RunID: res.RunID, Seed: seed, Blocks: blocks,
		Policies: names, StartedAt: res.StartedAt,
	}))
	r.Metrics.ObserveRunStarted()

	runErr := r.loop(ctx, log, rec, res, oracles, src)

	res.FinishedAt = time.Now()
	switch {
	case runErr == nil:
		res.Status = recorder.StatusCompleted
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		res.Status = recorder.StatusCancelled
	default:
		res.Status = recorder.StatusFailed
	}
	r.summarize(res, oracles)

	sum := &recorder.RunSummary{
		RunID: res.RunID, FinishedAt: res.FinishedAt,
		Processed: res.Processed, Slashings: res.Slashings,
		Status: res.Status,
	}
	for _, p := range res.Policies {
		sum.MaxDrift = math.Max(sum.MaxDrift, p.MaxDrift)
		sum.MeanDrift = math.Max(sum.MeanDrift, p.MeanDrift)
		sum.MaxDeviation = math.Max(sum.MaxDeviation, p.MaxDeviation)
	}
	if runErr != nil {
		sum.Error = runErr.Error()
	}
	r.record(log, rec.FinishRun(sum))
	r.Metrics.ObserveRunFinished(res.Status, res.FinishedAt.Sub(res.StartedAt).Seconds())

	log.WithFields(logger.Fields{
		"status":    res.Status,
		"processed": res.Processed,
		"slashings": res.Slashings,
		"max_drift": sum.MaxDrift,
		"elapsed":   res.FinishedAt.Sub(res.StartedAt).String(),
	}).Info("run finished")

	if runErr != nil {
		return res, fmt.Errorf("run %s: %w", res.RunID, runErr)
	}
	return res, nil
}

func (r *Runner) loop(ctx context.Context, log *logger.Entry, rec recorder.Recorder, res *Result, oracles []*oracle.PriceOracle, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		step, ok := src.Next()
		if !ok {
			return nil
		}

		record := r.RecordEvery > 0 && step.Block.Number%r.RecordEvery == 0
		for i, o := range oracles {
			obs, err := o.Execute(step)
			if err != nil {
				return err
			}
			policy := o.Policy().Name
			if obs.WindowClosed {
				r.record(log, rec.RecordWindow(&recorder.Window{
					RunID: res.RunID, Policy: policy,
					Number: obs.Block.Number, Time: obs.Block.Time,
					Avg0: obs.Avg0, Avg1: obs.Avg1,
				}))
			}
			if record || obs.WindowClosed {
				r.record(log, rec.RecordSample(recorder.NewSample(res.RunID, policy, obs)))
				r.Metrics.SetOracle(policy, obs.Cum0, obs.Cum1, obs.Avg0, obs.Avg1)
			}
			if i == 0 {
				res.Blocks = append(res.Blocks, obs.Block.Number)
				res.RatesA = append(res.RatesA, obs.RateA)
				res.RatesB = append(res.RatesB, obs.RateB)
				r.Metrics.SetExchangeRates(obs.RateA, obs.RateB)
			}
		}

		res.Processed++
		if step.Slashing {
			res.Slashings++
			log.WithFields(logger.Fields{"block": step.Block.Number}).Info("slashing applied")
		}
		r.Metrics.ObserveBlock(step.Slashing)
	}
}

// record logs recorder failures without aborting the run.
func (r *Runner) record(log *logger.Entry, err error) {
	if err == nil {
		return
	}
	r.Metrics.ObserveRecordError()
	log.WithError(err).Error("record failed")
}

func (r *Runner) summarize(res *Result, oracles []*oracle.PriceOracle) {
	// The B->A average tracks rateB/rateA.
	expected := make([]float64, len(res.RatesA))
	for i := range expected {
		expected[i] = res.RatesB[i] / res.RatesA[i]
	}

	var baseline []float64
	for i, o := range oracles {
		s := o.Series()
		pr := PolicyResult{
			Policy: o.Policy().Name,
			Final:  o.Hub().Snapshot(),
			Series: s,
		}
		if n := s.Len(); n > 0 {
			pr.Cum0, pr.Cum1 = s.Cum0[n-1], s.Cum1[n-1]
			pr.Avg0, pr.Avg1 = s.LastAverages()
		}

		cum0 := calculator.ToFloat(s.Cum0)
		if i == 0 {
			baseline = cum0
			if gross, mint, err := o.Hub().ReverseConvertAtoB(res.Notional); err == nil {
				res.Quote = &Quote{NetA: res.Notional, GrossA: gross, MintB: mint}
			}
		} else if drift, err := calculator.DriftSeries(cum0, baseline); err == nil {
			pr.MaxDrift = calculator.MaxAbs(drift)
			pr.MeanDrift = meanAbs(drift)
		}
		if dev, err := calculator.RateDeviation(s.Avg0, expected, float64(res.Notional)); err == nil {
			pr.MaxDeviation = calculator.MaxAbs(dev)
		}

		r.Metrics.SetDrift(pr.Policy, pr.MaxDrift)
		r.Metrics.SetRateDeviation(pr.Policy, pr.MaxDeviation)
		res.Policies = append(res.Policies, pr)
	}
}

func meanAbs(values []float64) float64 {
	abs := make([]float64, len(values))
	for i, v := range values {
		abs[i] = math.Abs(v)
	}
	m, err := calculator.Mean(abs)
	if err != nil {
		return 0
	}
	return m
}
