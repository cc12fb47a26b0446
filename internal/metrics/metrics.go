package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimMetrics exposes run progress and oracle state. A nil *SimMetrics is a
// valid no-op.
type SimMetrics struct {
	runsStarted   prometheus.Counter
	runsFinished  *prometheus.CounterVec
	runDuration   prometheus.Histogram
	blocks        prometheus.Counter
	slashings     prometheus.Counter
	recordErrors  prometheus.Counter
	exchangeRate  *prometheus.GaugeVec
	cumulative    *prometheus.GaugeVec
	average       *prometheus.GaugeVec
	drift         *prometheus.GaugeVec
	rateDeviation *prometheus.GaugeVec
}

var (
	simOnce     sync.Once
	simRegistry *SimMetrics
)

// Sim returns the process-wide metrics registered on the default registerer.
func Sim() *SimMetrics {
	simOnce.Do(func() {
		simRegistry = NewSim(prometheus.DefaultRegisterer)
	})
	return simRegistry
}

// NewSim creates the metric set and registers it on reg.
func NewSim(reg prometheus.Registerer) *SimMetrics {
	m := &SimMetrics{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pegsim_runs_started_total",
			Help: "Number of simulation runs started.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pegsim_runs_finished_total",
			Help: "Number of simulation runs finished by status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pegsim_run_duration_seconds",
			Help:    "Wall-clock duration of simulation runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pegsim_blocks_total",
			Help: "Blocks processed across all runs.",
		}),
		slashings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pegsim_slashings_total",
			Help: "Slashing events applied across all runs.",
		}),
		recordErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pegsim_record_errors_total",
			Help: "Recorder calls that failed.",
		}),
		exchangeRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pegsim_exchange_rate",
			Help: "Current exchange rate of each pool.",
		}, []string{"pool"}),
		cumulative: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pegsim_cumulative_price",
			Help: "Latest cumulative price by policy and direction.",
		}, []string{"policy", "direction"}),
		average: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pegsim_window_average_price",
			Help: "Latest window average price by policy and direction.",
		}, []string{"policy", "direction"}),
		drift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pegsim_cumulative_drift_percent",
			Help: "Percent drift of a policy's cumulative B->A price against the baseline policy.",
		}, []string{"policy"}),
		rateDeviation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pegsim_rate_deviation_percent",
			Help: "Percent deviation of the B->A window average from the exchange rate.",
		}, []string{"policy"}),
	}
	reg.MustRegister(
		m.runsStarted,
		m.runsFinished,
		m.runDuration,
		m.blocks,
		m.slashings,
		m.recordErrors,
		m.exchangeRate,
		m.cumulative,
		m.average,
		m.drift,
		m.rateDeviation,
	)
	return m
}

func (m *SimMetrics) ObserveRunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
}

func (m *SimMetrics) ObserveRunFinished(status string, seconds float64) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.runsFinished.WithLabelValues(status).Inc()
	m.runDuration.Observe(seconds)
}

func (m *SimMetrics) ObserveBlock(slashing bool) {
	if m == nil {
		return
	}
	m.blocks.Inc()
	if slashing {
		m.slashings.Inc()
	}
}

func (m *SimMetrics) ObserveRecordError() {
	if m == nil {
		return
	}
	m.recordErrors.Inc()
}

func (m *SimMetrics) SetExchangeRates(rateA, rateB float64) {
	if m == nil {
		return
	}
	m.exchangeRate.WithLabelValues("A").Set(rateA)
	m.exchangeRate.WithLabelValues("B").Set(rateB)
}

// SetOracle publishes a policy's latest cumulative prices and averages.
// Index 0 is B->A, index 1 is A->B.
func (m *SimMetrics) SetOracle(policy string, cum0, cum1 int64, avg0, avg1 float64) {
	if m == nil {
		return
	}
	m.cumulative.WithLabelValues(policy, "b_to_a").Set(float64(cum0))
	m.cumulative.WithLabelValues(policy, "a_to_b").Set(float64(cum1))
	m.average.WithLabelValues(policy, "b_to_a").Set(avg0)
	m.average.WithLabelValues(policy, "a_to_b").Set(avg1)
}

func (m *SimMetrics) SetDrift(policy string, percent float64) {
	if m == nil {
		return
	}
	m.drift.WithLabelValues(policy).Set(percent)
}

func (m *SimMetrics) SetRateDeviation(policy string, percent float64) {
	if m == nil {
		return
	}
	m.rateDeviation.WithLabelValues(policy).Set(percent)
}

// Handler serves g in the Prometheus exposition format. A nil g serves the
// default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
