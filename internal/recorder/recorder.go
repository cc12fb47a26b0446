package recorder

import (
	"time"

	"PegSentinel/internal/model"
)

// RunInfo describes a simulation run when it starts.
type RunInfo struct {
	RunID     string
	Seed      int64
	Blocks    int64
	Policies  []string
	StartedAt time.Time
}

// Sample is one recorded block of one policy's oracle.
type Sample struct {
	RunID   string
	Policy  string
	Number  int64
	Time    int64
	Cum0    int64
	Cum1    int64
	Avg0    float64
	Avg1    float64
	RateA   float64
	RateB   float64
	Sampled bool
}

// NewSample flattens an observation for storage.
func NewSample(runID, policy string, obs model.Observation) *Sample {
	return &Sample{
		RunID:   runID,
		Policy:  policy,
		Number:  obs.Block.Number,
		Time:    obs.Block.Time,
		Cum0:    obs.Cum0,
		Cum1:    obs.Cum1,
		Avg0:    obs.Avg0,
		Avg1:    obs.Avg1,
		RateA:   obs.RateA,
		RateB:   obs.RateB,
		Sampled: obs.Sampled,
	}
}

// Window is a newly computed window average.
type Window struct {
	RunID  string
	Policy string
	Number int64
	Time   int64
	Avg0   float64
	Avg1   float64
}

// Run statuses.
const (
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
	StatusFailed    = "FAILED"
)

// RunSummary closes a run.
type RunSummary struct {
	RunID        string
	FinishedAt   time.Time
	Processed    int64
	Slashings    int
	MaxDrift     float64 // percent, largest |drift| of any policy vs the baseline
	MeanDrift    float64
	MaxDeviation float64 // percent, largest |avg price vs exchange rate|
	Status       string
	Error        string
}

// Recorder persists simulation runs for later analysis.
type Recorder interface {
	RecordRun(info *RunInfo) error
	RecordSample(s *Sample) error
	RecordWindow(w *Window) error
	FinishRun(sum *RunSummary) error
	Close() error
}
