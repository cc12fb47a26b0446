package scenario

import "PegSentinel/internal/model"

// Source yields the ordered step stream fed to every oracle of a run.
type Source interface {
	// Next returns the next step, or false when the stream is exhausted.
	Next() (model.Step, bool)
	Name() string
}

// Replay returns a fixed list of steps, for tests and reproducing traces.
type Replay struct {
	Steps []model.Step
	pos   int
}

func (r *Replay) Name() string { return "replay" }

func (r *Replay) Next() (model.Step, bool) {
	if r.pos >= len(r.Steps) {
		return model.Step{}, false
	}
	s := r.Steps[r.pos]
	r.pos++
	return s, true
}
