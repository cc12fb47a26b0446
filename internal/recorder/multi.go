package recorder

import "errors"

// MultiRecorder fans every call out to each of its recorders.
type MultiRecorder struct {
	recorders []Recorder
}

// NewMultiRecorder combines recorders. With none it behaves like NoopRecorder.
func NewMultiRecorder(recs ...Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recs}
}

func (m *MultiRecorder) each(fn func(Recorder) error) error {
	var errs []error
	for _, r := range m.recorders {
		if err := fn(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiRecorder) RecordRun(info *RunInfo) error {
	return m.each(func(r Recorder) error { return r.RecordRun(info) })
}

func (m *MultiRecorder) RecordSample(s *Sample) error {
	return m.each(func(r Recorder) error { return r.RecordSample(s) })
}

func (m *MultiRecorder) RecordWindow(w *Window) error {
	return m.each(func(r Recorder) error { return r.RecordWindow(w) })
}

func (m *MultiRecorder) FinishRun(sum *RunSummary) error {
	return m.each(func(r Recorder) error { return r.FinishRun(sum) })
}

func (m *MultiRecorder) Close() error {
	return m.each(func(r Recorder) error { return r.Close() })
}
