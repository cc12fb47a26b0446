package recorder

// NoopRecorder is used when no storage is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunInfo) error    { return nil }
func (n *NoopRecorder) RecordSample(_ *Sample) error  { return nil }
func (n *NoopRecorder) RecordWindow(_ *Window) error  { return nil }
func (n *NoopRecorder) FinishRun(_ *RunSummary) error { return nil }
func (n *NoopRecorder) Close() error                  { return nil }
