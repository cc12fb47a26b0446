package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"PegSentinel/internal/logger"
)

type sampleRow struct {
	RunID   string  `parquet:"name=run_id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Policy  string  `parquet:"name=policy, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Number  int64   `parquet:"name=block_number, type=INT64"`
	Time    int64   `parquet:"name=block_time, type=INT64"`
	Cum0    int64   `parquet:"name=cum0, type=INT64"`
	Cum1    int64   `parquet:"name=cum1, type=INT64"`
	Avg0    float64 `parquet:"name=avg0, type=DOUBLE"`
	Avg1    float64 `parquet:"name=avg1, type=DOUBLE"`
	RateA   float64 `parquet:"name=rate_a, type=DOUBLE"`
	RateB   float64 `parquet:"name=rate_b, type=DOUBLE"`
	Sampled bool    `parquet:"name=sampled, type=BOOLEAN"`
}

type windowRow struct {
	RunID  string  `parquet:"name=run_id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Policy string  `parquet:"name=policy, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Number int64   `parquet:"name=block_number, type=INT64"`
	Time   int64   `parquet:"name=block_time, type=INT64"`
	Avg0   float64 `parquet:"name=avg0, type=DOUBLE"`
	Avg1   float64 `parquet:"name=avg1, type=DOUBLE"`
}

type parquetRun struct {
	samples []*sampleRow
	windows []*windowRow
}

// ParquetRecorder buffers each run in memory and writes
// <dir>/<run_id>_samples.parquet and <dir>/<run_id>_windows.parquet when
// the run finishes.
type ParquetRecorder struct {
	dir  string
	mu   sync.Mutex
	runs map[string]*parquetRun
}

// NewParquetRecorder creates dir if needed.
func NewParquetRecorder(dir string) (*ParquetRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create parquet dir: %w", err)
	}
	return &ParquetRecorder{dir: dir, runs: make(map[string]*parquetRun)}, nil
}

func (p *ParquetRecorder) run(runID string) *parquetRun {
	r, ok := p.runs[runID]
	if !ok {
		r = &parquetRun{}
		p.runs[runID] = r
	}
	return r
}

func (p *ParquetRecorder) RecordRun(info *RunInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.run(info.RunID)
	return nil
}

func (p *ParquetRecorder) RecordSample(s *Sample) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.run(s.RunID)
	r.samples = append(r.samples, &sampleRow{
		RunID: s.RunID, Policy: s.Policy, Number: s.Number, Time: s.Time,
		Cum0: s.Cum0, Cum1: s.Cum1, Avg0: s.Avg0, Avg1: s.Avg1,
		RateA: s.RateA, RateB: s.RateB, Sampled: s.Sampled,
	})
	return nil
}

func (p *ParquetRecorder) RecordWindow(w *Window) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.run(w.RunID)
	r.windows = append(r.windows, &windowRow{
		RunID: w.RunID, Policy: w.Policy, Number: w.Number, Time: w.Time,
		Avg0: w.Avg0, Avg1: w.Avg1,
	})
	return nil
}

func (p *ParquetRecorder) FinishRun(sum *RunSummary) error {
	p.mu.Lock()
	r, ok := p.runs[sum.RunID]
	delete(p.runs, sum.RunID)
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("finish run %s: run was never recorded", sum.RunID)
	}
	return p.flush(sum.RunID, r)
}

// SamplesPath returns where a run's samples are written.
func (p *ParquetRecorder) SamplesPath(runID string) string {
	return filepath.Join(p.dir, runID+"_samples.parquet")
}

// WindowsPath returns where a run's window averages are written.
func (p *ParquetRecorder) WindowsPath(runID string) string {
	return filepath.Join(p.dir, runID+"_windows.parquet")
}

func (p *ParquetRecorder) flush(runID string, r *parquetRun) error {
	err := errors.Join(
		writeParquet(p.SamplesPath(runID), new(sampleRow), r.samples),
		writeParquet(p.WindowsPath(runID), new(windowRow), r.windows),
	)
	if err != nil {
		return fmt.Errorf("flush run %s: %w", runID, err)
	}
	logger.GetLogger().WithComponent("recorder").WithFields(logger.Fields{
		"run_id":  runID,
		"samples": len(r.samples),
		"windows": len(r.windows),
	}).Info("parquet files written")
	return nil
}

// Close writes every run that never finished. A run that fails to write
// does not stop the others.
func (p *ParquetRecorder) Close() error {
	p.mu.Lock()
	runs := p.runs
	p.runs = make(map[string]*parquetRun)
	p.mu.Unlock()

	var errs []error
	for id, r := range runs {
		errs = append(errs, p.flush(id, r))
	}
	return errors.Join(errs...)
}

// writeParquet writes rows to path. On failure the partial file is removed.
func writeParquet[T any](path string, schema *T, rows []*T) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close parquet: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(file), schema, 1)
	if err != nil {
		return fmt.Errorf("parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			return errors.Join(fmt.Errorf("write parquet row: %w", err), pw.WriteStop())
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet: %w", err)
	}
	return nil
}
