package model

// Series holds the per-block outputs of one price oracle.
// Every slice has exactly one entry per processed block.
type Series struct {
	Cum0 []int64   // cumulative B->A price
	Cum1 []int64   // cumulative A->B price
	Avg0 []float64 // windowed average B->A price, flat between boundaries
	Avg1 []float64 // windowed average A->B price, flat between boundaries
}

// Len returns the number of processed blocks.
func (s *Series) Len() int { return len(s.Cum0) }

// Append adds one block worth of outputs.
func (s *Series) Append(cum0, cum1 int64, avg0, avg1 float64) {
	s.Cum0 = append(s.Cum0, cum0)
	s.Cum1 = append(s.Cum1, cum1)
	s.Avg0 = append(s.Avg0, avg0)
	s.Avg1 = append(s.Avg1, avg1)
}

// LastAverages returns the most recent window averages, or zeros when empty.
func (s *Series) LastAverages() (float64, float64) {
	n := len(s.Avg0)
	if n == 0 {
		return 0, 0
	}
	return s.Avg0[n-1], s.Avg1[n-1]
}

// Observation is what one ExecuteBlock call appended.
type Observation struct {
	Block        Block
	Cum0         int64
	Cum1         int64
	Avg0         float64
	Avg1         float64
	WindowClosed bool // a new average was computed at this block
	Sampled      bool // the accumulator was committed at this block
	RateA        float64
	RateB        float64
}
