package calculator

import (
	"errors"
	"fmt"
)

var ErrEmptyWindow = errors.New("window has no elapsed time")

// WindowAverage returns the time-weighted average price between two
// observations of a cumulative price accumulator.
func WindowAverage(cumEnd, cumStart, timeEnd, timeStart int64) (float64, error) {
	elapsed := timeEnd - timeStart
	if elapsed <= 0 {
		return 0, fmt.Errorf("%w: %d..%d", ErrEmptyWindow, timeStart, timeEnd)
	}
	return float64(cumEnd-cumStart) / float64(elapsed), nil
}
