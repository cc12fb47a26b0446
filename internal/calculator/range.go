package calculator

import (
	"errors"
	"math"
)

// SeriesRange scans the most recent lookback values and returns the high and
// low. A lookback <= 0 scans the whole series.
func SeriesRange(values []float64, lookback int) (high, low float64, err error) {
	if len(values) == 0 {
		return 0, 0, errors.New("no values provided")
	}
	n := len(values)
	start := 0
	if lookback > 0 && n > lookback {
		start = n - lookback
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < n; i++ {
		if values[i] > high {
			high = values[i]
		}
		if values[i] < low {
			low = values[i]
		}
	}
	return high, low, nil
}

// MaxAbs returns the largest absolute value in the series, 0 when empty.
func MaxAbs(values []float64) float64 {
	high, low, err := SeriesRange(values, 0)
	if err != nil {
		return 0
	}
	return math.Max(math.Abs(high), math.Abs(low))
}

// RangePosition returns where current sits within [low, high] (0.0~1.0).
func RangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}
