package calculator

import "errors"

// PercentChange returns the signed change from previous to current, in
// percent: negative when current is below previous. Equal values and a zero
// previous value both give 0. Callers wanting a magnitude take math.Abs.
func PercentChange(current, previous float64) float64 {
	if current == previous || previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// DriftSeries compares two series index by index, returning the percent
// change of observed against baseline. Both series must be the same length.
func DriftSeries(observed, baseline []float64) ([]float64, error) {
	if len(observed) != len(baseline) {
		return nil, errors.New("series lengths differ")
	}
	out := make([]float64, len(observed))
	for i := range observed {
		out[i] = PercentChange(observed[i], baseline[i])
	}
	return out, nil
}

// RateDeviation compares an average oracle price against the exchange rate
// it should track. avg is the output for notional input tokens, so avg /
// notional is the implied rate. Indices with no average yet give 0.
func RateDeviation(avg, rates []float64, notional float64) ([]float64, error) {
	if len(avg) != len(rates) {
		return nil, errors.New("series lengths differ")
	}
	if notional <= 0 {
		return nil, errors.New("notional must be positive")
	}
	out := make([]float64, len(avg))
	for i := range avg {
		if avg[i] == 0 {
			continue
		}
		out[i] = PercentChange(avg[i]/notional, rates[i])
	}
	return out, nil
}
