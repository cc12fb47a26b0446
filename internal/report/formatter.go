package report

import (
	"fmt"
	"strings"
	"time"

	"PegSentinel/internal/calculator"
	"PegSentinel/internal/hub"
	"PegSentinel/internal/model"
	"PegSentinel/internal/scenario"
)

// FormatRunSummary formats a finished run as plain text.
func FormatRunSummary(res *scenario.Result) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("PegSentinel run %s | %s\n", res.RunID, res.StartedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("status: %s | source: %s | seed: %d\n", res.Status, res.Source, res.Seed))
	b.WriteString(fmt.Sprintf("blocks: %d | slashings: %d | took %s\n\n",
		res.Processed, res.Slashings, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond)))

	if base := res.Baseline(); base != nil {
		b.WriteString(FormatPools(base.Final))
		if q := res.Quote; q != nil {
			b.WriteString(fmt.Sprintf("  reverse A->B: offer %d A to keep %d -> %d B\n", q.GrossA, q.NetA, q.MintB))
		}
		b.WriteString(formatRateHistory(res.RatesB))
		b.WriteString("\n")
	}

	if len(res.Policies) > 0 {
		b.WriteString(FormatPolicies(res.Policies))
	}
	return b.String()
}

// FormatPools formats the final pool balances and exchange rates.
func FormatPools(s hub.State) string {
	var b strings.Builder
	b.WriteString("pools:\n")
	b.WriteString(fmt.Sprintf("  A: bonded %d | issued %d | rate %.6f\n", s.A.Bonded, s.A.Issued, s.A.Rate()))
	b.WriteString(fmt.Sprintf("  B: bonded %d | issued %d | rate %.6f\n", s.B.Bonded, s.B.Issued, s.B.Rate()))
	b.WriteString(fmt.Sprintf("  last reward block: %d (t=%d)\n", s.LastRewardBlock.Number, s.LastRewardBlock.Time))
	return b.String()
}

func formatRateHistory(ratesB []float64) string {
	high, low, err := calculator.SeriesRange(ratesB, 0)
	if err != nil {
		return ""
	}
	last := ratesB[len(ratesB)-1]
	pos, err := calculator.RangePosition(last, high, low)
	if err != nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  B rate range: %.6f ~ %.6f (now at %.0f%% of range)\n", low, high, pos*100))
	if sma, err := calculator.CalculateSMA(ratesB, model.BlocksPerDay); err == nil {
		b.WriteString(fmt.Sprintf("  B rate 1-day SMA: %.6f (%+.4f%% vs now)\n", sma, calculator.PercentChange(last, sma)))
	}
	return b.String()
}

// FormatPolicies formats per-policy accumulator state and drift against the
// first policy.
func FormatPolicies(policies []scenario.PolicyResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("oracles (drift vs %s):\n", policies[0].Policy))
	for i, p := range policies {
		b.WriteString(fmt.Sprintf("  %-15s cum B->A %d | cum A->B %d\n", p.Policy, p.Cum0, p.Cum1))
		b.WriteString(fmt.Sprintf("  %-15s avg B->A %.2f | avg A->B %.2f\n", "", p.Avg0, p.Avg1))
		if i > 0 {
			b.WriteString(fmt.Sprintf("  %-15s drift max %.4f%% | mean %.4f%%\n", "", p.MaxDrift, p.MeanDrift))
		}
		b.WriteString(fmt.Sprintf("  %-15s avg vs rate max %.4f%%\n", "", p.MaxDeviation))
	}
	return b.String()
}
