package miner

// RunOutcome summarizes one past run's winning combination for consistency
// tracking. Slices are ordered newest run first.
type RunOutcome struct {
	Columns       []string
	GoodKeptPct   float64
	BadRemovedPct float64
}

const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// ColumnConsistency is how persistently one column keeps winning.
type ColumnConsistency struct {
	Column         string
	ConsistencyPct float64
	Appearances    int
}

// ComboTrend classifies the direction of the winning combinations' stats:
// the newest run is compared to the rolling average of the older runs with a
// five point band on either side counting as stable.
type ComboTrend struct {
	AvgGoodKeptPct   float64
	AvgBadRemovedPct float64
	Trend            string
}

const trendBandPct = 5.0

// ColumnConsistencies computes, per column, the share of recent runs whose
// winning combination contained it. A column in every run scores 100, a
// column in none scores 0 (and never appears in the output).
func ColumnConsistencies(outcomes []RunOutcome) []ColumnConsistency {
	if len(outcomes) == 0 {
		return nil
	}

	appearances := map[string]int{}
	order := []string{}
	for _, outcome := range outcomes {
		seen := map[string]bool{}
		for _, col := range outcome.Columns {
			if seen[col] {
				continue
			}
			seen[col] = true
			if appearances[col] == 0 {
				order = append(order, col)
			}
			appearances[col]++
		}
	}

	out := make([]ColumnConsistency, 0, len(order))
	for _, col := range order {
		out = append(out, ColumnConsistency{
			Column:         col,
			Appearances:    appearances[col],
			ConsistencyPct: float64(appearances[col]) / float64(len(outcomes)) * 100,
		})
	}
	return out
}

// Trend classifies the newest run against the rolling average of the older
// ones on bad removal. Fewer than two runs is always stable.
func Trend(outcomes []RunOutcome) ComboTrend {
	trend := ComboTrend{Trend: TrendStable}
	if len(outcomes) == 0 {
		return trend
	}

	var sumGood, sumBad float64
	for _, o := range outcomes {
		sumGood += o.GoodKeptPct
		sumBad += o.BadRemovedPct
	}
	trend.AvgGoodKeptPct = sumGood / float64(len(outcomes))
	trend.AvgBadRemovedPct = sumBad / float64(len(outcomes))

	if len(outcomes) < 2 {
		return trend
	}

	latest := outcomes[0].BadRemovedPct
	var olderSum float64
	for _, o := range outcomes[1:] {
		olderSum += o.BadRemovedPct
	}
	olderAvg := olderSum / float64(len(outcomes)-1)

	switch {
	case latest > olderAvg+trendBandPct:
		trend.Trend = TrendImproving
	case latest < olderAvg-trendBandPct:
		trend.Trend = TrendDeclining
	}

	return trend
}
