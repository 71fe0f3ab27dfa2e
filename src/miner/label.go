package miner

import (
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// LabelCandidates applies the good-trade rule to a batch of resolved
// candidates. The miner labels from the realized gain with its own threshold
// so a threshold change takes effect on the next run without a backfill.
// Candidates without a realized gain are skipped.
func LabelCandidates(candidates []model.TradeCandidate, goodTradeThresholdPct float64) map[uint]string {
	labels := make(map[uint]string, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if c.RealizedGainPct == nil {
			continue
		}
		labels[c.ID] = model.LabelFor(*c.RealizedGainPct, goodTradeThresholdPct)
	}
	return labels
}
