package features

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// PatternProvider derives composite scores from price action and on-chain
// flow. The individual inputs already exist as their own columns; the scores
// give the miner a pre-combined view it can threshold on one column.
type PatternProvider struct {
	prices      PriceSource
	activity    ActivitySource
	whaleWindow time.Duration
}

func NewPatternProvider(prices PriceSource, activity ActivitySource, whaleWindow time.Duration) *PatternProvider {
	if whaleWindow <= 0 {
		whaleWindow = 5 * time.Minute
	}
	return &PatternProvider{prices: prices, activity: activity, whaleWindow: whaleWindow}
}

func (p *PatternProvider) Section() string { return model.SectionPatternScores }

func (p *PatternProvider) Columns() []string {
	return []string{
		"momentum_score",
		"buy_pressure_score",
	}
}

func (p *PatternProvider) Collect(
	ctx context.Context,
	candidate *model.TradeCandidate,
	asOf time.Time,
) (map[string]float64, error) {

	ticks, err := p.prices.RecentPrices(ctx, candidate.Pair, asOf, 6*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("load recent prices: %w", err)
	}
	if len(ticks) < 2 {
		return nil, fmt.Errorf("not enough ticks for %s", candidate.Pair)
	}

	out := map[string]float64{}

	latest := ticks[len(ticks)-1].Price.InexactFloat64()
	if base, ok := priceAtOrBefore(ticks, asOf.Add(-5*time.Minute)); ok && base != 0 {
		change5m := (latest - base) / base * 100
		// squashed into (-1, 1): +-2% over 5 minutes saturates the score
		out["momentum_score"] = math.Tanh(change5m / 2)
	}

	stats, err := p.activity.ActivityWindow(ctx, candidate.Pair, candidate.GoatWallet, asOf, p.whaleWindow)
	if err == nil && stats.Buys+stats.Sells > 0 {
		out["buy_pressure_score"] = float64(stats.Buys-stats.Sells) / float64(stats.Buys+stats.Sells)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no pattern score computable for %s", candidate.Pair)
	}

	return out, nil
}
