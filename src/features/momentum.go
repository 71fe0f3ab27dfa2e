package features

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// MomentumProvider computes short-horizon price change columns from stored
// ticks. At minute offset 0 these describe the entry moment, which also makes
// the gate's own signal visible to the miner through the trail.
type MomentumProvider struct {
	prices PriceSource
}

func NewMomentumProvider(prices PriceSource) *MomentumProvider {
	return &MomentumProvider{prices: prices}
}

func (p *MomentumProvider) Section() string { return model.SectionPriceMomentum }

func (p *MomentumProvider) Columns() []string {
	return []string{
		"price_change_1m",
		"price_change_3m",
		"price_change_5m",
		"volatility_pct",
	}
}

func (p *MomentumProvider) Collect(
	ctx context.Context,
	candidate *model.TradeCandidate,
	asOf time.Time,
) (map[string]float64, error) {

	ticks, err := p.prices.RecentPrices(ctx, candidate.Pair, asOf, 6*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("load recent prices: %w", err)
	}
	if len(ticks) < 2 {
		return nil, fmt.Errorf("not enough ticks for %s at %s", candidate.Pair, asOf)
	}

	latest := ticks[len(ticks)-1].Price.InexactFloat64()

	out := map[string]float64{}
	for col, window := range map[string]time.Duration{
		"price_change_1m": 1 * time.Minute,
		"price_change_3m": 3 * time.Minute,
		"price_change_5m": 5 * time.Minute,
	} {
		base, ok := priceAtOrBefore(ticks, asOf.Add(-window))
		if !ok || base == 0 {
			continue // column stays null when the sub-window has no base tick
		}
		out[col] = (latest - base) / base * 100
	}

	if vol, ok := volatilityPct(ticks); ok {
		out["volatility_pct"] = vol
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no momentum sub-window computable for %s", candidate.Pair)
	}

	return out, nil
}

// priceAtOrBefore finds the last tick at or before cutoff. Ticks ascending.
func priceAtOrBefore(ticks []model.PriceTick, cutoff time.Time) (float64, bool) {
	for i := len(ticks) - 1; i >= 0; i-- {
		if !ticks[i].Datetime.After(cutoff) {
			return ticks[i].Price.InexactFloat64(), true
		}
	}
	return 0, false
}

// volatilityPct is the population stddev of tick-to-tick returns, in percent.
func volatilityPct(ticks []model.PriceTick) (float64, bool) {
	if len(ticks) < 3 {
		return 0, false
	}

	returns := make([]float64, 0, len(ticks)-1)
	for i := 1; i < len(ticks); i++ {
		prev := ticks[i-1].Price.InexactFloat64()
		if prev == 0 {
			continue
		}
		returns = append(returns, (ticks[i].Price.InexactFloat64()-prev)/prev*100)
	}
	if len(returns) < 2 {
		return 0, false
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance), true
}
