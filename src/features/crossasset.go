package features

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// CrossAssetProvider tracks how the reference majors moved over the last
// 15 minutes. A candidate entered while the whole market is selling off
// behaves very differently from the same pattern in a quiet tape.
type CrossAssetProvider struct {
	prices  PriceSource
	symbols []string
}

func NewCrossAssetProvider(prices PriceSource, symbols []string) *CrossAssetProvider {
	if len(symbols) == 0 {
		symbols = []string{"BTCUSDT", "ETHUSDT"}
	}
	return &CrossAssetProvider{prices: prices, symbols: symbols}
}

func (p *CrossAssetProvider) Section() string { return model.SectionCrossAsset }

func (p *CrossAssetProvider) Columns() []string {
	cols := make([]string, 0, len(p.symbols))
	for _, sym := range p.symbols {
		cols = append(cols, columnForSymbol(sym))
	}
	return cols
}

func (p *CrossAssetProvider) Collect(
	ctx context.Context,
	candidate *model.TradeCandidate,
	asOf time.Time,
) (map[string]float64, error) {

	out := map[string]float64{}
	for _, sym := range p.symbols {
		ticks, err := p.prices.RecentPrices(ctx, sym, asOf, 16*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("reference prices for %s: %w", sym, err)
		}
		if len(ticks) < 2 {
			continue // reference feed gap, column stays null
		}

		base, ok := priceAtOrBefore(ticks, asOf.Add(-15*time.Minute))
		if !ok || base == 0 {
			continue
		}
		latest := ticks[len(ticks)-1].Price.InexactFloat64()
		out[columnForSymbol(sym)] = (latest - base) / base * 100
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no reference symbol had usable history")
	}

	return out, nil
}

func columnForSymbol(sym string) string {
	return strings.ToLower(sym) + "_change_15m"
}
