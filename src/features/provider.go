package features

import (
	"context"
	"time"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/connectors"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/repository"
)

// Provider captures one named section of trail columns. Providers fail
// independently: an error from Collect nulls only that section's columns in
// the sample, never the whole sample.
type Provider interface {
	Section() string
	Columns() []string
	Collect(ctx context.Context, candidate *model.TradeCandidate, asOf time.Time) (map[string]float64, error)
}

// PriceSource is the slice of PriceRepository the providers need.
type PriceSource interface {
	RecentPrices(ctx context.Context, symbol string, until time.Time, window time.Duration) ([]model.PriceTick, error)
}

// BookSource delivers the latest order book snapshot for a symbol.
type BookSource interface {
	Latest(symbol string) (*connectors.OrderBook, error)
}

// ActivitySource is the slice of WhaleEventRepository the providers need.
type ActivitySource interface {
	ActivityWindow(ctx context.Context, pair, goatWallet string, asOf time.Time, window time.Duration) (*repository.ActivityStats, error)
}

// DefaultProviders wires up the full section set used by the trail recorder.
func DefaultProviders(prices PriceSource, books BookSource, activity ActivitySource, cfg Config) []Provider {
	return []Provider{
		NewMomentumProvider(prices),
		NewOrderBookProvider(books),
		NewWhaleProvider(activity, cfg.WhaleWindow),
		NewSessionProvider(),
		NewCrossAssetProvider(prices, cfg.ReferenceSymbols),
		NewPatternProvider(prices, activity, cfg.WhaleWindow),
	}
}
