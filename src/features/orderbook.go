package features

import (
	"context"
	"fmt"
	"time"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// OrderBookProvider reads the latest depth snapshot held by the stream
// consumer. A stale or missing book fails the section, not the sample.
type OrderBookProvider struct {
	books BookSource
}

func NewOrderBookProvider(books BookSource) *OrderBookProvider {
	return &OrderBookProvider{books: books}
}

func (p *OrderBookProvider) Section() string { return model.SectionOrderBook }

func (p *OrderBookProvider) Columns() []string {
	return []string{
		"bid_ask_spread_pct",
		"bid_depth_usd",
		"ask_depth_usd",
		"book_imbalance",
	}
}

func (p *OrderBookProvider) Collect(
	ctx context.Context,
	candidate *model.TradeCandidate,
	asOf time.Time,
) (map[string]float64, error) {

	book, err := p.books.Latest(candidate.Pair)
	if err != nil {
		return nil, fmt.Errorf("order book for %s: %w", candidate.Pair, err)
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil, fmt.Errorf("empty order book for %s", candidate.Pair)
	}

	bestBid := book.Bids[0][0]
	bestAsk := book.Asks[0][0]
	if bestBid <= 0 || bestAsk <= 0 {
		return nil, fmt.Errorf("degenerate top of book for %s", candidate.Pair)
	}

	mid := (bestBid + bestAsk) / 2

	bidDepth := depthUsd(book.Bids)
	askDepth := depthUsd(book.Asks)

	out := map[string]float64{
		"bid_ask_spread_pct": (bestAsk - bestBid) / mid * 100,
		"bid_depth_usd":      bidDepth,
		"ask_depth_usd":      askDepth,
	}
	if bidDepth+askDepth > 0 {
		out["book_imbalance"] = (bidDepth - askDepth) / (bidDepth + askDepth)
	}

	return out, nil
}

func depthUsd(levels [][]float64) float64 {
	total := 0.0
	for _, lvl := range levels {
		if len(lvl) < 2 {
			continue
		}
		total += lvl[0] * lvl[1]
	}
	return total
}
