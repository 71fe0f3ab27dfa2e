package features

import (
	"context"
	"fmt"
	"time"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
)

// WhaleProvider aggregates recent confirmed on-chain activity around the
// candidate's pair, including whether the followed wallet itself traded.
type WhaleProvider struct {
	activity ActivitySource
	window   time.Duration
}

func NewWhaleProvider(activity ActivitySource, window time.Duration) *WhaleProvider {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &WhaleProvider{activity: activity, window: window}
}

func (p *WhaleProvider) Section() string { return model.SectionWhaleActivity }

func (p *WhaleProvider) Columns() []string {
	return []string{
		"whale_buys_5m",
		"whale_sells_5m",
		"whale_net_volume_usd_5m",
		"goat_wallet_active",
	}
}

func (p *WhaleProvider) Collect(
	ctx context.Context,
	candidate *model.TradeCandidate,
	asOf time.Time,
) (map[string]float64, error) {

	stats, err := p.activity.ActivityWindow(ctx, candidate.Pair, candidate.GoatWallet, asOf, p.window)
	if err != nil {
		return nil, fmt.Errorf("whale activity for %s: %w", candidate.Pair, err)
	}

	goatActive := 0.0
	if stats.GoatActive {
		goatActive = 1.0
	}

	return map[string]float64{
		"whale_buys_5m":           float64(stats.Buys),
		"whale_sells_5m":          float64(stats.Sells),
		"whale_net_volume_usd_5m": stats.NetVolumeUsd,
		"goat_wallet_active":      goatActive,
	}, nil
}
