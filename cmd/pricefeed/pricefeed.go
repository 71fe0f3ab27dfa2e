package pricefeed

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/model"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/repository"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/utils"
)

type tickWriter interface {
	UpsertTicks(ctx context.Context, ticks []model.PriceTick) error
}

// Feed polls minute candles from Binance and stores their closes as price
// ticks. The gate and the trail recorder read these ticks for momentum and
// outcome computation; re-polling the same minutes just refreshes the rows.
type Feed struct {
	Log      *logger.Entry
	Config   *Config
	Prices   tickWriter
	exchange goex.API
}

func New(log *logger.Entry, prices *repository.PriceRepository) *Feed {
	return &Feed{
		Log:    log,
		Config: GetConfig(),
		Prices: prices,
	}
}

func (*Feed) newBinanceInstance() *binance.Binance {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return binance.NewWithConfig(apiConfig)
}

// Start polls until the context is cancelled. A failed poll for one symbol
// logs and moves on, the other symbols still refresh.
func (f *Feed) Start(ctx context.Context) error {
	if f.exchange == nil {
		f.exchange = f.newBinanceInstance()
	}

	ticker := time.NewTicker(f.Config.PollInterval)
	defer ticker.Stop()

	f.Log.WithField("symbols", f.Config.Symbols).Info("Price feed started")

	f.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			f.Log.Info("Price feed stopped")
			return nil

		case <-ticker.C:
			f.pollAll(ctx)
		}
	}
}

func (f *Feed) pollAll(ctx context.Context) {
	for _, pair := range f.Config.SymbolPairs() {
		if err := f.pollSymbol(ctx, pair[0], pair[1]); err != nil {
			f.Log.
				WithField("symbol", pair[0]+pair[1]).
				WithError(err).
				Error("Failed to poll symbol")
		}
	}
}

func (f *Feed) pollSymbol(ctx context.Context, base, quote string) error {
	targetSymbol := goex.NewCurrencyPair(goex.Currency{Symbol: base}, goex.Currency{Symbol: quote})

	klines, err := f.exchange.GetKlineRecords(
		targetSymbol,
		goex.KLINE_PERIOD_1MIN,
		f.Config.Limit,
		goex.OptionalParameter{},
	)
	if err != nil {
		return err
	}

	symbol := base + quote
	ticks := make([]model.PriceTick, 0, len(klines))
	for i := range klines {
		k := klines[i]
		ticks = append(ticks, model.PriceTick{
			Symbol:   symbol,
			Datetime: utils.ResetTime(time.Unix(k.Timestamp, 0).UTC(), "minute"),
			Price:    decimal.NewFromFloat(k.Close),
			Volume:   decimal.NewFromFloat(k.Vol),
		})
	}

	if err := f.Prices.UpsertTicks(ctx, ticks); err != nil {
		return err
	}

	f.Log.WithFields(logger.Fields{
		"symbol": symbol,
		"ticks":  len(ticks),
	}).Debug("Price ticks refreshed")

	return nil
}
