package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AggregatorBaseURL string        `envconfig:"AGGREGATOR_BASE_URL" default:"https://quote-api.example.com"`
	AggregatorTimeout time.Duration `envconfig:"AGGREGATOR_TIMEOUT" default:"5s"`

	OrderBookWSURL    string        `envconfig:"ORDERBOOK_WS_URL" default:""`
	OrderBookMaxStale time.Duration `envconfig:"ORDERBOOK_MAX_STALE" default:"30s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
