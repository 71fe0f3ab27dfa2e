package trail

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	TrackingWindowMinutes int           `envconfig:"TRAIL_TRACKING_WINDOW_MINUTES" default:"15"`
	ProviderTimeout       time.Duration `envconfig:"TRAIL_PROVIDER_TIMEOUT" default:"3s"`
	GoodTradeThresholdPct float64       `envconfig:"GOOD_TRADE_THRESHOLD_PCT" default:"0.3"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
