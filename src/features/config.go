package features

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	WhaleWindow      time.Duration `envconfig:"FEATURES_WHALE_WINDOW" default:"5m"`
	ReferenceSymbols []string      `envconfig:"FEATURES_REFERENCE_SYMBOLS" default:"BTCUSDT,ETHUSDT"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
