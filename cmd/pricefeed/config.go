package pricefeed

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Symbols      string        `envconfig:"PRICEFEED_SYMBOLS" default:"SOL_USDT,BTC_USDT,ETH_USDT"`
	Limit        int           `envconfig:"PRICEFEED_LIMIT" default:"120"`
	PollInterval time.Duration `envconfig:"PRICEFEED_POLL_INTERVAL" default:"30s"`
}

// SymbolPairs splits the configured list into (base, quote) pairs.
func (c *Config) SymbolPairs() [][2]string {
	out := make([][2]string, 0)
	for _, raw := range strings.Split(c.Symbols, ",") {
		parts := strings.Split(strings.TrimSpace(raw), "_")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		out = append(out, [2]string{parts[0], parts[1]})
	}
	return out
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
