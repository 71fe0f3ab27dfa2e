package miner

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
)

type Config struct {
	AnalysisWindowHours   int           `envconfig:"MINER_ANALYSIS_WINDOW_HOURS" default:"24"`
	GoodTradeThresholdPct float64       `envconfig:"MINER_GOOD_TRADE_THRESHOLD_PCT" default:"0.3"`
	MinFiltersInCombo     int           `envconfig:"MINER_MIN_FILTERS_IN_COMBO" default:"1"`
	TopK                  int           `envconfig:"MINER_TOP_K" default:"10"`
	GoodKeptFloorPct      float64       `envconfig:"MINER_GOOD_KEPT_FLOOR_PCT" default:"60"`
	MinImprovementPct     float64       `envconfig:"MINER_MIN_IMPROVEMENT_PCT" default:"5"`
	ConsistencyRuns       int           `envconfig:"MINER_CONSISTENCY_RUNS" default:"10"`
	MaxComboSize          int           `envconfig:"MINER_MAX_COMBO_SIZE" default:"4"`
	MinSamplesPerLabel    int           `envconfig:"MINER_MIN_SAMPLES_PER_LABEL" default:"5"`
	MiningInterval        time.Duration `envconfig:"MINER_INTERVAL" default:"10m"`
}

func GetConfig() Config {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		logger.WithError(err).Panic("Failed to load miner config")
	}
	return config
}
