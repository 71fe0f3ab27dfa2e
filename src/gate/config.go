package gate

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// NoDataPolicy values. What the gate does when it cannot see enough price
// history to judge momentum is an explicit operator choice, not a silent
// default: "allow" keeps the historical behavior, "reject" treats a blind
// gate as a closed gate.
const (
	NoDataAllow  = "allow"
	NoDataReject = "reject"
)

type Config struct {
	LookbackMinutes int           `envconfig:"GATE_LOOKBACK_MINUTES" default:"3"`
	MinMomentumPct  float64       `envconfig:"GATE_MIN_MOMENTUM_PCT" default:"0.20"`
	NoDataPolicy    string        `envconfig:"GATE_NO_DATA_POLICY" default:"allow"`
	EvalTimeout     time.Duration `envconfig:"GATE_EVAL_TIMEOUT" default:"2s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
