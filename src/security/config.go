package security

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config carries the bcrypt hashes of the accepted API tokens. The webhook
// token is used by the on-chain event relay, the executor token by the
// wallet/order executor reporting fills.
type Config struct {
	WebhookTokenHash  string `envconfig:"WEBHOOK_TOKEN_HASH"`
	ExecutorTokenHash string `envconfig:"EXECUTOR_TOKEN_HASH"`
	ReaderTokenHash   string `envconfig:"READER_TOKEN_HASH"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
