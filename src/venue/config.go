package venue

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BridgeURL string        `envconfig:"VENUE_BRIDGE_URL" default:"http://127.0.0.1:18812"`
	Timeout   time.Duration `envconfig:"VENUE_TIMEOUT" default:"15s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
