package strategy

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DefaultRiskPercentage float64 `envconfig:"DEFAULT_RISK_PERCENTAGE" default:"1"`
	DefaultCommission     float64 `envconfig:"DEFAULT_COMMISSION" default:"4"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
