package security

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	CredentialsKey string `envconfig:"STRATEGY_CREDENTIALS_KEY" default:"0TyeJiKXjRHBhbx6xEl98vXPPYjEX3Jqnxmn7qWjBO4="`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
