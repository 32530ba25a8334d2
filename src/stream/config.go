package stream

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HeartbeatInterval  time.Duration `envconfig:"STREAM_HEARTBEAT_INTERVAL" default:"30s"`
	ReconnectDelay     time.Duration `envconfig:"STREAM_RECONNECT_DELAY" default:"5s"`
	HandshakeTimeout   time.Duration `envconfig:"STREAM_HANDSHAKE_TIMEOUT" default:"15s"`
	InsecureSkipVerify bool          `envconfig:"STREAM_INSECURE_SKIP_VERIFY" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 15 * time.Second
	}
	return c
}
