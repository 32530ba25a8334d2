package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver       string `envconfig:"DB_DRIVER" default:"sqlite"`          // "postgres" or "sqlite"
	DatabaseURL  string `envconfig:"DATABASE_URL" default:"strategies.db"` // postgres DSN or sqlite file
	GormLogLevel int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
	MaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
