package logging

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`    // "debug", "info", "warn", "error"
	Format     string `envconfig:"LOG_FORMAT" default:"text"`   // "text" or "json"
	Output     string `envconfig:"LOG_OUTPUT" default:"both"`   // "console", "file" or "both"
	File       string `envconfig:"LOG_FILE" default:"app.log"`
	MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"10"`
	MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	MaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"30"`
	Compress   bool   `envconfig:"LOG_COMPRESS" default:"false"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
