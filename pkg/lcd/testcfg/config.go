package testcfg

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds test-specific configuration for REST gateway acceptance tests
type Config struct {
	Limit       uint64        `env:"LCD_TEST_LIMIT" envDefault:"5"`
	HTTPTimeout time.Duration `env:"LCD_TEST_HTTP_TIMEOUT" envDefault:"30s"`
	BaseURL     string        `env:"LCD_TEST_BASE_URL" envDefault:"https://rest.cosmos.directory/cosmoshub"`
}

// parseConfig wraps env.Parse to return (Config, error) for use with env.Must
func parseConfig() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}

// New loads test configuration from environment variables
func New() Config {
	return env.Must(parseConfig())
}
