package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds configuration loaded from environment variables.
// Every value can be overridden by the matching command line flag.
type Config struct {
	// Node endpoints, exactly one is used
	GRPCEndpoint string `env:"STAKESNAP_GRPC"`
	LCDEndpoint  string `env:"STAKESNAP_LCD"`

	// Connection configuration
	ConnectTimeout    time.Duration `env:"STAKESNAP_CONNECT_TIMEOUT" envDefault:"3s"`
	HTTPClientTimeout time.Duration `env:"STAKESNAP_HTTP_CLIENT_TIMEOUT" envDefault:"30s"`
	RequestsPerSecond float64       `env:"STAKESNAP_REQUESTS_PER_SECOND" envDefault:"0"`
	RequestBurst      int           `env:"STAKESNAP_REQUEST_BURST" envDefault:"1"`

	// Crawl configuration
	PageLimit       uint64 `env:"STAKESNAP_PAGE_LIMIT" envDefault:"100"`
	Workers         int    `env:"STAKESNAP_WORKERS" envDefault:"1"`
	ValidatorStatus string `env:"STAKESNAP_VALIDATOR_STATUS"`

	// Output configuration
	Output       string `env:"STAKESNAP_OUTPUT" envDefault:"stakers.csv"`
	Bech32Prefix string `env:"STAKESNAP_BECH32_PREFIX"`
	DatabaseURL  string `env:"STAKESNAP_DATABASE_URL"`

	// Logging configuration
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogHumanFriendly bool   `env:"LOG_HUMAN_FRIENDLY" envDefault:"true"`
}

// New loads all configuration from environment variables
func New() (Config, error) {
	return env.ParseAs[Config]()
}
