package config

import (
	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Configuration holds the static settings the CLI runs with. Values come
// from the environment, optionally seeded from a .env file.
type Configuration struct {
	DSN            string `env:"PARTNER_METRICS_DSN"`                          // mariadb:// or mysql:// URL, or a native driver DSN
	ChunkSize      int    `env:"PARTNER_METRICS_CHUNK_SIZE" envDefault:"1000"` // rows per ingestion bulk insert
	Workers        int    `env:"PARTNER_METRICS_WORKERS" envDefault:"1"`       // segment workers per date
	PartnerAPIBase string `env:"PARTNER_METRICS_API_BASE"`                     // partner transaction API base URL
	PartnerAPIKey  string `env:"PARTNER_METRICS_API_KEY"`                      // partner API access token
	HTTPTimeoutSec int    `env:"PARTNER_METRICS_HTTP_TIMEOUT" envDefault:"30"`
}

// Load reads the environment into a Configuration. A missing .env file is
// not an error; explicit environment variables always win.
func Load() (Configuration, error) {
	_ = godotenv.Load()
	var cfg Configuration
	if err := env.Parse(&cfg); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}
