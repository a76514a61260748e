package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Client configures the bruhbug CLI: where the API lives and how submissions are watched.
type Client struct {
	APIURL       string        `env:"BRUHBUG_API_URL"       envDefault:"http://localhost:8080"`
	Token        string        `env:"BRUHBUG_TOKEN"`
	RequestLimit time.Duration `env:"BRUHBUG_HTTP_TIMEOUT"  envDefault:"10s"`

	Watch WatchConfig `envPrefix:"BRUHBUG_WATCH_"`
}

type WatchConfig struct {
	Mode         string        `env:"MODE"          envDefault:"push+poll"`
	Deadline     time.Duration `env:"DEADLINE"      envDefault:"10s"`
	PollGrace    time.Duration `env:"POLL_GRACE"    envDefault:"2s"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	PollAttempts int           `env:"POLL_ATTEMPTS" envDefault:"8"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"3s"`
}

func LoadClient() (Client, error) {
	if err := loadDotEnv(); err != nil {
		return Client{}, err
	}
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse client config: %w", err)
	}
	if cfg.RequestLimit <= 0 {
		cfg.RequestLimit = 10 * time.Second
	}
	return cfg, nil
}
