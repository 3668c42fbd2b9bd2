package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Token    string  `env:"TOKEN,required,notEmpty"`
	AdminIDs []int64 `env:"ADMIN_IDS"`

	DBPath   string `env:"DB_PATH"   envDefault:"newsgram.sqlite"`
	MediaDir string `env:"MEDIA_DIR" envDefault:"data/media"`

	Channels            []string      `env:"CHANNELS"`
	BackfillLimit       int           `env:"BACKFILL_LIMIT"        envDefault:"5"`
	PollInterval        time.Duration `env:"POLL_INTERVAL"         envDefault:"1m"`
	DeliveriesPerSecond int           `env:"DELIVERIES_PER_SECOND" envDefault:"20"`

	SentryDSN string `env:"SENTRY_DSN"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.BackfillLimit < 0 {
		return Config{}, fmt.Errorf("BACKFILL_LIMIT must be >= 0, got %d", cfg.BackfillLimit)
	}
	if cfg.DeliveriesPerSecond <= 0 {
		return Config{}, fmt.Errorf("DELIVERIES_PER_SECOND must be > 0, got %d", cfg.DeliveriesPerSecond)
	}

	return cfg, nil
}
