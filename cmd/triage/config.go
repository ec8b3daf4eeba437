package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dmitrymomot/triage/core/config"
	"github.com/dmitrymomot/triage/core/logger"
	"github.com/dmitrymomot/triage/middleware"
)

// appConfig is the process-level configuration shared by every command.
type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	AppName  string `env:"APP_NAME" envDefault:"triage"`
	LogLevel string `env:"LOG_LEVEL"`

	StoreDriver     string `env:"STORE_DRIVER" envDefault:"memory"`
	MongoCollection string `env:"MONGODB_COLLECTION" envDefault:"sessions"`
	RedisKeyPrefix  string `env:"REDIS_KEY_PREFIX" envDefault:"triage"`
	AutoMigrate     bool   `env:"PG_AUTO_MIGRATE" envDefault:"true"`

	RateLimitBackend string `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
}

func loadAppConfig() (appConfig, error) {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return appConfig{}, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.RateLimitBackend = strings.ToLower(strings.TrimSpace(cfg.RateLimitBackend))
	return cfg, nil
}

// newLogger writes to stderr so command output on stdout stays machine readable.
func newLogger(cfg appConfig) (*slog.Logger, error) {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.AppName),
		logger.WithOutput(os.Stderr),
		logger.WithContextExtractors(middleware.RequestIDExtractor),
	}
	if cfg.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		opts = append(opts, logger.WithLevel(level))
	}
	return logger.New(opts...), nil
}
