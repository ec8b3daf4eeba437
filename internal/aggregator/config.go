package aggregator

import "time"

// Config tunes retries and list bounds.
type Config struct {
	RetryAttempts        int           `env:"AGGREGATOR_RETRY_ATTEMPTS" envDefault:"5"`
	RetryInitialInterval time.Duration `env:"AGGREGATOR_RETRY_INITIAL_INTERVAL" envDefault:"50ms"`
	RetryMaxInterval     time.Duration `env:"AGGREGATOR_RETRY_MAX_INTERVAL" envDefault:"2s"`
	DefaultListLimit     int           `env:"AGGREGATOR_LIST_DEFAULT_LIMIT" envDefault:"100"`
	MaxListLimit         int           `env:"AGGREGATOR_LIST_MAX_LIMIT" envDefault:"500"`
	MaxTargetNameLength  int           `env:"AGGREGATOR_MAX_TARGET_NAME_LENGTH" envDefault:"256"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		RetryAttempts:        5,
		RetryInitialInterval: 50 * time.Millisecond,
		RetryMaxInterval:     2 * time.Second,
		DefaultListLimit:     100,
		MaxListLimit:         500,
		MaxTargetNameLength:  256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = d.RetryInitialInterval
	}
	if c.RetryMaxInterval < c.RetryInitialInterval {
		c.RetryMaxInterval = max(d.RetryMaxInterval, c.RetryInitialInterval)
	}
	if c.DefaultListLimit <= 0 {
		c.DefaultListLimit = d.DefaultListLimit
	}
	if c.MaxListLimit <= 0 {
		c.MaxListLimit = d.MaxListLimit
	}
	if c.DefaultListLimit > c.MaxListLimit {
		c.DefaultListLimit = c.MaxListLimit
	}
	if c.MaxTargetNameLength <= 0 {
		c.MaxTargetNameLength = d.MaxTargetNameLength
	}
	return c
}
