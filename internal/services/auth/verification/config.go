package verification

import (
	"fmt"
	"time"

	"github.com/louisbranch/shopkeeper/internal/platform/config"
	"github.com/louisbranch/shopkeeper/internal/platform/random"
)

// Config controls one-time code issuance. It is read once at startup.
type Config struct {
	TTL         time.Duration `env:"SHOPKEEPER_AUTH_CODE_TTL"          envDefault:"5m"`
	Length      int           `env:"SHOPKEEPER_AUTH_CODE_LENGTH"       envDefault:"4"`
	MaxAttempts int           `env:"SHOPKEEPER_AUTH_CODE_MAX_ATTEMPTS" envDefault:"5"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{TTL: 5 * time.Minute, Length: 4, MaxAttempts: 5}
}

// LoadConfigFromEnv loads code settings from the environment.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configured bounds.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("code ttl must be positive")
	}
	if c.Length < 4 || c.Length > random.MaxDigits {
		return fmt.Errorf("code length must be between 4 and %d", random.MaxDigits)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("code max attempts must be at least 1")
	}
	return nil
}
