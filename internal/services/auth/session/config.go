package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/shopkeeper/internal/platform/config"
)

// Config holds session settings. The signing key is read once at startup and
// injected into the Issuer.
type Config struct {
	SigningKey        string        `env:"SHOPKEEPER_AUTH_SESSION_SIGNING_KEY"`
	KeyID             string        `env:"SHOPKEEPER_AUTH_SESSION_KEY_ID"              envDefault:"primary"`
	RetiredSigningKey string        `env:"SHOPKEEPER_AUTH_SESSION_RETIRED_SIGNING_KEY"`
	RetiredKeyID      string        `env:"SHOPKEEPER_AUTH_SESSION_RETIRED_KEY_ID"`
	Issuer            string        `env:"SHOPKEEPER_AUTH_SESSION_ISSUER"              envDefault:"shopkeeper-auth"`
	StaffTTL          time.Duration `env:"SHOPKEEPER_AUTH_STAFF_SESSION_TTL"           envDefault:"8h"`
	ClientTTL         time.Duration `env:"SHOPKEEPER_AUTH_CLIENT_SESSION_TTL"          envDefault:"24h"`
}

// LoadConfigFromEnv loads session settings.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.SigningKey) == "" {
		return Config{}, fmt.Errorf("SHOPKEEPER_AUTH_SESSION_SIGNING_KEY is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return Config{}, fmt.Errorf("SHOPKEEPER_AUTH_SESSION_ISSUER is required")
	}
	if cfg.StaffTTL <= 0 || cfg.ClientTTL <= 0 {
		return Config{}, fmt.Errorf("session ttls must be positive")
	}
	return cfg, nil
}

// KeySource decodes the configured keys.
func (c Config) KeySource() (*StaticKeySource, error) {
	secret, err := DecodeKey(c.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("decode session signing key: %w", err)
	}
	signing := Key{ID: c.KeyID, Secret: secret}

	var retired []Key
	if strings.TrimSpace(c.RetiredSigningKey) != "" {
		secret, err := DecodeKey(c.RetiredSigningKey)
		if err != nil {
			return nil, fmt.Errorf("decode retired session signing key: %w", err)
		}
		retired = append(retired, Key{ID: c.RetiredKeyID, Secret: secret})
	}
	return NewStaticKeySource(signing, retired...)
}
