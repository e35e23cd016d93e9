package server

import (
	"fmt"
	"time"

	"github.com/louisbranch/shopkeeper/internal/platform/config"
	"github.com/louisbranch/shopkeeper/internal/services/auth/notify"
	"github.com/louisbranch/shopkeeper/internal/services/auth/session"
	"github.com/louisbranch/shopkeeper/internal/services/auth/totp"
	"github.com/louisbranch/shopkeeper/internal/services/auth/verification"
)

// Config holds everything the auth process needs to start.
type Config struct {
	GRPCAddr           string        `env:"SHOPKEEPER_AUTH_GRPC_ADDR"            envDefault:":8083"`
	HTTPAddr           string        `env:"SHOPKEEPER_AUTH_HTTP_ADDR"            envDefault:"localhost:8084"`
	DBPath             string        `env:"SHOPKEEPER_AUTH_DB_PATH"              envDefault:"data/auth.db"`
	BootstrapStaffJSON string        `env:"SHOPKEEPER_AUTH_BOOTSTRAP_STAFF_JSON"`
	BootstrapStaffFile string        `env:"SHOPKEEPER_AUTH_BOOTSTRAP_STAFF_FILE"`
	PurgeInterval      time.Duration `env:"SHOPKEEPER_AUTH_CODE_PURGE_INTERVAL"  envDefault:"5m"`
	HTTPMaxConns       int           `env:"SHOPKEEPER_AUTH_HTTP_MAX_CONNS"       envDefault:"256"`

	Session session.Config      `env:"-"`
	TOTP    totp.Config         `env:"-"`
	Codes   verification.Config `env:"-"`
	SMS     notify.Config       `env:"-"`
}

// LoadConfigFromEnv loads the process settings and every component config.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	var err error
	if cfg.Session, err = session.LoadConfigFromEnv(); err != nil {
		return Config{}, fmt.Errorf("load session config: %w", err)
	}
	if cfg.TOTP, err = totp.LoadConfigFromEnv(); err != nil {
		return Config{}, fmt.Errorf("load totp config: %w", err)
	}
	if cfg.Codes, err = verification.LoadConfigFromEnv(); err != nil {
		return Config{}, fmt.Errorf("load verification config: %w", err)
	}
	if cfg.SMS, err = notify.LoadConfigFromEnv(); err != nil {
		return Config{}, fmt.Errorf("load sms config: %w", err)
	}
	return cfg, nil
}
