// Package auth is the auth service command.
package auth

import (
	"context"
	"flag"
	"strings"

	platformcmd "github.com/louisbranch/shopkeeper/internal/platform/cmd"
	"github.com/louisbranch/shopkeeper/internal/platform/logging"
	"github.com/louisbranch/shopkeeper/internal/platform/otel"
	server "github.com/louisbranch/shopkeeper/internal/services/auth/app"
	"go.uber.org/zap"
)

// Config holds auth command configuration.
type Config struct {
	GRPCAddr string
	HTTPAddr string
	DBPath   string
	Log      logging.Config
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config, with env values as flag defaults.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		GRPCAddr: envOrDefault(lookup, "SHOPKEEPER_AUTH_GRPC_ADDR", ":8083"),
		HTTPAddr: envOrDefault(lookup, "SHOPKEEPER_AUTH_HTTP_ADDR", "localhost:8084"),
		DBPath:   envOrDefault(lookup, "SHOPKEEPER_AUTH_DB_PATH", "data/auth.db"),
		Log: logging.Config{
			Level:  envOrDefault(lookup, "SHOPKEEPER_LOG_LEVEL", "info"),
			Format: envOrDefault(lookup, "SHOPKEEPER_LOG_FORMAT", "json"),
		},
	}

	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "The auth gRPC server address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The auth HTTP server address (empty disables HTTP)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The auth SQLite database path")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run loads the component configs and serves the auth service.
func Run(ctx context.Context, cfg Config) error {
	logger := logging.Component(logging.New(cfg.Log), platformcmd.ServiceAuth)
	defer func() { _ = logger.Sync() }()

	serverCfg, err := server.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	serverCfg.GRPCAddr = cfg.GRPCAddr
	serverCfg.HTTPAddr = cfg.HTTPAddr
	serverCfg.DBPath = cfg.DBPath

	telemetry, err := otel.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	options := platformcmd.RunOptions{Telemetry: telemetry, Logger: logger}
	return platformcmd.Run(ctx, platformcmd.ServiceAuth, options, func(ctx context.Context) error {
		logger.Info("starting auth service",
			zap.String("grpc_addr", serverCfg.GRPCAddr),
			zap.String("http_addr", serverCfg.HTTPAddr),
			zap.String("sms_provider", serverCfg.SMS.Provider),
		)
		return server.Run(ctx, serverCfg, logger)
	})
}

func envOrDefault(lookup EnvLookup, key, fallback string) string {
	if lookup == nil {
		return fallback
	}
	if value, ok := lookup(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
