package notify

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/louisbranch/shopkeeper/internal/platform/config"
	"go.uber.org/zap"
)

// Provider names.
const (
	ProviderLog    = "log"
	ProviderTwilio = "twilio"
)

// Config selects and configures the SMS provider.
type Config struct {
	Provider        string `env:"SHOPKEEPER_AUTH_SMS_PROVIDER"         envDefault:"log"`
	BaseURL         string `env:"SHOPKEEPER_AUTH_SMS_BASE_URL"         envDefault:"https://api.twilio.com"`
	AccountSID      string `env:"SHOPKEEPER_AUTH_SMS_ACCOUNT_SID"`
	AuthToken       string `env:"SHOPKEEPER_AUTH_SMS_AUTH_TOKEN"`
	From            string `env:"SHOPKEEPER_AUTH_SMS_FROM"`
	MessageTemplate string `env:"SHOPKEEPER_AUTH_SMS_MESSAGE_TEMPLATE" envDefault:"Your verification code is: %s"`
	MaxTries        uint   `env:"SHOPKEEPER_AUTH_SMS_MAX_TRIES"        envDefault:"2"`
}

// LoadConfigFromEnv loads SMS provider settings.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// New builds the gateway selected by cfg.Provider.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderLog:
		return NewLogGateway(logger), nil
	case ProviderTwilio:
		return NewHTTPGateway(HTTPGatewayConfig{
			BaseURL:         cfg.BaseURL,
			AccountSID:      cfg.AccountSID,
			AuthToken:       cfg.AuthToken,
			From:            cfg.From,
			MessageTemplate: cfg.MessageTemplate,
			MaxTries:        cfg.MaxTries,
		}, httpClient, logger)
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}
