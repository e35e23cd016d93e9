// Package totp generates and verifies time-based one-time passwords.
//
// Code generation is delegated to pquerna/otp; the acceptance window and the
// comparison are local so every candidate step is always checked.
package totp

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/shopkeeper/internal/platform/config"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	pqtotp "github.com/pquerna/otp/totp"
)

// Config fixes the TOTP parameters. All fields are explicit so the skew window
// is a deliberate choice.
type Config struct {
	Issuer string        `env:"SHOPKEEPER_AUTH_TOTP_ISSUER" envDefault:"Shopkeeper"`
	Period time.Duration `env:"SHOPKEEPER_AUTH_TOTP_PERIOD" envDefault:"30s"`
	Skew   uint          `env:"SHOPKEEPER_AUTH_TOTP_SKEW"   envDefault:"1"`
	Digits int           `env:"SHOPKEEPER_AUTH_TOTP_DIGITS" envDefault:"6"`
}

// DefaultConfig returns a 30 second step, one adjacent step of skew and six digits.
func DefaultConfig() Config {
	return Config{Issuer: "Shopkeeper", Period: 30 * time.Second, Skew: 1, Digits: 6}
}

// LoadConfigFromEnv loads TOTP settings from the environment.
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

// Validate checks the parameters.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("totp issuer is required")
	}
	if c.Period < time.Second || c.Period%time.Second != 0 {
		return fmt.Errorf("totp period must be a whole number of seconds")
	}
	if c.Digits != 6 && c.Digits != 8 {
		return fmt.Errorf("totp digits must be 6 or 8")
	}
	if c.Skew > 10 {
		return fmt.Errorf("totp skew must be at most 10 steps")
	}
	return nil
}

func (c Config) digits() otp.Digits {
	if c.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}

func (c Config) periodSeconds() uint {
	return uint(c.Period / time.Second)
}

// Key is a freshly generated secret with its provisioning URI.
type Key struct {
	Secret string
	URI    string
}

// Generator creates enrollment secrets.
type Generator struct {
	cfg Config
}

// NewGenerator creates a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg}, nil
}

// Generate creates a random base32 secret and an otpauth:// URI for accountName.
func (g *Generator) Generate(accountName string) (Key, error) {
	if strings.TrimSpace(accountName) == "" {
		return Key{}, fmt.Errorf("account name is required")
	}
	key, err := pqtotp.Generate(pqtotp.GenerateOpts{
		Issuer:      g.cfg.Issuer,
		AccountName: accountName,
		Period:      g.cfg.periodSeconds(),
		Digits:      g.cfg.digits(),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Key{}, fmt.Errorf("generate totp secret: %w", err)
	}
	return Key{Secret: key.Secret(), URI: key.URL()}, nil
}

// Validator checks submitted codes against a secret.
type Validator struct {
	cfg Config
}

// NewValidator creates a Validator.
func NewValidator(cfg Config) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Validator{cfg: cfg}, nil
}

// Verify reports whether code matches secret at now, within the skew window.
func (v *Validator) Verify(secret, code string, now time.Time) bool {
	_, ok := v.Match(secret, code, now)
	return ok
}

// Match is Verify that also returns the time step the code belongs to.
//
// Every step in the window is computed and compared; the work done does not
// depend on which step matched. A malformed secret or code is rejected.
func (v *Validator) Match(secret, code string, now time.Time) (int64, bool) {
	code = strings.TrimSpace(code)
	if len(code) != v.cfg.Digits || !allDigits(code) {
		return 0, false
	}

	submitted := sha256.Sum256([]byte(code))
	current := v.counter(now)
	skew := int64(v.cfg.Skew)

	matched := 0
	matchedStep := 0
	valid := true
	for offset := -skew; offset <= skew; offset++ {
		step := current + offset
		if step < 0 {
			continue
		}
		expected, err := v.codeForCounter(secret, uint64(step))
		if err != nil {
			valid = false
			continue
		}
		digest := sha256.Sum256([]byte(expected))
		eq := subtle.ConstantTimeCompare(digest[:], submitted[:])
		matchedStep = subtle.ConstantTimeSelect(eq, int(step), matchedStep)
		matched |= eq
	}
	if !valid || matched != 1 {
		return 0, false
	}
	return int64(matchedStep), true
}

// CodeAt returns the code for secret at t.
func (v *Validator) CodeAt(secret string, t time.Time) (string, error) {
	counter := v.counter(t)
	if counter < 0 {
		return "", fmt.Errorf("time before unix epoch")
	}
	return v.codeForCounter(secret, uint64(counter))
}

func (v *Validator) counter(t time.Time) int64 {
	return t.Unix() / int64(v.cfg.periodSeconds())
}

func (v *Validator) codeForCounter(secret string, counter uint64) (string, error) {
	return hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    v.cfg.digits(),
		Algorithm: otp.AlgorithmSHA1,
	})
}

func allDigits(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}
