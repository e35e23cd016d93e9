// Package sessionkey generates session signing keys for local setup.
package sessionkey

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/shopkeeper/internal/services/auth/session"
)

// Config holds configuration for key generation.
type Config struct {
	Bytes   int
	Retired bool
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: session.MinKeySize}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes")
	fs.BoolVar(&cfg.Retired, "retired", false, "print the key as the retired signing key")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the key and writes it to out as an env assignment.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes < session.MinKeySize {
		return fmt.Errorf("bytes must be at least %d", session.MinKeySize)
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	name := "SHOPKEEPER_AUTH_SESSION_SIGNING_KEY"
	if cfg.Retired {
		name = strings.Replace(name, "SESSION_", "SESSION_RETIRED_", 1)
	}
	_, err := fmt.Fprintf(out, "%s=%s\n", name, base64.StdEncoding.EncodeToString(buf))
	return err
}
