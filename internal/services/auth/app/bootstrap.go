package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/louisbranch/shopkeeper/internal/services/auth/password"
	"github.com/louisbranch/shopkeeper/internal/services/auth/staff"
	"github.com/louisbranch/shopkeeper/internal/services/auth/storage"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// BootstrapStaff is one staff account seeded at startup.
type BootstrapStaff struct {
	Login    string `json:"login"    yaml:"login"`
	Password string `json:"password" yaml:"password"`
	Role     string `json:"role"     yaml:"role"`
}

type bootstrapFile struct {
	Staff []BootstrapStaff `yaml:"staff"`
}

// loadBootstrapStaff merges the inline JSON list with the accounts listed
// under "staff" in the YAML file at path.
func loadBootstrapStaff(inline, path string) ([]BootstrapStaff, error) {
	entries, err := parseBootstrapStaff(inline)
	if err != nil {
		return nil, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return entries, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bootstrap staff file: %w", err)
	}
	var file bootstrapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse bootstrap staff file: %w", err)
	}
	return append(entries, file.Staff...), nil
}

// parseBootstrapStaff decodes the bootstrap JSON array. Blank input seeds
// nothing.
func parseBootstrapStaff(raw string) ([]BootstrapStaff, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var entries []BootstrapStaff
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("parse bootstrap staff: %w", err)
	}
	return entries, nil
}

// bootstrapStaff creates the listed accounts that do not exist yet. Existing
// logins are left untouched, so restarts never reset a password or an
// enrollment.
func bootstrapStaff(ctx context.Context, store storage.StaffStore, hasher password.Hasher, entries []BootstrapStaff, now func() time.Time, logger *zap.Logger) error {
	if store == nil || hasher == nil {
		return nil
	}
	for _, entry := range entries {
		login := staff.NormalizeLogin(entry.Login)
		if login == "" || entry.Password == "" {
			logger.Warn("skip bootstrap staff without login or password")
			continue
		}
		role, err := staff.ParseRole(entry.Role)
		if err != nil {
			return fmt.Errorf("bootstrap staff %q: %w", login, err)
		}

		_, err = store.GetStaffByLogin(ctx, login)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("lookup bootstrap staff %q: %w", login, err)
		}

		hash, err := hasher.Hash(entry.Password)
		if err != nil {
			return fmt.Errorf("hash bootstrap staff password: %w", err)
		}
		account, err := staff.CreateAccount(staff.CreateAccountInput{
			Login:        login,
			Role:         role,
			PasswordHash: hash,
		}, now, nil)
		if err != nil {
			return fmt.Errorf("bootstrap staff %q: %w", login, err)
		}
		if err := store.PutStaff(ctx, account); err != nil {
			return fmt.Errorf("store bootstrap staff %q: %w", login, err)
		}
		logger.Info("bootstrap staff created", zap.String("staff_id", account.ID), zap.String("login", login), zap.Stringer("role", role))
	}
	return nil
}
