package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/shopkeeper/internal/services/auth/staff"
	"github.com/louisbranch/shopkeeper/internal/services/auth/storage"
)

const staffColumns = `id, login, role, password_hash, totp_secret, totp_pending_secret, totp_enabled, totp_last_step, created_at, updated_at`

// PutStaff inserts or replaces a staff account by ID.
func (s *Store) PutStaff(ctx context.Context, account staff.Account) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(account.ID) == "" {
		return invalid("staff id is required")
	}
	if strings.TrimSpace(account.Login) == "" {
		return invalid("staff login is required")
	}
	if !account.Role.Valid() {
		return staff.ErrUnknownRole
	}
	if err := account.TwoFactor.Validate(); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO staff_accounts (`+staffColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	login = excluded.login,
	role = excluded.role,
	password_hash = excluded.password_hash,
	totp_secret = excluded.totp_secret,
	totp_pending_secret = excluded.totp_pending_secret,
	totp_enabled = excluded.totp_enabled,
	totp_last_step = excluded.totp_last_step,
	updated_at = excluded.updated_at
`,
		account.ID,
		account.Login,
		account.Role.String(),
		account.PasswordHash,
		account.TwoFactor.Secret,
		account.TwoFactor.PendingSecret,
		boolToInt(account.TwoFactor.Enabled),
		account.TwoFactor.LastStep,
		toMillis(account.CreatedAt),
		toMillis(account.UpdatedAt),
	)
	if err != nil {
		return unavailable("put staff", err)
	}
	return nil
}

// GetStaff fetches a staff account by ID.
func (s *Store) GetStaff(ctx context.Context, staffID string) (staff.Account, error) {
	if err := s.ready(ctx); err != nil {
		return staff.Account{}, err
	}
	if strings.TrimSpace(staffID) == "" {
		return staff.Account{}, invalid("staff id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_accounts WHERE id = ?`, staffID)
	return scanStaff(row, "get staff")
}

// GetStaffByLogin fetches a staff account by its normalized login.
func (s *Store) GetStaffByLogin(ctx context.Context, login string) (staff.Account, error) {
	if err := s.ready(ctx); err != nil {
		return staff.Account{}, err
	}
	login = staff.NormalizeLogin(login)
	if login == "" {
		return staff.Account{}, invalid("staff login is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_accounts WHERE login = ?`, login)
	return scanStaff(row, "get staff by login")
}

// UpdateTwoFactor swaps the enrollment columns from current to next in one
// conditional statement.
func (s *Store) UpdateTwoFactor(ctx context.Context, staffID string, current, next staff.Enrollment, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(staffID) == "" {
		return invalid("staff id is required")
	}
	if err := next.Validate(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE staff_accounts
SET totp_secret = ?, totp_pending_secret = ?, totp_enabled = ?, totp_last_step = ?, updated_at = ?
WHERE id = ?
	AND totp_secret = ?
	AND totp_pending_secret = ?
	AND totp_enabled = ?
	AND totp_last_step = ?
`,
		next.Secret,
		next.PendingSecret,
		boolToInt(next.Enabled),
		next.LastStep,
		toMillis(updatedAt),
		staffID,
		current.Secret,
		current.PendingSecret,
		boolToInt(current.Enabled),
		current.LastStep,
	)
	if err != nil {
		return unavailable("update two-factor", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable("update two-factor rows", err)
	}
	if affected == 1 {
		return nil
	}

	var exists int
	err = s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM staff_accounts WHERE id = ?`, staffID).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return storage.ErrNotFound
	case err != nil:
		return unavailable("check staff after two-factor update", err)
	default:
		return storage.ErrConflict
	}
}

func scanStaff(row *sql.Row, op string) (staff.Account, error) {
	var (
		account   staff.Account
		role      string
		enabled   int64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&account.ID,
		&account.Login,
		&role,
		&account.PasswordHash,
		&account.TwoFactor.Secret,
		&account.TwoFactor.PendingSecret,
		&enabled,
		&account.TwoFactor.LastStep,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return staff.Account{}, storage.ErrNotFound
		}
		return staff.Account{}, unavailable(op, err)
	}

	parsed, err := staff.ParseRole(role)
	if err != nil {
		return staff.Account{}, fmt.Errorf("%s: stored role: %w", op, err)
	}
	account.Role = parsed
	account.TwoFactor.Enabled = enabled == 1
	account.CreatedAt = fromMillis(createdAt)
	account.UpdatedAt = fromMillis(updatedAt)
	return account, nil
}
