package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/services/auth/storage"
)

var (
	errCodeExpired = apperrors.New(apperrors.CodeExpiredCode, "verification code expired")
	errCodeInvalid = apperrors.New(apperrors.CodeInvalidCode, "verification code mismatch")
	errCodeMissing = apperrors.New(apperrors.CodeNotFound, "no active verification code")
)

// ReplaceVerificationCode upserts the code for its phone, resetting attempts.
func (s *Store) ReplaceVerificationCode(ctx context.Context, code storage.VerificationCode) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(code.Phone) == "" {
		return invalid("phone is required")
	}
	if strings.TrimSpace(code.Code) == "" {
		return invalid("code is required")
	}
	if !code.ExpiresAt.After(code.CreatedAt) {
		return invalid("code must expire after it is created")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO verification_codes (phone, code, attempts, created_at, expires_at)
VALUES (?, ?, 0, ?, ?)
ON CONFLICT(phone) DO UPDATE SET
	code = excluded.code,
	attempts = 0,
	created_at = excluded.created_at,
	expires_at = excluded.expires_at
`,
		code.Phone,
		code.Code,
		toMillis(code.CreatedAt),
		toMillis(code.ExpiresAt),
	)
	if err != nil {
		return unavailable("replace verification code", err)
	}
	return nil
}

// ConsumeVerificationCode deletes the matching code in a single statement so
// two concurrent callers cannot both observe it.
func (s *Store) ConsumeVerificationCode(ctx context.Context, phone, submitted string, now time.Time, maxAttempts int) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return invalid("phone is required")
	}

	nowMillis := toMillis(now)
	var expiresAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`DELETE FROM verification_codes WHERE phone = ? AND code = ? RETURNING expires_at`,
		phone,
		submitted,
	).Scan(&expiresAt)
	switch {
	case err == nil:
		if nowMillis > expiresAt {
			return errCodeExpired
		}
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return unavailable("consume verification code", err)
	}

	// No match: classify against whatever code is stored for the phone.
	var attempts int64
	err = s.sqlDB.QueryRowContext(ctx,
		`UPDATE verification_codes SET attempts = attempts + 1 WHERE phone = ? RETURNING attempts, expires_at`,
		phone,
	).Scan(&attempts, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errCodeMissing
		}
		return unavailable("count verification attempt", err)
	}

	if nowMillis > expiresAt {
		if _, err := s.sqlDB.ExecContext(ctx,
			`DELETE FROM verification_codes WHERE phone = ? AND expires_at = ?`,
			phone, expiresAt,
		); err != nil {
			return unavailable("drop expired verification code", err)
		}
		return errCodeExpired
	}
	if maxAttempts > 0 && attempts >= int64(maxAttempts) {
		if _, err := s.sqlDB.ExecContext(ctx,
			`DELETE FROM verification_codes WHERE phone = ? AND attempts >= ?`,
			phone, maxAttempts,
		); err != nil {
			return unavailable("drop exhausted verification code", err)
		}
	}
	return errCodeInvalid
}

// DeleteVerificationCode removes code only while the stored row is the same
// issuance, so a newer code for the phone is left alone even when its digits
// happen to match.
func (s *Store) DeleteVerificationCode(ctx context.Context, code storage.VerificationCode) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	phone := strings.TrimSpace(code.Phone)
	if phone == "" {
		return invalid("phone is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE phone = ? AND code = ? AND created_at = ?`,
		phone, code.Code, toMillis(code.CreatedAt),
	); err != nil {
		return unavailable("delete verification code", err)
	}
	return nil
}

// DeleteExpiredVerificationCodes purges codes whose expiry is before now.
func (s *Store) DeleteExpiredVerificationCodes(ctx context.Context, now time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE expires_at < ?`,
		toMillis(now),
	)
	if err != nil {
		return 0, unavailable("delete expired verification codes", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, unavailable("delete expired verification codes rows", err)
	}
	return affected, nil
}
