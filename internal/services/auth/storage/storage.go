package storage

import (
	"context"
	"time"

	"github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/services/auth/client"
	"github.com/louisbranch/shopkeeper/internal/services/auth/staff"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New(errors.CodeNotFound, "record not found")
	// ErrConflict indicates a conditional write lost to a concurrent change.
	ErrConflict = errors.New(errors.CodeConflict, "record changed concurrently")
)

// StaffStore persists staff accounts.
type StaffStore interface {
	PutStaff(ctx context.Context, account staff.Account) error
	GetStaff(ctx context.Context, staffID string) (staff.Account, error)
	GetStaffByLogin(ctx context.Context, login string) (staff.Account, error)
	// UpdateTwoFactor replaces the enrollment of an existing account only
	// while the stored enrollment still equals current. It fails with
	// ErrConflict when another write got there first.
	UpdateTwoFactor(ctx context.Context, staffID string, current, next staff.Enrollment, updatedAt time.Time) error
}

// ClientStore persists client identities.
type ClientStore interface {
	GetClientByPhone(ctx context.Context, phone string) (client.Identity, error)
	// CreateClient inserts identity, or returns the stored identity when the
	// phone already exists.
	CreateClient(ctx context.Context, identity client.Identity) (client.Identity, error)
}

// VerificationCode is a one-time code bound to a phone.
type VerificationCode struct {
	Phone     string
	Code      string
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// VerificationCodeStore persists one-time codes with at most one active code
// per phone.
type VerificationCodeStore interface {
	// ReplaceVerificationCode stores code, superseding any code for the phone.
	ReplaceVerificationCode(ctx context.Context, code VerificationCode) error
	// ConsumeVerificationCode deletes the code for phone if it equals
	// submitted, in one statement. It fails with NOT_FOUND when no code
	// exists, EXPIRED_CODE when the matched code is past now, and INVALID_CODE
	// on mismatch. A mismatch counts an attempt and drops the code once
	// maxAttempts is reached.
	ConsumeVerificationCode(ctx context.Context, phone, submitted string, now time.Time, maxAttempts int) error
	// DeleteVerificationCode removes code only while the stored row is that
	// same issuance (phone, code and creation time).
	DeleteVerificationCode(ctx context.Context, code VerificationCode) error
	// DeleteExpiredVerificationCodes purges codes expired at now.
	DeleteExpiredVerificationCodes(ctx context.Context, now time.Time) (int64, error)
}

// Store is the full auth persistence surface.
type Store interface {
	StaffStore
	ClientStore
	VerificationCodeStore
	Close() error
}
