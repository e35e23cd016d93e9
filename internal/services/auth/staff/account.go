package staff

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/platform/id"
)

var (
	// ErrEmptyLogin indicates a missing login.
	ErrEmptyLogin = apperrors.New(apperrors.CodeInvalidArgument, "login is required")
	// ErrInvalidLogin indicates a login outside the allowed format.
	ErrInvalidLogin = apperrors.New(apperrors.CodeInvalidArgument, "login must be 3-64 lowercase alphanumeric, dot, dash, underscore or @ characters")

	loginPattern = regexp.MustCompile(`^[a-z0-9_.@\-]{3,64}$`)
)

// Account is an internal staff member.
type Account struct {
	ID           string
	Login        string
	Role         Role
	PasswordHash string
	TwoFactor    Enrollment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateAccountInput describes a new staff account.
type CreateAccountInput struct {
	Login        string
	Role         Role
	PasswordHash string
}

// NormalizeLogin lowercases and trims a login.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// CreateAccount builds a validated account with no two-factor enrollment.
func CreateAccount(input CreateAccountInput, now func() time.Time, idGenerator func() (string, error)) (Account, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	login := NormalizeLogin(input.Login)
	if login == "" {
		return Account{}, ErrEmptyLogin
	}
	if !loginPattern.MatchString(login) {
		return Account{}, ErrInvalidLogin
	}
	if !input.Role.Valid() {
		return Account{}, ErrUnknownRole
	}
	if strings.TrimSpace(input.PasswordHash) == "" {
		return Account{}, apperrors.New(apperrors.CodeInvalidArgument, "password hash is required")
	}

	accountID, err := idGenerator()
	if err != nil {
		return Account{}, fmt.Errorf("generate staff id: %w", err)
	}

	createdAt := now().UTC()
	return Account{
		ID:           accountID,
		Login:        login,
		Role:         input.Role,
		PasswordHash: input.PasswordHash,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}
