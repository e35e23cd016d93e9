// Package password hashes and verifies staff passwords.
package password

import (
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch indicates the password does not match the hash.
var ErrMismatch = apperrors.New(apperrors.CodeInvalidCredentials, "password mismatch")

// Hasher is a one-way password hash with a verify check.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// BcryptHasher implements Hasher with bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher with the library default cost.
func NewBcryptHasher() BcryptHasher {
	return BcryptHasher{Cost: bcrypt.DefaultCost}
}

// Hash hashes password.
func (h BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "password is required")
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify returns ErrMismatch when password does not match hash.
func (h BcryptHasher) Verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatch
	default:
		return apperrors.Wrap(apperrors.CodeInvalidCredentials, "compare password hash", err)
	}
}
