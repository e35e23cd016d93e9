// Package client defines the public end-user identity keyed by phone number.
package client

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/platform/id"
	"golang.org/x/text/width"
)

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

// ErrInvalidPhone indicates a phone number that cannot be normalized.
var ErrInvalidPhone = apperrors.New(apperrors.CodeInvalidPhone, "phone number is invalid")

// Identity is a client proven to own a phone number.
//
// Verified is set at creation, since an identity only exists after a
// successful one-time code validation.
type Identity struct {
	ID        string
	Phone     string
	Verified  bool
	CreatedAt time.Time
}

// NormalizePhone strips formatting from a phone number and returns its digits.
// A single leading '+' is allowed. Full-width digits and punctuation fold to
// their ASCII forms first.
func NormalizePhone(raw string) (string, error) {
	value := strings.TrimSpace(width.Fold.String(raw))
	value = strings.TrimPrefix(value, "+")

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", ErrInvalidPhone
		}
	}

	digits := b.String()
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// NewIdentity builds a verified identity for a normalized phone.
func NewIdentity(phone string, now func() time.Time, idGenerator func() (string, error)) (Identity, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizePhone(phone)
	if err != nil {
		return Identity{}, err
	}
	clientID, err := idGenerator()
	if err != nil {
		return Identity{}, fmt.Errorf("generate client id: %w", err)
	}
	return Identity{
		ID:        clientID,
		Phone:     normalized,
		Verified:  true,
		CreatedAt: now().UTC(),
	}, nil
}
