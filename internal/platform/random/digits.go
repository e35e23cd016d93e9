// Package random generates numeric one-time codes from crypto/rand.
package random

import (
	crand "crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// MaxDigits bounds the length of numeric codes.
const MaxDigits = 9

// Digits returns n uniformly random decimal digits. Leading zeros are kept.
func Digits(n int) (string, error) {
	return DigitsFrom(crand.Reader, n)
}

// DigitsFrom returns n uniformly random decimal digits read from r.
func DigitsFrom(r io.Reader, n int) (string, error) {
	if n < 1 || n > MaxDigits {
		return "", fmt.Errorf("digit count must be between 1 and %d", MaxDigits)
	}
	if r == nil {
		r = crand.Reader
	}
	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	value, err := crand.Int(r, upper)
	if err != nil {
		return "", fmt.Errorf("read random digits: %w", err)
	}
	text := value.String()
	if len(text) < n {
		text = strings.Repeat("0", n-len(text)) + text
	}
	return text, nil
}
