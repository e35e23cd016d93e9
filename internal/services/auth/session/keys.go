package session

import (
	crand "crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MinKeySize is the minimum HMAC key length in bytes.
const MinKeySize = 32

// ErrUnknownKey indicates a token signed with a key this process does not hold.
var ErrUnknownKey = errors.New("unknown session key id")

// Key is a named HMAC secret.
type Key struct {
	ID     string
	Secret []byte
}

// KeySource supplies signing and verification keys. Rotating keys means
// providing a different KeySource, not changing the issuer.
type KeySource interface {
	// SigningKey returns the key new tokens are signed with.
	SigningKey() (Key, error)
	// VerificationKey returns the key with the given ID.
	VerificationKey(id string) (Key, error)
}

// StaticKeySource holds keys loaded once at startup.
type StaticKeySource struct {
	signing Key
	byID    map[string]Key
}

// NewStaticKeySource creates a key source that signs with signing and also
// verifies tokens signed by any of the retired keys.
func NewStaticKeySource(signing Key, retired ...Key) (*StaticKeySource, error) {
	source := &StaticKeySource{byID: make(map[string]Key, len(retired)+1)}
	for i, key := range append([]Key{signing}, retired...) {
		key.ID = strings.TrimSpace(key.ID)
		if key.ID == "" {
			return nil, fmt.Errorf("session key id is required")
		}
		if len(key.Secret) < MinKeySize {
			return nil, fmt.Errorf("session key %q must be at least %d bytes", key.ID, MinKeySize)
		}
		if _, dup := source.byID[key.ID]; dup {
			return nil, fmt.Errorf("duplicate session key id %q", key.ID)
		}
		key.Secret = append([]byte(nil), key.Secret...)
		source.byID[key.ID] = key
		if i == 0 {
			source.signing = key
		}
	}
	return source, nil
}

// SigningKey returns the active key.
func (s *StaticKeySource) SigningKey() (Key, error) {
	if s == nil || s.signing.ID == "" {
		return Key{}, fmt.Errorf("session signing key is not configured")
	}
	return s.signing, nil
}

// VerificationKey returns the key for id.
func (s *StaticKeySource) VerificationKey(id string) (Key, error) {
	if s == nil {
		return Key{}, ErrUnknownKey
	}
	key, ok := s.byID[id]
	if !ok {
		return Key{}, ErrUnknownKey
	}
	return key, nil
}

// GenerateKey returns a fresh base64 encoded key of MinKeySize bytes.
func GenerateKey() (string, error) {
	buf := make([]byte, MinKeySize)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("read random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// DecodeKey decodes a base64 key in standard or URL alphabet, padded or not.
func DecodeKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if decoded, err := enc.DecodeString(value); err == nil {
			return decoded, nil
		}
	}
	return nil, errors.New("invalid base64 value")
}
