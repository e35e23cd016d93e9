package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/platform/id"
	"github.com/louisbranch/shopkeeper/internal/services/auth/staff"
)

const signingMethod = "HS256"

// Claims are the verified contents of a session token.
type Claims struct {
	SubjectID string
	Role      staff.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   string
	KeyID     string
}

// Token is a signed session token and the claims it carries.
type Token struct {
	Value  string
	Claims Claims
}

// sessionClaims is the JWT payload.
type sessionClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Issuer signs and verifies session tokens.
type Issuer struct {
	keys        KeySource
	issuer      string
	clock       func() time.Time
	idGenerator func() (string, error)
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(i *Issuer) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// WithIDGenerator overrides the token ID source.
func WithIDGenerator(idGenerator func() (string, error)) Option {
	return func(i *Issuer) {
		if idGenerator != nil {
			i.idGenerator = idGenerator
		}
	}
}

// NewIssuer creates an Issuer.
func NewIssuer(keys KeySource, issuer string, opts ...Option) (*Issuer, error) {
	if keys == nil {
		return nil, errors.New("session key source is required")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("session issuer is required")
	}
	i := &Issuer{
		keys:        keys,
		issuer:      issuer,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a token for subjectID valid for ttl. RoleNone omits the role
// claim.
func (i *Issuer) Issue(subjectID string, role staff.Role, ttl time.Duration) (Token, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return Token{}, apperrors.New(apperrors.CodeInvalidArgument, "session subject is required")
	}
	if role != staff.RoleNone && !role.Valid() {
		return Token{}, staff.ErrUnknownRole
	}
	if ttl < time.Second {
		return Token{}, apperrors.New(apperrors.CodeInvalidArgument, "session ttl must be at least one second")
	}

	key, err := i.keys.SigningKey()
	if err != nil {
		return Token{}, apperrors.Wrap(apperrors.CodeUnknown, "load signing key", err)
	}
	tokenID, err := i.idGenerator()
	if err != nil {
		return Token{}, apperrors.Wrap(apperrors.CodeUnknown, "generate token id", err)
	}

	issuedAt := i.clock().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        tokenID,
		},
		Role: role.String(),
	})
	token.Header["kid"] = key.ID

	value, err := token.SignedString(key.Secret)
	if err != nil {
		return Token{}, apperrors.Wrap(apperrors.CodeUnknown, "sign session token", err)
	}
	return Token{
		Value: value,
		Claims: Claims{
			SubjectID: subjectID,
			Role:      role,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
			TokenID:   tokenID,
			KeyID:     key.ID,
		},
	}, nil
}

// Verify checks the signature and expiry of value and returns its claims.
//
// Failures are MALFORMED, SIGNATURE_INVALID or TOKEN_EXPIRED. A token is
// accepted up to and including its expiry second.
func (i *Issuer) Verify(value string) (Claims, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Claims{}, apperrors.New(apperrors.CodeMalformed, "session token is required")
	}

	var parsed sessionClaims
	token, err := jwt.ParseWithClaims(value, &parsed, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		key, err := i.keys.VerificationKey(kid)
		if err != nil {
			return nil, err
		}
		return key.Secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer != i.issuer {
		return Claims{}, apperrors.WithMetadata(apperrors.CodeMalformed, "session issuer mismatch", map[string]string{
			"Field": "iss",
		})
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, apperrors.New(apperrors.CodeMalformed, "session sub is required")
	}
	if parsed.ExpiresAt == nil || parsed.IssuedAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeMalformed, "session iat and exp are required")
	}
	role, err := staff.ParseRole(parsed.Role)
	if err != nil {
		return Claims{}, apperrors.Wrap(apperrors.CodeMalformed, "session role", err)
	}

	exp := parsed.ExpiresAt.Time.UTC()
	if i.clock().UTC().After(exp) {
		return Claims{}, apperrors.New(apperrors.CodeTokenExpired, "session token is expired")
	}

	kid, _ := token.Header["kid"].(string)
	return Claims{
		SubjectID: parsed.Subject,
		Role:      role,
		IssuedAt:  parsed.IssuedAt.Time.UTC(),
		ExpiresAt: exp,
		TokenID:   parsed.ID,
		KeyID:     kid,
	}, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.Wrap(apperrors.CodeSignatureInvalid, "session signature is invalid", err)
	case errors.Is(err, ErrUnknownKey), errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperrors.Wrap(apperrors.CodeSignatureInvalid, "session key is unknown", err)
	default:
		return apperrors.Wrap(apperrors.CodeMalformed, "session token is malformed", err)
	}
}
