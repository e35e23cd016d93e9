package session

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/services/auth/staff"
	"github.com/stretchr/testify/require"
)

var (
	testSecret    = bytes.Repeat([]byte("k"), MinKeySize)
	otherSecret   = bytes.Repeat([]byte("o"), MinKeySize)
	testIssuedAt  = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	testIssuerTag = "shopkeeper-auth"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestIssuer(t *testing.T, c *clock, keys KeySource) *Issuer {
	t.Helper()
	if keys == nil {
		var err error
		keys, err = NewStaticKeySource(Key{ID: "k1", Secret: testSecret})
		require.NoError(t, err)
	}
	issuer, err := NewIssuer(keys, testIssuerTag,
		WithClock(c.Now),
		WithIDGenerator(func() (string, error) { return "jti-1", nil }),
	)
	require.NoError(t, err)
	return issuer
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c := &clock{now: testIssuedAt}
	issuer := newTestIssuer(t, c, nil)

	token, err := issuer.Issue("staff-1", staff.RoleManager, 8*time.Hour)
	require.NoError(t, err)
	require.Equal(t, Claims{
		SubjectID: "staff-1",
		Role:      staff.RoleManager,
		IssuedAt:  testIssuedAt,
		ExpiresAt: testIssuedAt.Add(8 * time.Hour),
		TokenID:   "jti-1",
		KeyID:     "k1",
	}, token.Claims)

	claims, err := issuer.Verify(token.Value)
	require.NoError(t, err)
	require.Equal(t, token.Claims, claims)
}

func TestIssueClientTokenOmitsRole(t *testing.T) {
	c := &clock{now: testIssuedAt}
	issuer := newTestIssuer(t, c, nil)

	token, err := issuer.Issue("client-1", staff.RoleNone, time.Hour)
	require.NoError(t, err)

	parsed := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token.Value, parsed)
	require.NoError(t, err)
	_, hasRole := parsed["role"]
	require.False(t, hasRole)
	require.Equal(t, "client-1", parsed["sub"])

	claims, err := issuer.Verify(token.Value)
	require.NoError(t, err)
	require.Equal(t, staff.RoleNone, claims.Role)
}

func TestVerifyExpiry(t *testing.T) {
	c := &clock{now: testIssuedAt}
	issuer := newTestIssuer(t, c, nil)
	token, err := issuer.Issue("staff-1", staff.RoleAdmin, time.Minute)
	require.NoError(t, err)

	c.now = testIssuedAt.Add(time.Minute)
	_, err = issuer.Verify(token.Value)
	require.NoError(t, err, "token is valid at its expiry instant")

	c.now = testIssuedAt.Add(time.Minute + time.Second)
	_, err = issuer.Verify(token.Value)
	require.True(t, apperrors.IsCode(err, apperrors.CodeTokenExpired), "got %v", err)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	c := &clock{now: testIssuedAt}
	issuer := newTestIssuer(t, c, nil)
	token, err := issuer.Issue("staff-1", staff.RoleManager, time.Hour)
	require.NoError(t, err)

	forged := signWith(t, otherSecret, "k1", jwt.MapClaims{
		"iss": testIssuerTag, "sub": "staff-1", "role": "ADMIN",
		"iat": testIssuedAt.Unix(), "exp": testIssuedAt.Add(time.Hour).Unix(),
	})
	_, err = issuer.Verify(forged)
	require.True(t, apperrors.IsCode(err, apperrors.CodeSignatureInvalid), "got %v", err)

	parts := strings.Split(token.Value, ".")
	parts[1] = parts[1] + "x"
	_, err = issuer.Verify(strings.Join(parts, "."))
	require.Error(t, err)
	require.Equal(t, apperrors.CodeUnauthenticated, apperrors.GetCode(err).Public())
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	c := &clock{now: testIssuedAt}
	issuer := newTestIssuer(t, c, nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"iss": testIssuerTag, "sub": "staff-1",
		"iat": testIssuedAt.Unix(), "exp": testIssuedAt.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "k1"
	value, err := token.SignedString(testSecret)
	require.NoError(t, err)

	_, err = issuer.Verify(value)
	require.True(t, apperrors.IsCode(err, apperrors.CodeSignatureInvalid), "got %v", err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"iss": testIssuerTag, "sub": "staff-1"})
	value, err = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Verify(value)
	require.Error(t, err)
}

func TestVerifyMalformed(t *testing.T) {
	c := &clock{now: testIssuedAt}
	issuer := newTestIssuer(t, c, nil)

	for _, value := range []string{"", "   ", "abc", "a.b.c"} {
		_, err := issuer.Verify(value)
		require.True(t, apperrors.IsCode(err, apperrors.CodeMalformed), "%q: %v", value, err)
	}
}

func TestVerifyRequiresClaims(t *testing.T) {
	c := &clock{now: testIssuedAt}
	issuer := newTestIssuer(t, c, nil)
	exp := testIssuedAt.Add(time.Hour).Unix()

	tests := map[string]jwt.MapClaims{
		"wrong issuer": {"iss": "elsewhere", "sub": "s", "iat": testIssuedAt.Unix(), "exp": exp},
		"no subject":   {"iss": testIssuerTag, "iat": testIssuedAt.Unix(), "exp": exp},
		"no expiry":    {"iss": testIssuerTag, "sub": "s", "iat": testIssuedAt.Unix()},
		"bad role":     {"iss": testIssuerTag, "sub": "s", "iat": testIssuedAt.Unix(), "exp": exp, "role": "ROOT"},
	}
	for name, claims := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Verify(signWith(t, testSecret, "k1", claims))
			require.True(t, apperrors.IsCode(err, apperrors.CodeMalformed), "got %v", err)
		})
	}
}

func TestKeyRotation(t *testing.T) {
	c := &clock{now: testIssuedAt}
	oldKeys, err := NewStaticKeySource(Key{ID: "k1", Secret: testSecret})
	require.NoError(t, err)
	oldToken, err := newTestIssuer(t, c, oldKeys).Issue("staff-1", staff.RoleAdmin, time.Hour)
	require.NoError(t, err)

	rotated, err := NewStaticKeySource(Key{ID: "k2", Secret: otherSecret}, Key{ID: "k1", Secret: testSecret})
	require.NoError(t, err)
	issuer := newTestIssuer(t, c, rotated)

	claims, err := issuer.Verify(oldToken.Value)
	require.NoError(t, err)
	require.Equal(t, "k1", claims.KeyID)

	newToken, err := issuer.Issue("staff-1", staff.RoleAdmin, time.Hour)
	require.NoError(t, err)
	require.Equal(t, "k2", newToken.Claims.KeyID)

	retiredOnly, err := NewStaticKeySource(Key{ID: "k2", Secret: otherSecret})
	require.NoError(t, err)
	_, err = newTestIssuer(t, c, retiredOnly).Verify(oldToken.Value)
	require.True(t, apperrors.IsCode(err, apperrors.CodeSignatureInvalid), "got %v", err)
}

func TestIssueValidation(t *testing.T) {
	c := &clock{now: testIssuedAt}
	issuer := newTestIssuer(t, c, nil)

	_, err := issuer.Issue(" ", staff.RoleAdmin, time.Hour)
	require.Error(t, err)
	_, err = issuer.Issue("s", staff.Role(99), time.Hour)
	require.Error(t, err)
	_, err = issuer.Issue("s", staff.RoleAdmin, 0)
	require.Error(t, err)
}

func TestNewIssuerValidation(t *testing.T) {
	_, err := NewIssuer(nil, "x")
	require.Error(t, err)
	keys, err := NewStaticKeySource(Key{ID: "k1", Secret: testSecret})
	require.NoError(t, err)
	_, err = NewIssuer(keys, " ")
	require.Error(t, err)
}

func signWith(t *testing.T, secret []byte, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = kid
	value, err := token.SignedString(secret)
	require.NoError(t, err)
	return value
}
