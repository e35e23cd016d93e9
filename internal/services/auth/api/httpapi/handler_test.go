package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/shopkeeper/internal/services/auth/gate"
	"github.com/louisbranch/shopkeeper/internal/services/auth/notify"
	"github.com/louisbranch/shopkeeper/internal/services/auth/password"
	"github.com/louisbranch/shopkeeper/internal/services/auth/session"
	"github.com/louisbranch/shopkeeper/internal/services/auth/signin"
	"github.com/louisbranch/shopkeeper/internal/services/auth/staff"
	"github.com/louisbranch/shopkeeper/internal/services/auth/storage/sqlite"
	"github.com/louisbranch/shopkeeper/internal/services/auth/totp"
	"github.com/louisbranch/shopkeeper/internal/services/auth/twofactor"
	"github.com/louisbranch/shopkeeper/internal/services/auth/verification"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPhone    = "79990000000"
	testCode     = "4821"
	testPassword = "correct horse"
)

var testNow = time.Date(2026, 9, 1, 8, 30, 5, 0, time.UTC)

type apiHarness struct {
	handler   *Handler
	store     *sqlite.Store
	validator *totp.Validator
	tokens    *session.Issuer
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return testNow }

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hasher := password.BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)
	for _, account := range []staff.Account{
		{ID: "staff-admin", Login: "alice", Role: staff.RoleAdmin},
		{ID: "staff-manager", Login: "bob", Role: staff.RoleManager},
	} {
		account.PasswordHash = hash
		account.CreatedAt = testNow
		account.UpdatedAt = testNow
		require.NoError(t, store.PutStaff(ctx, account))
	}

	validator, err := totp.NewValidator(totp.DefaultConfig())
	require.NoError(t, err)
	generator, err := totp.NewGenerator(totp.DefaultConfig())
	require.NoError(t, err)
	twoFactor, err := twofactor.NewService(store, generator, validator, twofactor.WithClock(clock))
	require.NoError(t, err)

	codes, err := verification.NewService(store, notify.GatewayFunc(func(context.Context, string, string) error { return nil }),
		verification.DefaultConfig(),
		verification.WithClock(clock),
		verification.WithCodeGenerator(func(int) (string, error) { return testCode, nil }),
	)
	require.NoError(t, err)

	keys, err := session.NewStaticKeySource(session.Key{ID: "k1", Secret: bytes.Repeat([]byte("s"), session.MinKeySize)})
	require.NoError(t, err)
	tokens, err := session.NewIssuer(keys, "shopkeeper-auth", session.WithClock(clock))
	require.NoError(t, err)

	signIn, err := signin.NewService(signin.Deps{
		Staff:     store,
		Clients:   store,
		Passwords: hasher,
		TwoFactor: twoFactor,
		Codes:     codes,
		Tokens:    tokens,
		StaffTTL:  8 * time.Hour,
		ClientTTL: 24 * time.Hour,
	}, signin.WithClock(clock))
	require.NoError(t, err)

	g, err := gate.New(tokens, nil)
	require.NoError(t, err)
	handler, err := New(signIn, twoFactor, g, store, nil)
	require.NoError(t, err)
	return &apiHarness{handler: handler, store: store, validator: validator, tokens: tokens}
}

func (h *apiHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) staffToken(t *testing.T, login, totpCode string) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/v1/staff/login", "", map[string]string{
		"login":     login,
		"password":  testPassword,
		"totp_code": totpCode,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Bearer", resp.TokenType)
	return resp.Token
}

func (h *apiHarness) clientToken(t *testing.T) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/v1/clients/code", "", map[string]string{"phone": testPhone})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	rec = h.do(t, http.MethodPost, "/v1/clients/login", "", map[string]string{"phone": testPhone, "code": testCode})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) gate.ErrorBody {
	t.Helper()
	var body gate.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestStaffLoginAndSession(t *testing.T) {
	h := newAPIHarness(t)
	token := h.staffToken(t, "alice", "")

	rec := h.do(t, http.MethodGet, "/v1/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, sessionResponse{SubjectID: "staff-admin", Role: "ADMIN"}, resp)
}

func TestStaffLoginBadPassword(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/staff/login", "", map[string]string{"login": "alice", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "INVALID_CREDENTIALS", decodeError(t, rec).Error)
}

func TestAdminRouteEnforcesRole(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/admin/ping", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = h.do(t, http.MethodGet, "/v1/admin/ping", h.staffToken(t, "bob", ""), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", decodeError(t, rec).Error)

	rec = h.do(t, http.MethodGet, "/v1/admin/ping", h.clientToken(t), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/admin/ping", h.staffToken(t, "alice", ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTamperedTokenIsUnauthenticated(t *testing.T) {
	h := newAPIHarness(t)
	token := h.staffToken(t, "alice", "")

	rec := h.do(t, http.MethodGet, "/v1/session", token+"x", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "UNAUTHENTICATED", body.Error)
	require.Equal(t, "not authenticated", body.Message)
}

func TestClientFlowNeverEchoesCode(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/clients/code", "", map[string]string{"phone": testPhone})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotContains(t, rec.Body.String(), testCode)
	require.NotContains(t, rec.Body.String(), testPhone)
	var sent codeSentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	require.Equal(t, testNow.Add(5*time.Minute), sent.ExpiresAt)

	rec = h.do(t, http.MethodPost, "/v1/clients/login", "", map[string]string{"phone": testPhone, "code": testCode})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Role)

	rec = h.do(t, http.MethodPost, "/v1/clients/login", "", map[string]string{"phone": testPhone, "code": testCode})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "CODE_REJECTED", decodeError(t, rec).Error)
}

func TestClientCodeInvalidPhone(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/clients/code", "", map[string]string{"phone": "12ab"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_PHONE", decodeError(t, rec).Error)
}

func TestTwoFactorEnrollmentOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	token := h.staffToken(t, "bob", "")

	rec := h.do(t, http.MethodPost, "/v1/staff/2fa/enroll", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var enrollment enrollmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enrollment))
	require.True(t, strings.HasPrefix(enrollment.ProvisioningURI, "otpauth://totp/"))

	rec = h.do(t, http.MethodPost, "/v1/staff/2fa/confirm", token, map[string]string{"code": "abcdef"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "CODE_REJECTED", decodeError(t, rec).Error)

	code, err := h.validator.CodeAt(enrollment.Secret, testNow)
	require.NoError(t, err)
	rec = h.do(t, http.MethodPost, "/v1/staff/2fa/confirm", token, map[string]string{"code": code})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/v1/staff/login", "", map[string]string{"login": "bob", "password": testPassword})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "TWO_FACTOR_REQUIRED", decodeError(t, rec).Error)
	token = h.staffToken(t, "bob", code)

	rec = h.do(t, http.MethodPost, "/v1/staff/2fa/enroll", token, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "ALREADY_ENABLED", decodeError(t, rec).Error)

	rec = h.do(t, http.MethodPost, "/v1/staff/2fa/disable", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	account, err := h.store.GetStaff(context.Background(), "staff-manager")
	require.NoError(t, err)
	require.Equal(t, staff.NotEnrolled, account.TwoFactor.State())
}

func TestTwoFactorRoutesUnknownStaff(t *testing.T) {
	h := newAPIHarness(t)
	token, err := h.tokens.Issue("staff-gone", staff.RoleManager, time.Hour)
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/v1/staff/2fa/enroll", token.Value, nil)
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	require.Equal(t, "NOT_FOUND", decodeError(t, rec).Error)

	rec = h.do(t, http.MethodPost, "/v1/staff/2fa/confirm", token.Value, map[string]string{"code": "123456"})
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestTwoFactorRoutesRejectClients(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/staff/2fa/enroll", h.clientToken(t), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	h := newAPIHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/staff/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_ARGUMENT", decodeError(t, rec).Error)

	rec = h.do(t, http.MethodPost, "/v1/clients/code", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpReportsStore(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodGet, "/up", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, h.store.Close())
	rec = h.do(t, http.MethodGet, "/up", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/staff/login", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
