package gate

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/platform/requestctx"
	"github.com/louisbranch/shopkeeper/internal/services/auth/session"
	"github.com/louisbranch/shopkeeper/internal/services/auth/staff"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var gateNow = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

func newTestGate(t *testing.T) (*Gate, *session.Issuer) {
	t.Helper()
	keys, err := session.NewStaticKeySource(session.Key{ID: "k1", Secret: bytes.Repeat([]byte("s"), session.MinKeySize)})
	require.NoError(t, err)
	issuer, err := session.NewIssuer(keys, "shopkeeper-auth", session.WithClock(func() time.Time { return gateNow }))
	require.NoError(t, err)
	g, err := New(issuer, nil)
	require.NoError(t, err)
	return g, issuer
}

func mint(t *testing.T, issuer *session.Issuer, subject string, role staff.Role, ttl time.Duration) string {
	t.Helper()
	token, err := issuer.Issue(subject, role, ttl)
	require.NoError(t, err)
	return token.Value
}

func TestAuthorizeManagerForbiddenOnAdminRoute(t *testing.T) {
	g, issuer := newTestGate(t)
	token := mint(t, issuer, "staff-2", staff.RoleManager, time.Hour)

	_, err := g.Authorize(token, RequireRole(staff.RoleAdmin))
	require.True(t, apperrors.IsCode(err, apperrors.CodeForbidden), "got %v", err)

	principal, err := g.Authorize(token, RequireRole(staff.RoleManager))
	require.NoError(t, err)
	require.Equal(t, requestctx.Principal{SubjectID: "staff-2", Role: "MANAGER"}, principal)
}

func TestAuthorizeClientTokenOnRoleRoute(t *testing.T) {
	g, issuer := newTestGate(t)
	token := mint(t, issuer, "client-1", staff.RoleNone, time.Hour)

	principal, err := g.Authorize(token, Authenticated())
	require.NoError(t, err)
	require.Equal(t, "client-1", principal.SubjectID)
	require.Empty(t, principal.Role)

	_, err = g.Authorize(token, RequireRole(staff.RoleManager))
	require.True(t, apperrors.IsCode(err, apperrors.CodeForbidden), "got %v", err)
}

func TestAuthorizeCollapsesVerifyFailures(t *testing.T) {
	g, _ := newTestGate(t)

	expiredIssuer, err := session.NewIssuer(mustKeys(t), "shopkeeper-auth", session.WithClock(func() time.Time { return gateNow.Add(-2 * time.Hour) }))
	require.NoError(t, err)
	expired := mint(t, expiredIssuer, "staff-1", staff.RoleAdmin, time.Hour)

	otherKeys, err := session.NewStaticKeySource(session.Key{ID: "k1", Secret: bytes.Repeat([]byte("x"), session.MinKeySize)})
	require.NoError(t, err)
	otherIssuer, err := session.NewIssuer(otherKeys, "shopkeeper-auth", session.WithClock(func() time.Time { return gateNow }))
	require.NoError(t, err)
	badSignature := mint(t, otherIssuer, "staff-1", staff.RoleAdmin, time.Hour)

	for name, token := range map[string]string{
		"malformed": "garbage",
		"expired":   expired,
		"signature": badSignature,
	} {
		_, err := g.Authorize(token, Authenticated())
		require.True(t, apperrors.IsCode(err, apperrors.CodeUnauthenticated), "%s: %v", name, err)
	}
}

func TestAuthorizeConcurrentUse(t *testing.T) {
	g, issuer := newTestGate(t)
	admin := mint(t, issuer, "staff-1", staff.RoleAdmin, time.Hour)
	manager := mint(t, issuer, "staff-2", staff.RoleManager, time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := g.Authorize(admin, RequireRole(staff.RoleAdmin)); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := g.Authorize(manager, RequireRole(staff.RoleAdmin)); !apperrors.IsCode(err, apperrors.CodeForbidden) {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected result: %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc")
	require.True(t, ok)
	require.Equal(t, "abc", token)

	token, ok = BearerToken("  bearer   abc ")
	require.True(t, ok)
	require.Equal(t, "abc", token)

	for _, header := range []string{"", "Bearer", "Bearer ", "Basic abc", "abc"} {
		_, ok := BearerToken(header)
		require.False(t, ok, header)
	}
}

func TestMiddleware(t *testing.T) {
	g, issuer := newTestGate(t)
	handler := g.Protect(RequireRole(staff.RoleAdmin), func(w http.ResponseWriter, r *http.Request) {
		principal, ok := requestctx.PrincipalFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(principal.SubjectID))
	})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, `"UNAUTHENTICATED"`},
		{"garbage", "Bearer nope", http.StatusUnauthorized, `"UNAUTHENTICATED"`},
		{"manager", "Bearer " + mint(t, issuer, "staff-2", staff.RoleManager, time.Hour), http.StatusForbidden, `"FORBIDDEN"`},
		{"admin", "Bearer " + mint(t, issuer, "staff-1", staff.RoleAdmin, time.Hour), http.StatusOK, "staff-1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/admin/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
			require.Contains(t, rec.Body.String(), tc.body)
			if tc.status == http.StatusUnauthorized {
				require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestMiddlewareLocalizesMessage(t *testing.T) {
	g, _ := newTestGate(t)
	handler := g.Protect(Authenticated(), func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.Header.Set("Accept-Language", "es-MX,es;q=0.9,en;q=0.5")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "es-ES", rec.Header().Get("Content-Language"))
	require.JSONEq(t, `{"error":"UNAUTHENTICATED","message":"no autenticado"}`, rec.Body.String())
}

func TestUnaryServerInterceptorLocalizesDetails(t *testing.T) {
	g, issuer := newTestGate(t)
	interceptor := g.UnaryServerInterceptor(map[string]Policy{"/svc/Admin": RequireRole(staff.RoleAdmin)})
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(
		"authorization", "Bearer "+mint(t, issuer, "staff-2", staff.RoleManager, time.Hour),
		"accept-language", "es",
	))

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Admin"}, func(context.Context, any) (any, error) {
		return nil, nil
	})
	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, codes.PermissionDenied, st.Code())

	var localized *errdetails.LocalizedMessage
	for _, detail := range st.Details() {
		if typed, ok := detail.(*errdetails.LocalizedMessage); ok {
			localized = typed
		}
	}
	require.NotNil(t, localized)
	require.Equal(t, "no permitido", localized.GetMessage())
}

func TestUnaryServerInterceptor(t *testing.T) {
	g, issuer := newTestGate(t)
	interceptor := g.UnaryServerInterceptor(map[string]Policy{
		"/svc/Admin": RequireRole(staff.RoleAdmin),
	})
	handler := func(ctx context.Context, req any) (any, error) {
		return requestctx.SubjectIDFromContext(ctx), nil
	}

	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
	require.NoError(t, err)
	require.Equal(t, "", resp)

	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Admin"}, handler)
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	managerCtx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("authorization", "Bearer "+mint(t, issuer, "staff-2", staff.RoleManager, time.Hour)))
	_, err = interceptor(managerCtx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Admin"}, handler)
	require.Equal(t, codes.PermissionDenied, status.Code(err))

	adminCtx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("authorization", "Bearer "+mint(t, issuer, "staff-1", staff.RoleAdmin, time.Hour)))
	resp, err = interceptor(adminCtx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Admin"}, handler)
	require.NoError(t, err)
	require.Equal(t, "staff-1", resp)
}

func TestNewRequiresVerifier(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
}

func mustKeys(t *testing.T) session.KeySource {
	t.Helper()
	keys, err := session.NewStaticKeySource(session.Key{ID: "k1", Secret: bytes.Repeat([]byte("s"), session.MinKeySize)})
	require.NoError(t, err)
	return keys
}
