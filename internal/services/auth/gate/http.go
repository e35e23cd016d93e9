package gate

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/platform/errors/i18n"
	"github.com/louisbranch/shopkeeper/internal/platform/requestctx"
)

// Middleware admits requests whose bearer token satisfies policy and places
// the caller in the request context.
func (g *Gate) Middleware(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "missing bearer token"))
				return
			}
			principal, err := g.Authorize(token, policy)
			if err != nil {
				WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithPrincipal(r.Context(), principal)))
		})
	}
}

// Protect is Middleware applied to a handler function.
func (g *Gate) Protect(policy Policy, next http.HandlerFunc) http.Handler {
	return g.Middleware(policy)(next)
}

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError renders err as a JSON body carrying only its public code. The
// message follows the request's Accept-Language.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err).Public()
	if code == apperrors.CodeUnauthenticated {
		w.Header().Set("WWW-Authenticate", `Bearer realm="shopkeeper"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Language", i18n.Resolve(r.Header.Get("Accept-Language")).Locale())
	w.WriteHeader(code.HTTPStatus())
	_ = json.NewEncoder(w).Encode(ErrorBody{
		Error:   string(code),
		Message: apperrors.LocalizedMessage(code, r.Header.Get("Accept-Language")),
	})
}
