// Package gate decides whether a presented session token may reach a route.
//
// Every verification failure is reported as UNAUTHENTICATED; the specific
// reason is only logged. A gate holds no per-request state and is safe for
// concurrent use.
package gate

import (
	"strings"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/platform/requestctx"
	"github.com/louisbranch/shopkeeper/internal/services/auth/session"
	"github.com/louisbranch/shopkeeper/internal/services/auth/staff"
	"go.uber.org/zap"
)

// Verifier checks a session token.
type Verifier interface {
	Verify(token string) (session.Claims, error)
}

// Policy is the requirement a route places on its caller.
type Policy struct {
	role staff.Role
}

// Authenticated admits any caller holding a valid token.
func Authenticated() Policy {
	return Policy{}
}

// RequireRole admits callers whose token carries exactly role.
func RequireRole(role staff.Role) Policy {
	return Policy{role: role}
}

// Role returns the required role, or RoleNone when any caller is admitted.
func (p Policy) Role() staff.Role {
	return p.role
}

// Gate evaluates tokens against policies.
type Gate struct {
	verifier Verifier
	logger   *zap.Logger
}

// New creates a Gate.
func New(verifier Verifier, logger *zap.Logger) (*Gate, error) {
	if verifier == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "token verifier is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{verifier: verifier, logger: logger}, nil
}

// Authorize verifies token and checks it against policy.
func (g *Gate) Authorize(token string, policy Policy) (requestctx.Principal, error) {
	claims, err := g.verifier.Verify(token)
	if err != nil {
		g.logger.Debug("session token rejected", zap.String("reason", string(apperrors.GetCode(err))), zap.Error(err))
		return requestctx.Principal{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "verify session token", err)
	}

	if policy.role != staff.RoleNone && claims.Role != policy.role {
		g.logger.Info("session role rejected",
			zap.String("subject_id", claims.SubjectID),
			zap.String("role", claims.Role.String()),
			zap.String("required_role", policy.role.String()),
		)
		return requestctx.Principal{}, apperrors.WithMetadata(apperrors.CodeForbidden, "role not permitted", map[string]string{
			"required_role": policy.role.String(),
		})
	}

	return requestctx.Principal{
		SubjectID: claims.SubjectID,
		Role:      claims.Role.String(),
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
