package gate

import (
	"context"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/platform/requestctx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	authorizationMetadataKey  = "authorization"
	acceptLanguageMetadataKey = "accept-language"
)

// UnaryServerInterceptor enforces policies keyed by full gRPC method name.
// Methods without a policy pass through untouched.
func (g *Gate) UnaryServerInterceptor(policies map[string]Policy) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		policy, guarded := policies[info.FullMethod]
		if !guarded {
			return handler(ctx, req)
		}

		token, lang := "", ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			for _, value := range md.Get(authorizationMetadataKey) {
				if bearer, ok := BearerToken(value); ok {
					token = bearer
					break
				}
			}
			if values := md.Get(acceptLanguageMetadataKey); len(values) > 0 {
				lang = values[0]
			}
		}
		if token == "" {
			return nil, apperrors.New(apperrors.CodeUnauthenticated, "missing bearer token").ToLocalizedGRPCStatus(lang)
		}

		principal, err := g.Authorize(token, policy)
		if err != nil {
			return nil, apperrors.LocalizedGRPCStatus(err, lang)
		}
		return handler(requestctx.WithPrincipal(ctx, principal), req)
	}
}
