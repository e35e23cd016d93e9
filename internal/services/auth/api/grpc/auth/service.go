// Package auth serves the session gRPC API.
//
// The service is described by hand with grpc.ServiceDesc and well-known
// protobuf types, so no generated stubs are needed. Policies maps each method
// to the gate policy the server interceptor enforces.
package auth

import (
	"context"

	apperrors "github.com/louisbranch/shopkeeper/internal/platform/errors"
	"github.com/louisbranch/shopkeeper/internal/platform/requestctx"
	"github.com/louisbranch/shopkeeper/internal/services/auth/gate"
	"github.com/louisbranch/shopkeeper/internal/services/auth/staff"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "shopkeeper.auth.v1.SessionService"

	WhoAmIMethod    = "/" + ServiceName + "/WhoAmI"
	AdminPingMethod = "/" + ServiceName + "/AdminPing"
)

// SessionServer is the server API for the session service.
type SessionServer interface {
	WhoAmI(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	AdminPing(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

// Policies returns the access policy for every session method.
func Policies() map[string]gate.Policy {
	return map[string]gate.Policy{
		WhoAmIMethod:    gate.Authenticated(),
		AdminPingMethod: gate.RequireRole(staff.RoleAdmin),
	}
}

// SessionService reports the caller placed in context by the gate.
type SessionService struct{}

// NewSessionService creates a session service.
func NewSessionService() *SessionService {
	return &SessionService{}
}

// WhoAmI returns the authenticated caller.
func (s *SessionService) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	principal, ok := requestctx.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "missing caller").ToGRPCStatus()
	}
	return structpb.NewStruct(map[string]any{
		"subject_id": principal.SubjectID,
		"role":       principal.Role,
	})
}

// AdminPing answers admins only; the interceptor rejects everyone else.
func (s *SessionService) AdminPing(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"status":     "ok",
		"subject_id": requestctx.SubjectIDFromContext(ctx),
	})
}

// RegisterSessionServer registers srv on s.
func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

// SessionServiceDesc describes the session service.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
		{MethodName: "AdminPing", Handler: adminPingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shopkeeper/auth/v1/session.proto",
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func adminPingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServer).AdminPing(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AdminPingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServer).AdminPing(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// SessionClient calls the session service.
type SessionClient struct {
	conn grpc.ClientConnInterface
}

// NewSessionClient creates a client over conn.
func NewSessionClient(conn grpc.ClientConnInterface) *SessionClient {
	return &SessionClient{conn: conn}
}

// WhoAmI calls SessionService.WhoAmI.
func (c *SessionClient) WhoAmI(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, WhoAmIMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminPing calls SessionService.AdminPing.
func (c *SessionClient) AdminPing(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, AdminPingMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
