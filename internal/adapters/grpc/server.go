package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bioapp/auth-service/internal/application"
	"github.com/google/uuid"
)

// AuthInternalService is the mesh-internal verification surface other
// services call instead of re-implementing token and session checks.
type AuthInternalService interface {
	VerifyRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SessionStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

type AuthInternalServer struct {
	service *application.Service
}

func NewAuthInternalServer(service *application.Service) *AuthInternalServer {
	return &AuthInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc AuthInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "bioapp.auth.v1.AuthInternalService",
		HandlerType: (*AuthInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "VerifyRequest",
				Handler:    verifyRequestHandler(svc),
			},
			{
				MethodName: "SessionStats",
				Handler:    sessionStatsHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "proto/auth/v1/auth_internal.proto",
	}, svc)
}

func (s *AuthInternalServer) VerifyRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	token := fields["token"].GetStringValue()
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}
	sessionID, err := uuid.Parse(fields["session_id"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "missing or invalid session_id")
	}

	identity, err := s.service.VerifyRequest(ctx, token, sessionID)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "verification failed")
	}

	resp, err := structpb.NewStruct(map[string]any{
		"valid":      true,
		"user_id":    identity.UserID.String(),
		"email":      identity.Email,
		"role":       identity.Role,
		"session_id": identity.SessionID.String(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *AuthInternalServer) SessionStats(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(map[string]any{
		"active_sessions": s.service.ActiveSessions(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func verifyRequestHandler(svc AuthInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.VerifyRequest(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/bioapp.auth.v1.AuthInternalService/VerifyRequest",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.VerifyRequest(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func sessionStatsHandler(svc AuthInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &emptypb.Empty{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.SessionStats(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/bioapp.auth.v1.AuthInternalService/SessionStats",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*emptypb.Empty)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.SessionStats(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
