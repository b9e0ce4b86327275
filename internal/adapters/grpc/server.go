package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/invoicing-accounts/internal/domain"
	"github.com/viralforge/invoicing-accounts/internal/ports"
)

const serviceName = "viralforge.accounts.v1.AccountTokenService"

// AccountTokenService lets sibling services check access tokens issued here.
type AccountTokenService interface {
	ValidateToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPublicKeys(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// TokenValidator is the slice of the application service this server needs.
type TokenValidator interface {
	ValidateToken(token string) (ports.TokenClaims, error)
	PublicJWKs() ([]map[string]any, error)
}

type AccountTokenServer struct {
	tokens TokenValidator
}

func NewAccountTokenServer(tokens TokenValidator) *AccountTokenServer {
	return &AccountTokenServer{tokens: tokens}
}

func Register(server grpc.ServiceRegistrar, svc AccountTokenService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*AccountTokenService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "ValidateToken",
				Handler:    unaryHandler("ValidateToken", func() *structpb.Struct { return &structpb.Struct{} }, svc.ValidateToken),
			},
			{
				MethodName: "GetPublicKeys",
				Handler:    unaryHandler("GetPublicKeys", func() *emptypb.Empty { return &emptypb.Empty{} }, svc.GetPublicKeys),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "accounts/v1/account_token.proto",
	}, svc)
}

func (s *AccountTokenServer) ValidateToken(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token := req.GetFields()["token"].GetStringValue()
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	authorities := make([]any, 0, len(claims.Authorities))
	for _, a := range claims.Authorities {
		authorities = append(authorities, a)
	}
	resp, err := structpb.NewStruct(map[string]any{
		"valid":       true,
		"subject":     claims.Subject,
		"authorities": authorities,
		"expires_at":  claims.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *AccountTokenServer) GetPublicKeys(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	jwks, err := s.tokens.PublicJWKs()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get keys: %v", err)
	}
	keys := make([]any, 0, len(jwks))
	for _, k := range jwks {
		keys = append(keys, k)
	}
	resp, err := structpb.NewStruct(map[string]any{"keys": keys})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func unaryHandler[Req any, Resp any](
	method string,
	newReq func() Req,
	call func(context.Context, Req) (Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := newReq()
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(Req)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
