// Package proto describes the minitwit.auth.Authentication gRPC service.
//
// Messages are google.protobuf.Struct values, so no generated code is
// needed; this file plays the role of the *_grpc.pb.go stubs.
package proto

import (
	"context"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "minitwit.auth.Authentication"

// Full method names.
const (
	MethodLogin        = "/" + ServiceName + "/Login"
	MethodRefreshToken = "/" + ServiceName + "/RefreshToken"
	MethodWhoAmI       = "/" + ServiceName + "/WhoAmI"
)

// Message field names.
const (
	FieldUsername     = "username"
	FieldPassword     = "password"
	FieldAccessToken  = "accessToken"
	FieldRefreshToken = "refreshToken"
	FieldUserID       = "id"
	FieldEmail        = "email"
)

// ErrorDomain is set on every errdetails.ErrorInfo returned by the service.
const ErrorDomain = "auth.minitwit"

// AuthenticationServer is the server API for the Authentication service.
type AuthenticationServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WhoAmI(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterAuthenticationServer(s grpc.ServiceRegistrar, srv AuthenticationServer) {
	s.RegisterService(&AuthenticationServiceDesc, srv)
}

type call func(AuthenticationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, fn call) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(AuthenticationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(AuthenticationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var AuthenticationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthenticationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Login",
			Handler:    unaryHandler(MethodLogin, AuthenticationServer.Login),
		},
		{
			MethodName: "RefreshToken",
			Handler:    unaryHandler(MethodRefreshToken, AuthenticationServer.RefreshToken),
		},
		{
			MethodName: "WhoAmI",
			Handler:    unaryHandler(MethodWhoAmI, AuthenticationServer.WhoAmI),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "minitwit/auth.proto",
}

// AuthenticationClient is the client API for the Authentication service.
type AuthenticationClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthenticationClient(cc grpc.ClientConnInterface) *AuthenticationClient {
	return &AuthenticationClient{cc: cc}
}

func (c *AuthenticationClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthenticationClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodLogin, in, opts...)
}

func (c *AuthenticationClient) RefreshToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRefreshToken, in, opts...)
}

func (c *AuthenticationClient) WhoAmI(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodWhoAmI, in, opts...)
}

// NewMessage builds a Struct with string fields.
func NewMessage(fields map[string]string) *structpb.Struct {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for k, v := range fields {
		s.Fields[k] = structpb.NewStringValue(v)
	}
	return s
}

// GetString returns the string field key of s, or "" if it is absent or
// not a string.
func GetString(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// ReasonFromError returns the ErrorInfo reason attached to a gRPC status
// error, if any.
func ReasonFromError(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}
