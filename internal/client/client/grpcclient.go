package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/minitwit/internal/common"
	pb "github.com/dmitrijs2005/minitwit/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const reasonTokenExpired = "TOKEN_EXPIRED"

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type User struct {
	ID       string
	Username string
	Email    string
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *pb.AuthenticationClient
	health      healthpb.HealthClient

	mu        sync.Mutex
	tokens    TokenPair
	onRefresh func(TokenPair)
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)

	return metadata.NewOutgoingContext(ctx, md)
}

// bearerMethods carry the access token.
var bearerMethods = map[string]bool{
	pb.MethodWhoAmI: true,
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if !bearerMethods[method] {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	current := s.Tokens()

	err := invoker(withAccessToken(ctx, current.AccessToken), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	if status.Code(err) != codes.Unauthenticated || pb.ReasonFromError(err) != reasonTokenExpired {
		return err
	}
	if current.RefreshToken == "" {
		return err
	}

	refreshed, rerr := s.rotate(ctx, current)
	if rerr != nil {
		return err
	}

	// tokens refreshed, retry once with the new access token
	return invoker(withAccessToken(ctx, refreshed.AccessToken), method, req, reply, cc, opts...)
}

// NewGRPCClient connects to endpointURL. Extra dial options are appended
// after the defaults (insecure transport and the token interceptor).
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = pb.NewAuthenticationClient(conn)
	c.health = healthpb.NewHealthClient(conn)
	return c, nil
}

// OnRefresh registers fn to be called with every pair obtained by a
// rotation, explicit or transparent.
func (s *GRPCClient) OnRefresh(fn func(TokenPair)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRefresh = fn
}

func (s *GRPCClient) Tokens() TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *GRPCClient) SetTokens(p TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = p
}

// Logout forgets the held token pair. The server keeps no session, so
// there is nothing to revoke remotely.
func (s *GRPCClient) Logout() {
	s.SetTokens(TokenPair{})
}

func (s *GRPCClient) Login(ctx context.Context, username, password string) (TokenPair, error) {

	resp, err := s.client.Login(ctx, pb.NewMessage(map[string]string{
		pb.FieldUsername: username,
		pb.FieldPassword: password,
	}))
	if err != nil {
		return TokenPair{}, s.mapError(err)
	}

	p := pairFrom(resp)
	s.SetTokens(p)
	return p, nil
}

// RefreshToken rotates the held pair.
func (s *GRPCClient) RefreshToken(ctx context.Context) (TokenPair, error) {
	current := s.Tokens()
	if current.RefreshToken == "" {
		return TokenPair{}, ErrNotLoggedIn
	}
	return s.rotate(ctx, current)
}

// rotate redeems current. If another caller already replaced the held
// pair, that newer pair is returned without a second redemption.
func (s *GRPCClient) rotate(ctx context.Context, current TokenPair) (TokenPair, error) {
	s.mu.Lock()
	if s.tokens != current {
		p := s.tokens
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	resp, err := s.client.RefreshToken(ctx, pb.NewMessage(map[string]string{
		pb.FieldAccessToken:  current.AccessToken,
		pb.FieldRefreshToken: current.RefreshToken,
	}))
	if err != nil {
		return TokenPair{}, s.mapError(err)
	}

	p := pairFrom(resp)

	s.mu.Lock()
	s.tokens = p
	onRefresh := s.onRefresh
	s.mu.Unlock()

	if onRefresh != nil {
		onRefresh(p)
	}
	return p, nil
}

func (s *GRPCClient) WhoAmI(ctx context.Context) (*User, error) {
	if s.Tokens().AccessToken == "" {
		return nil, ErrNotLoggedIn
	}

	resp, err := s.client.WhoAmI(ctx, pb.NewMessage(nil))
	if err != nil {
		return nil, s.mapError(err)
	}

	return &User{
		ID:       pb.GetString(resp, pb.FieldUserID),
		Username: pb.GetString(resp, pb.FieldUsername),
		Email:    pb.GetString(resp, pb.FieldEmail),
	}, nil
}

// Ping asks the standard health service whether the auth service is up.
func (s *GRPCClient) Ping(ctx context.Context) error {

	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: pb.ServiceName})
	if err != nil {
		return s.mapError(err)
	}

	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func pairFrom(resp *structpb.Struct) TokenPair {
	return TokenPair{
		AccessToken:  pb.GetString(resp, pb.FieldAccessToken),
		RefreshToken: pb.GetString(resp, pb.FieldRefreshToken),
	}
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return &AuthError{Reason: pb.ReasonFromError(err), Message: st.Message()}
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
