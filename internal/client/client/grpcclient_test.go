package client

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/minitwit/internal/common"
	pb "github.com/dmitrijs2005/minitwit/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func unauth(msg, reason string) error {
	st, _ := status.New(codes.Unauthenticated, msg).WithDetails(&errdetails.ErrorInfo{Reason: reason})
	return st.Err()
}

// fakeServer issues numbered token pairs; only the latest access token is
// accepted by WhoAmI, and expired marks it as expired.
type fakeServer struct {
	mu        sync.Mutex
	gen       int
	access    string
	refresh   string
	expired   bool
	refreshes int
	lastAuth  string
	failLogin error
}

func (f *fakeServer) issue() *structpb.Struct {
	f.gen++
	f.access = "access-" + string(rune('0'+f.gen))
	f.refresh = "refresh-" + string(rune('0'+f.gen))
	f.expired = false
	return pb.NewMessage(map[string]string{pb.FieldAccessToken: f.access, pb.FieldRefreshToken: f.refresh})
}

func (f *fakeServer) Login(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLogin != nil {
		return nil, f.failLogin
	}
	if pb.GetString(req, pb.FieldPassword) != "pw" {
		return nil, unauth("Invalid password", "INVALID_PASSWORD")
	}
	return f.issue(), nil
}

func (f *fakeServer) RefreshToken(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pb.GetString(req, pb.FieldRefreshToken) != f.refresh || pb.GetString(req, pb.FieldAccessToken) != f.access {
		return nil, unauth("The token has already been used", "TOKEN_USED")
	}
	f.refreshes++
	return f.issue(), nil
}

func (f *fakeServer) WhoAmI(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(common.AuthorizationHeaderName)
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	f.lastAuth = values[0]

	token := strings.TrimPrefix(values[0], "Bearer ")
	if token != f.access {
		return nil, unauth("Invalid token", "INVALID_TOKEN")
	}
	if f.expired {
		return nil, unauth("The token has expired", "TOKEN_EXPIRED")
	}
	return pb.NewMessage(map[string]string{pb.FieldUserID: "u1", pb.FieldUsername: "Ann", pb.FieldEmail: "ann@example.com"}), nil
}

func (f *fakeServer) expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = true
}

func newTestClient(t *testing.T) (*GRPCClient, *fakeServer, *health.Server) {
	t.Helper()

	fake := &fakeServer{}
	hs := health.NewServer()
	hs.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	pb.RegisterAuthenticationServer(srv, fake)
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, fake, hs
}

func TestLogin_StoresTokens(t *testing.T) {
	c, _, _ := newTestClient(t)

	p, err := c.Login(context.Background(), "Ann", "pw")
	require.NoError(t, err)
	assert.Equal(t, TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"}, p)
	assert.Equal(t, p, c.Tokens())
}

func TestLogin_Rejected(t *testing.T) {
	c, _, _ := newTestClient(t)

	_, err := c.Login(context.Background(), "Ann", "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var ae *AuthError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "INVALID_PASSWORD", ae.Reason)
	assert.Equal(t, "Invalid password", ae.Message)
	assert.Equal(t, TokenPair{}, c.Tokens())
}

func TestLogin_InternalError(t *testing.T) {
	c, fake, _ := newTestClient(t)
	fake.failLogin = status.Error(codes.Internal, "internal error")

	_, err := c.Login(context.Background(), "Ann", "pw")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnauthorized))
	assert.Contains(t, err.Error(), "rpc error")
}

func TestWhoAmI_SendsBearer(t *testing.T) {
	c, fake, _ := newTestClient(t)

	_, err := c.WhoAmI(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = c.Login(context.Background(), "Ann", "pw")
	require.NoError(t, err)

	u, err := c.WhoAmI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &User{ID: "u1", Username: "Ann", Email: "ann@example.com"}, u)
	assert.Equal(t, "Bearer access-1", fake.lastAuth)
}

func TestWhoAmI_TransparentRefresh(t *testing.T) {
	c, fake, _ := newTestClient(t)

	var persisted []TokenPair
	c.OnRefresh(func(p TokenPair) { persisted = append(persisted, p) })

	_, err := c.Login(context.Background(), "Ann", "pw")
	require.NoError(t, err)
	fake.expire()

	u, err := c.WhoAmI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Username)

	assert.Equal(t, 1, fake.refreshes)
	assert.Equal(t, TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}, c.Tokens())
	assert.Equal(t, []TokenPair{{AccessToken: "access-2", RefreshToken: "refresh-2"}}, persisted)
	assert.Equal(t, "Bearer access-2", fake.lastAuth)
}

func TestWhoAmI_NoRefreshOnOtherRejections(t *testing.T) {
	c, fake, _ := newTestClient(t)

	c.SetTokens(TokenPair{AccessToken: "forged", RefreshToken: "x"})

	_, err := c.WhoAmI(context.Background())
	var ae *AuthError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "INVALID_TOKEN", ae.Reason)
	assert.Zero(t, fake.refreshes)
}

func TestWhoAmI_FailedRefreshReturnsOriginalError(t *testing.T) {
	c, fake, _ := newTestClient(t)

	_, err := c.Login(context.Background(), "Ann", "pw")
	require.NoError(t, err)
	fake.expire()

	// the server no longer recognises the held refresh token
	c.SetTokens(TokenPair{AccessToken: "access-1", RefreshToken: "stale"})

	_, err = c.WhoAmI(context.Background())
	var ae *AuthError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "TOKEN_EXPIRED", ae.Reason)
}

func TestRefreshToken_Explicit(t *testing.T) {
	c, fake, _ := newTestClient(t)

	_, err := c.RefreshToken(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = c.Login(context.Background(), "Ann", "pw")
	require.NoError(t, err)

	p, err := c.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", p.RefreshToken)
	assert.Equal(t, 1, fake.refreshes)
}

func TestLogout(t *testing.T) {
	c, _, _ := newTestClient(t)

	_, err := c.Login(context.Background(), "Ann", "pw")
	require.NoError(t, err)

	c.Logout()
	assert.Equal(t, TokenPair{}, c.Tokens())

	_, err = c.WhoAmI(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestPing(t *testing.T) {
	c, _, hs := newTestClient(t)

	require.NoError(t, c.Ping(context.Background()))

	hs.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	assert.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	assert.NoError(t, c.mapError(nil))
	assert.ErrorIs(t, c.mapError(status.Error(codes.Unavailable, "down")), ErrUnavailable)
	assert.ErrorIs(t, c.mapError(status.Error(codes.DeadlineExceeded, "slow")), ErrUnavailable)
	assert.ErrorIs(t, c.mapError(status.Error(codes.PermissionDenied, "no")), ErrUnauthorized)
}
