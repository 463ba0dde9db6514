package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/minitwit/internal/logging"
	pb "github.com/dmitrijs2005/minitwit/internal/proto"
	"github.com/dmitrijs2005/minitwit/internal/server/auth"
	"github.com/dmitrijs2005/minitwit/internal/server/models"
	"github.com/dmitrijs2005/minitwit/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Authenticator is the part of services.AuthService the transport needs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, accessToken, refreshToken string) (*services.TokenPair, error)
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// TokenValidator fully validates bearer tokens on protected methods.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

type GRPCServer struct {
	address   string
	auth      Authenticator
	validator TokenValidator
	logger    logging.Logger
	health    *health.Server
}

func NewGRPCServer(a string, l logging.Logger, svc Authenticator, v TokenValidator) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		auth:      svc,
		validator: v,
		health:    health.NewServer(),
	}
}

// NewServer creates a grpc.Server with the authentication and health
// services registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)

	pb.RegisterAuthenticationServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
