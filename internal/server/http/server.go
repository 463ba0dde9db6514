// Package http exposes the authentication service over REST using echo.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/minitwit/internal/logging"
	"github.com/dmitrijs2005/minitwit/internal/server/auth"
	"github.com/dmitrijs2005/minitwit/internal/server/models"
	"github.com/dmitrijs2005/minitwit/internal/server/services"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 5 * time.Second

// Authenticator is the part of services.AuthService the transport needs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, accessToken, refreshToken string) (*services.TokenPair, error)
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// TokenValidator fully validates bearer tokens on protected routes.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

type HTTPServer struct {
	address   string
	auth      Authenticator
	validator TokenValidator
	logger    logging.Logger
}

func NewHTTPServer(a string, l logging.Logger, svc Authenticator, v TokenValidator) *HTTPServer {
	return &HTTPServer{
		address:   a,
		auth:      svc,
		validator: v,
		logger:    l.With("module", "http_server"),
	}
}

// Handler builds the echo instance with all routes registered.
func (s *HTTPServer) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug(c.Request().Context(), "request",
				"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	g := e.Group("/authentication")
	g.POST("/login", s.Login)
	g.POST("/refresh-token", s.RefreshToken)
	g.GET("/me", s.Me, s.bearerAuth)

	return e
}

func (s *HTTPServer) Run(ctx context.Context) error {
	e := s.Handler()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		errCh <- e.Start(s.address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
