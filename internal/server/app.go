// Package server initializes and runs the authentication server.
// It opens the configured storage, builds the token codec, password hasher
// and AuthService, then serves gRPC and HTTP until a shutdown signal.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/minitwit/internal/cryptox"
	"github.com/dmitrijs2005/minitwit/internal/logging"
	"github.com/dmitrijs2005/minitwit/internal/server/auth"
	"github.com/dmitrijs2005/minitwit/internal/server/config"
	"github.com/dmitrijs2005/minitwit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/minitwit/internal/server/services"

	gs "github.com/dmitrijs2005/minitwit/internal/server/grpc"
	hs "github.com/dmitrijs2005/minitwit/internal/server/http"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repos       *repomanager.Manager
	codec       *auth.Codec
	authService *services.AuthService
}

// newManager is a seam for tests.
var newManager = repomanager.New

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	codec, err := auth.NewCodec(auth.Config{
		Key:        []byte(c.SecretKey),
		Issuer:     c.Issuer,
		Audience:   c.Audience,
		AccessTTL:  c.AccessTokenValidityDuration,
		RefreshTTL: c.RefreshTokenValidityDuration,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := cryptox.NewArgon2Hasher(c.Argon2)
	if err != nil {
		return nil, err
	}

	rm, err := newManager(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	if c.SeedDemoUsers {
		if err := services.NewUserService(rm.Users, hasher, logger).SeedDemoUsers(ctx); err != nil {
			_ = rm.Close()
			return nil, fmt.Errorf("seed error: %w", err)
		}
	}

	as := services.NewAuthService(rm.Users, rm.RefreshTokens, hasher, codec, logger)

	return &App{config: c, logger: logger, repos: rm, codec: codec, authService: as}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService, app.codec)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := hs.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.authService, app.codec)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves both transports until ctx is cancelled, a signal arrives or
// one of the servers fails, then closes storage.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageBackend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(context.Background(), "storage close error", "error", err)
	}

	app.logger.Info(context.Background(), "App stopped")
}
