// Package repomanager assembles the storage layer for the server: it opens
// the configured backends once at startup and exposes every repository as a
// plain field.
package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/minitwit/internal/server/config"
	"github.com/dmitrijs2005/minitwit/internal/server/migrations"
	"github.com/dmitrijs2005/minitwit/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/minitwit/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
)

// Manager lists every persisted entity and the repository that owns it.
type Manager struct {
	Users         users.Repository
	RefreshTokens refreshtokens.Repository

	db  *sql.DB
	rdb *redis.Client
}

// openDB is a seam for testing sql.Open.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// newRedisClient is a seam for testing redis.NewClient.
var newRedisClient = func(opts *redis.Options) *redis.Client {
	return redis.NewClient(opts)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewMemory returns a Manager whose repositories live in process memory.
func NewMemory(opts ...refreshtokens.Option) *Manager {
	u := users.NewMemoryRepository()
	return &Manager{
		Users:         u,
		RefreshTokens: refreshtokens.NewMemoryRepository(u, opts...),
	}
}

// New opens the backends selected by cfg.StorageBackend. PostgreSQL always
// holds users unless the backend is "memory"; migrations run on open.
func New(ctx context.Context, cfg *config.Config) (*Manager, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return NewMemory(), nil
	case config.StoragePostgres, config.StorageRedis:
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	db, err := openPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	m := &Manager{db: db}
	u := users.NewPostgresRepository(db)
	m.Users = u

	if cfg.StorageBackend == config.StoragePostgres {
		m.RefreshTokens = refreshtokens.NewPostgresRepository(db)
		return m, nil
	}

	rdb := newRedisClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		_ = db.Close()
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	m.rdb = rdb
	m.RefreshTokens = refreshtokens.NewRedisRepository(rdb, u)

	return m, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := openDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return db, nil
}

// Close releases every opened connection.
func (m *Manager) Close() error {
	var errs []error
	if m.rdb != nil {
		errs = append(errs, m.rdb.Close())
	}
	if m.db != nil {
		errs = append(errs, m.db.Close())
	}
	return errors.Join(errs...)
}
