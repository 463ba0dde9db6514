// Package session persists the CLI's logged-in state (username and token
// pair) between runs.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/minitwit/internal/dbx"
)

const (
	keyUsername     = "username"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

type Session struct {
	Username     string
	AccessToken  string
	RefreshToken string
}

type Repository interface {
	// Load returns the stored session, or nil if there is none.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

// SQLiteRepository keeps one row per session field in the session table.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Load(ctx context.Context) (*Session, error) {
	s := &Session{}
	for key, dst := range map[string]*string{
		keyUsername:     &s.Username,
		keyAccessToken:  &s.AccessToken,
		keyRefreshToken: &s.RefreshToken,
	} {
		v, err := r.get(ctx, key)
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	if s.AccessToken == "" || s.RefreshToken == "" {
		return nil, nil
	}
	return s, nil
}

// Save replaces the stored session atomically.
func (r *SQLiteRepository) Save(ctx context.Context, s *Session) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for key, value := range map[string]string{
			keyUsername:     s.Username,
			keyAccessToken:  s.AccessToken,
			keyRefreshToken: s.RefreshToken,
		} {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO session (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value
			`, key, value)
			if err != nil {
				return fmt.Errorf("failed to set session[%s]: %w", key, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
