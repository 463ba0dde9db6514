package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/minitwit/internal/common"
	"github.com/dmitrijs2005/minitwit/internal/dbx"
	"github.com/dmitrijs2005/minitwit/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgForeignKeyViolation  = "23503"
	pgInvalidTextRepresent = "22P02"
)

// PostgresRepository stores refresh tokens in the refresh_tokens table.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository constructs a repository bound to db.
func NewPostgresRepository(db *sql.DB, opts ...Option) *PostgresRepository {
	o := applyOptions(opts)
	return &PostgresRepository{db: db, now: o.now}
}

// Create locks the owning user row for the duration of the insert so the
// user cannot disappear between the check and the write.
func (r *PostgresRepository) Create(ctx context.Context, tokenID, userID, value string, expiresAt time.Time) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query :=
			`SELECT id FROM users
			 WHERE id = $1
			 FOR KEY SHARE
			 `

		var id string
		if err := tx.QueryRowContext(ctx, query, userID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) || pgCode(err) == pgInvalidTextRepresent {
				return common.ErrorInvalidUserID
			}
			return fmt.Errorf("db error: %w", err)
		}

		query =
			`INSERT INTO refresh_tokens (token, token_id, user_id, expires_at, used, invalidated)
			 VALUES ($1, $2, $3, $4, FALSE, FALSE)
			 `

		if _, err := tx.ExecContext(ctx, query, value, tokenID, userID, expiresAt); err != nil {
			if pgCode(err) == pgForeignKeyViolation {
				return common.ErrorInvalidUserID
			}
			return fmt.Errorf("db error: %w", err)
		}

		return nil
	})
}

// FetchByValue returns the refresh token row for the given secret.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) FetchByValue(ctx context.Context, value string) (*models.RefreshToken, error) {
	query := `
		SELECT token, token_id, user_id, expires_at, used, invalidated
		FROM refresh_tokens
		WHERE token = $1
	`
	t := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, value).
		Scan(&t.Value, &t.TokenID, &t.UserID, &t.ExpiresAt, &t.Used, &t.Invalidated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, value string, used bool) error {
	if !used {
		n, err := dbx.ExecAffected(ctx, r.db, `UPDATE refresh_tokens SET used = FALSE WHERE token = $1`, value)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n == 0 {
			return common.ErrorNotFound
		}
		return nil
	}

	n, err := dbx.ExecAffected(ctx, r.db, `UPDATE refresh_tokens SET used = TRUE WHERE token = $1 AND used = FALSE`, value)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 1 {
		return nil
	}

	// nothing matched: either the secret is unknown or someone redeemed it first
	var alreadyUsed bool
	err = r.db.QueryRowContext(ctx, `SELECT used FROM refresh_tokens WHERE token = $1`, value).Scan(&alreadyUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return common.ErrAlreadyRedeemed
}

func (r *PostgresRepository) DeleteAllExpired(ctx context.Context) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at <= $1
	`
	if _, err := r.db.ExecContext(ctx, query, r.now()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
