// Package refreshtokens declares the server-side store of issued refresh
// secrets and provides PostgreSQL, Redis and in-memory implementations.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/minitwit/internal/server/models"
)

// Repository persists one record per issued refresh secret, keyed by the
// secret value.
type Repository interface {
	// Create inserts a record with used=false and invalidated=false.
	// It returns common.ErrorInvalidUserID if userID references no user.
	Create(ctx context.Context, tokenID, userID, value string, expiresAt time.Time) error

	// FetchByValue returns the record for value unchanged, or
	// common.ErrorNotFound.
	FetchByValue(ctx context.Context, value string) (*models.RefreshToken, error)

	// MarkUsed sets the used flag. Setting it to true is conditional on the
	// record currently being unused and fails with common.ErrAlreadyRedeemed
	// otherwise, so at most one caller redeems a given secret. Setting it
	// to false always succeeds. Unknown values yield common.ErrorNotFound.
	MarkUsed(ctx context.Context, value string, used bool) error

	// DeleteAllExpired removes every record whose expiry is at or before
	// the current time.
	DeleteAllExpired(ctx context.Context) error
}

// Option configures the clock of a repository implementation.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now for expiry sweeps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
