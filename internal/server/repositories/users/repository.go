// Package users declares the user lookup contract used by the authentication
// flow, with PostgreSQL and in-memory implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/minitwit/internal/server/models"
)

// Repository reads and creates user accounts. Lookups return
// common.ErrorNotFound when no user matches.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
