package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/minitwit/internal/common"
	"github.com/dmitrijs2005/minitwit/internal/logging"
	"github.com/dmitrijs2005/minitwit/internal/server/models"
)

// DemoPassword is the password of every account created by SeedDemoUsers.
const DemoPassword = "password"

var demoUsers = []struct{ username, email string }{
	{"Gustav", "gustav@minitwit.com"},
	{"Simon", "simon@minitwit.com"},
	{"Nikolaj", "nikolaj@minitwit.com"},
	{"Victor", "victor@minitwit.com"},
}

var (
	ErrEmptyUsername = errors.New("username must not be empty")
	ErrEmptyPassword = errors.New("password must not be empty")
)

type UserCreator interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (hash, salt string, err error)
}

// UserService provisions accounts. Sign-up is not exposed over any
// transport; it backs cmd/useradd and demo seeding.
type UserService struct {
	users  UserCreator
	hasher PasswordHasher
	logger logging.Logger
}

func NewUserService(users UserCreator, hasher PasswordHasher, logger logging.Logger) *UserService {
	return &UserService{users: users, hasher: hasher, logger: logger.With("module", "user_service")}
}

// Create hashes password and stores a new user. A taken username yields
// common.ErrorAlreadyExists.
func (s *UserService) Create(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}

	hash, salt, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, &models.User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		PasswordSalt: salt,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// SeedDemoUsers creates the demo accounts; existing ones are left alone.
func (s *UserService) SeedDemoUsers(ctx context.Context) error {
	for _, d := range demoUsers {
		_, err := s.Create(ctx, d.username, d.email, DemoPassword)
		if err != nil && !errors.Is(err, common.ErrorAlreadyExists) {
			return fmt.Errorf("seed %s: %w", d.username, err)
		}
	}
	return nil
}
