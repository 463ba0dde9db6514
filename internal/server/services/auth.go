// Package services contains server-side business logic. This file implements
// AuthService, which handles login and the rotation of refresh tokens.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/minitwit/internal/common"
	"github.com/dmitrijs2005/minitwit/internal/logging"
	"github.com/dmitrijs2005/minitwit/internal/server/auth"
	"github.com/dmitrijs2005/minitwit/internal/server/models"
	"github.com/dmitrijs2005/minitwit/internal/server/repositories/refreshtokens"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserLookup reads users by name or id; missing users are reported with
// common.ErrorNotFound.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// CredentialVerifier checks a plaintext password against a stored hash and salt.
type CredentialVerifier interface {
	Verify(ctx context.Context, plaintext, storedHash, storedSalt string) bool
}

// TokenCodec issues access tokens and refresh secrets and reads claims back
// without enforcing expiry.
type TokenCodec interface {
	IssueAccessToken(tokenID, userID, username, email string) (string, error)
	IssueRefreshSecret() (string, time.Time, error)
	ExtractClaim(name, token string) (string, bool)
	ExtractExpiry(token string) (time.Time, bool)
}

// AuthService provides authentication operations:
// - Login: verify credentials and mint a token pair
// - RefreshToken: redeem an expired access token plus its unused refresh
// secret for a new pair
//
// It holds no mutable state; all durable state lives in the refresh token
// repository.
type AuthService struct {
	users    UserLookup
	tokens   refreshtokens.Repository
	verifier CredentialVerifier
	codec    TokenCodec
	logger   logging.Logger
	now      func() time.Time
	newID    func() string
}

// Option customizes an AuthService.
type Option func(*AuthService)

// WithClock replaces time.Now for expiry comparisons.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithIDGenerator replaces the token id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *AuthService) { s.newID = gen }
}

func NewAuthService(users UserLookup, tokens refreshtokens.Repository, verifier CredentialVerifier, codec TokenCodec, logger logging.Logger, opts ...Option) *AuthService {
	s := &AuthService{
		users:    users,
		tokens:   tokens,
		verifier: verifier,
		codec:    codec,
		logger:   logger.With("module", "auth_service"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login verifies the credentials and returns a fresh TokenPair.
func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	if username == "" {
		return nil, s.reject(ctx, "login", ErrUsernameMissing)
	}
	if password == "" {
		return nil, s.reject(ctx, "login", ErrPasswordMissing)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.reject(ctx, "login", ErrInvalidUsername)
		}
		return nil, s.fail(ctx, "login", infraError("lookup user", err))
	}

	if !s.verifier.Verify(ctx, password, user.PasswordHash, user.PasswordSalt) {
		// a cancelled request is not a wrong password
		if ctx.Err() != nil {
			return nil, s.fail(ctx, "login", infraError("verify password", ctx.Err()))
		}
		return nil, s.reject(ctx, "login", ErrInvalidPassword)
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}

	s.logger.Debug(ctx, "user logged in", "user_id", user.ID)
	return pair, nil
}

// RefreshToken exchanges an expired access token and the refresh secret
// issued with it for a new TokenPair. Checks run in a fixed order and the
// first failing one determines the error. The refresh secret is redeemed by
// a conditional write, so concurrent replays get ErrTokenUsed.
func (s *AuthService) RefreshToken(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	const op = "refresh_token"

	userID, ok := s.codec.ExtractClaim(auth.ClaimUserID, accessToken)
	if !ok || userID == "" {
		return nil, s.reject(ctx, op, ErrInvalidToken)
	}

	expiresAt, ok := s.codec.ExtractExpiry(accessToken)
	if !ok {
		return nil, s.reject(ctx, op, ErrInvalidToken)
	}
	if expiresAt.After(s.now()) {
		return nil, s.reject(ctx, op, ErrTokenNotExpired)
	}

	record, err := s.tokens.FetchByValue(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.reject(ctx, op, ErrInvalidToken)
		}
		return nil, s.fail(ctx, op, infraError("fetch refresh token", err))
	}

	if record.Expired(s.now()) {
		return nil, s.reject(ctx, op, ErrTokenExpired)
	}
	if record.Invalidated {
		return nil, s.reject(ctx, op, ErrTokenInvalidated)
	}
	if record.Used {
		s.logger.Warn(ctx, "refresh token replayed", "user_id", record.UserID, "token", logging.Fingerprint(record.Value))
		return nil, s.reject(ctx, op, ErrTokenUsed)
	}

	tokenID, ok := s.codec.ExtractClaim(auth.ClaimTokenID, accessToken)
	if !ok || tokenID != record.TokenID {
		return nil, s.reject(ctx, op, ErrInvalidToken)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.reject(ctx, op, ErrInvalidUserID)
		}
		return nil, s.fail(ctx, op, infraError("lookup user", err))
	}

	if err := s.tokens.MarkUsed(ctx, record.Value, true); err != nil {
		switch {
		case errors.Is(err, common.ErrAlreadyRedeemed):
			s.logger.Warn(ctx, "refresh token redeemed concurrently", "user_id", record.UserID, "token", logging.Fingerprint(record.Value))
			return nil, s.reject(ctx, op, ErrTokenUsed)
		case errors.Is(err, common.ErrorNotFound):
			return nil, s.reject(ctx, op, ErrInvalidToken)
		default:
			return nil, s.fail(ctx, op, infraError("mark refresh token used", err))
		}
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	s.logger.Debug(ctx, "refresh token rotated", "user_id", user.ID)
	return pair, nil
}

// CurrentUser returns the account behind a validated access token.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.reject(ctx, "current_user", ErrInvalidUserID)
		}
		return nil, s.fail(ctx, "current_user", infraError("lookup user", err))
	}
	return user, nil
}

// --- helpers below ---

// issueTokenPair mints a pair bound to a fresh token id, persists the
// refresh record and then sweeps expired records.
func (s *AuthService) issueTokenPair(ctx context.Context, user *models.User) (*TokenPair, error) {
	tokenID := s.newID()

	access, err := s.codec.IssueAccessToken(tokenID, user.ID, user.Username, user.Email)
	if err != nil {
		return nil, infraError("sign access token", err)
	}

	refresh, expiresAt, err := s.codec.IssueRefreshSecret()
	if err != nil {
		return nil, infraError("generate refresh secret", err)
	}

	if err := s.tokens.Create(ctx, tokenID, user.ID, refresh, expiresAt); err != nil {
		if errors.Is(err, common.ErrorInvalidUserID) {
			return nil, ErrInvalidUserID
		}
		return nil, infraError("store refresh token", err)
	}

	if err := s.tokens.DeleteAllExpired(ctx); err != nil {
		s.logger.Warn(ctx, "expired refresh token sweep failed", "error", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) reject(ctx context.Context, op string, e *AuthError) error {
	s.logger.Info(ctx, "authentication rejected", "op", op, "code", e.Reason())
	return e
}

// fail logs err and returns it. An AuthError coming out of issueTokenPair
// is still a rejection.
func (s *AuthService) fail(ctx context.Context, op string, err error) error {
	if ae, ok := AsAuthError(err); ok {
		return s.reject(ctx, op, ae)
	}
	s.logger.Error(ctx, "authentication failed", "op", op, "error", err)
	return err
}
