// Package common defines shared constants and sentinel errors used across
// client and server layers of MiniTwit. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorInvalidUserID = errors.New("invalid user id")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrAlreadyRedeemed is returned by a conditional mark-used write whose
	// used=false precondition did not hold.
	ErrAlreadyRedeemed = errors.New("already redeemed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
