package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies one terminal authentication failure.
type ErrorCode int

const (
	CodeUsernameMissing ErrorCode = iota + 1
	CodePasswordMissing
	CodeInvalidUsername
	CodeInvalidPassword
	CodeInvalidToken
	CodeTokenNotExpired
	CodeTokenExpired
	CodeTokenInvalidated
	CodeTokenUsed
	CodeInvalidUserID
)

var codeReasons = map[ErrorCode]string{
	CodeUsernameMissing:  "USERNAME_MISSING",
	CodePasswordMissing:  "PASSWORD_MISSING",
	CodeInvalidUsername:  "INVALID_USERNAME",
	CodeInvalidPassword:  "INVALID_PASSWORD",
	CodeInvalidToken:     "INVALID_TOKEN",
	CodeTokenNotExpired:  "TOKEN_NOT_EXPIRED",
	CodeTokenExpired:     "TOKEN_EXPIRED",
	CodeTokenInvalidated: "TOKEN_INVALIDATED",
	CodeTokenUsed:        "TOKEN_USED",
	CodeInvalidUserID:    "INVALID_USER_ID",
}

// String returns the machine-readable reason, e.g. "TOKEN_USED".
func (c ErrorCode) String() string {
	if r, ok := codeReasons[c]; ok {
		return r
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// AuthError is the single failure value returned by Login and RefreshToken
// for a rejected request. Message is stable and safe to show to users.
type AuthError struct {
	Code    ErrorCode
	Message string
	Status  int
}

func (e *AuthError) Error() string {
	return e.Message
}

// Reason returns the code name carried over transports.
func (e *AuthError) Reason() string {
	return e.Code.String()
}

// Is matches any AuthError with the same code.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Code == e.Code
}

func newAuthError(code ErrorCode, msg string) *AuthError {
	return &AuthError{Code: code, Message: msg, Status: http.StatusUnauthorized}
}

var (
	ErrUsernameMissing  = newAuthError(CodeUsernameMissing, "Username is missing")
	ErrPasswordMissing  = newAuthError(CodePasswordMissing, "Password is missing")
	ErrInvalidUsername  = newAuthError(CodeInvalidUsername, "Invalid username")
	ErrInvalidPassword  = newAuthError(CodeInvalidPassword, "Invalid password")
	ErrInvalidToken     = newAuthError(CodeInvalidToken, "Invalid token")
	ErrTokenNotExpired  = newAuthError(CodeTokenNotExpired, "The token has not expired yet")
	ErrTokenExpired     = newAuthError(CodeTokenExpired, "The token has expired")
	ErrTokenInvalidated = newAuthError(CodeTokenInvalidated, "The token has been invalidated")
	ErrTokenUsed        = newAuthError(CodeTokenUsed, "The token has already been used")
	ErrInvalidUserID    = newAuthError(CodeInvalidUserID, "Invalid user id")
)

// ErrInfrastructure marks failures of a collaborator (storage, randomness,
// signing) as opposed to a rejected request. Match it with errors.Is.
var ErrInfrastructure = errors.New("authentication infrastructure failure")

func infraError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrInfrastructure, err))
}

// AsAuthError extracts an AuthError from err.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
