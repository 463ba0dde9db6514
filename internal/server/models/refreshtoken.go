package models

import "time"

// RefreshToken is the persisted record behind an issued refresh secret.
// Value is the secret itself and the record key. TokenID binds it to the
// access token issued alongside.
type RefreshToken struct {
	Value       string    `db:"token"`
	TokenID     string    `db:"token_id"`
	UserID      string    `db:"user_id"`
	ExpiresAt   time.Time `db:"expires_at"`
	Used        bool      `db:"used"`
	Invalidated bool      `db:"invalidated"`
}

// Expired reports whether the record is past its expiry at now.
func (t RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
