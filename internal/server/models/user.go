package models

import "time"

// User is a registered account. PasswordHash and PasswordSalt are the
// base64 argon2id output and salt.
type User struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	PasswordSalt string    `db:"password_salt"`
	CreatedAt    time.Time `db:"created_at"`
}
