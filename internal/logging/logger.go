// Package logging defines the structured logger passed to every MiniTwit
// component. Components derive a child with With("module", name). Secrets
// (passwords, refresh tokens, access tokens) are never logged; use
// Fingerprint when a token has to be correlated across lines.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key/value pairs, e.g.:
//
//	log.Info(ctx, "authentication rejected", "op", "login", "code", "INVALID_PASSWORD")
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key/value pairs.
	With(args ...any) Logger
}
