// Package client contains client-side building blocks for the MiniTwit
// authentication service.
//
// # Overview
//
//  1. GRPCClient talks to minitwit.auth.Authentication: Login, RefreshToken,
//     WhoAmI and a health probe. It holds the current token pair, attaches
//     the access token as "authorization: Bearer <token>" and, when a
//     protected call fails with TOKEN_EXPIRED, rotates the pair once and
//     retries the call.
//  2. Local persistence bootstrap (InitDatabase, RunMigrations) for the CLI:
//     a SQLite database migrated with embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrNotLoggedIn. Rejections keep
// the server's message and reason in an *AuthError.
package client
