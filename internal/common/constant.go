// Package common contains shared constants and sentinel errors used across
// MiniTwit components.
package common

// AuthorizationHeaderName is the gRPC metadata / HTTP header key used to
// carry the access token on outbound requests.
const AuthorizationHeaderName = "authorization"

// BearerScheme prefixes the access token inside the authorization header.
const BearerScheme = "Bearer"
