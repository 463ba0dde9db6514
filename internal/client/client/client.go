package client

import "context"

// Client is the auth API used by the CLI. GRPCClient implements it.
type Client interface {
	Login(ctx context.Context, username, password string) (TokenPair, error)
	RefreshToken(ctx context.Context) (TokenPair, error)
	WhoAmI(ctx context.Context) (*User, error)
	Ping(ctx context.Context) error

	Tokens() TokenPair
	SetTokens(p TokenPair)
	OnRefresh(fn func(TokenPair))
	Logout()
	Close() error
}

var _ Client = (*GRPCClient)(nil)
