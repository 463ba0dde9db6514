package cli

import (
	"bufio"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/dmitrijs2005/minitwit/internal/client/client"
	"github.com/dmitrijs2005/minitwit/internal/client/repositories/session"
)

func stubInputs(t *testing.T, username string, password []byte) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) { return username, nil }
	getPassword = func(_ io.Writer) ([]byte, error) { return password, nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

type fakeAPI struct {
	mu        sync.Mutex
	tokens    client.TokenPair
	onRefresh func(client.TokenPair)

	loginUser, loginPass string
	loginPair            client.TokenPair
	loginErr             error

	refreshPair client.TokenPair
	refreshErr  error

	user      *client.User
	whoamiErr error

	pingErr error
	closed  bool
}

func (f *fakeAPI) Login(_ context.Context, u, p string) (client.TokenPair, error) {
	f.loginUser, f.loginPass = u, p
	if f.loginErr != nil {
		return client.TokenPair{}, f.loginErr
	}
	f.SetTokens(f.loginPair)
	return f.loginPair, nil
}

func (f *fakeAPI) RefreshToken(_ context.Context) (client.TokenPair, error) {
	if f.refreshErr != nil {
		return client.TokenPair{}, f.refreshErr
	}
	f.SetTokens(f.refreshPair)
	if f.onRefresh != nil {
		f.onRefresh(f.refreshPair)
	}
	return f.refreshPair, nil
}

func (f *fakeAPI) WhoAmI(_ context.Context) (*client.User, error) {
	if f.whoamiErr != nil {
		return nil, f.whoamiErr
	}
	return f.user, nil
}

func (f *fakeAPI) Ping(_ context.Context) error { return f.pingErr }

func (f *fakeAPI) Tokens() client.TokenPair {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens
}

func (f *fakeAPI) SetTokens(p client.TokenPair) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = p
}

func (f *fakeAPI) OnRefresh(fn func(client.TokenPair)) { f.onRefresh = fn }
func (f *fakeAPI) Logout()                             { f.SetTokens(client.TokenPair{}) }
func (f *fakeAPI) Close() error                        { f.closed = true; return nil }

type fakeSessions struct {
	saved   *session.Session
	loadErr error
	saveErr error
	cleared bool
}

func (f *fakeSessions) Load(_ context.Context) (*session.Session, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.saved == nil {
		return nil, nil
	}
	cp := *f.saved
	return &cp, nil
}

func (f *fakeSessions) Save(_ context.Context, s *session.Session) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *s
	f.saved = &cp
	return nil
}

func (f *fakeSessions) Clear(_ context.Context) error {
	f.cleared = true
	f.saved = nil
	return nil
}
