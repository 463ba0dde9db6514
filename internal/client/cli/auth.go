package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/minitwit/internal/client/client"
	"github.com/dmitrijs2005/minitwit/internal/client/repositories/session"
	"github.com/dmitrijs2005/minitwit/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials, authenticates and saves the session.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	pair, err := a.api.Login(ctx, userName, string(password))
	if err != nil {
		a.report("Login unsuccessful", err)
		return err
	}

	a.setUserName(userName)
	if err := a.sessions.Save(ctx, &session.Session{Username: userName, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}); err != nil {
		fmt.Fprintf(a.out, "Could not save session: %v\n", err)
	}

	fmt.Fprintf(a.out, "Logged in as %s\n", userName)
	return nil
}

// WhoAmI prints the account behind the current access token. An expired
// token is rotated by the client on the way.
func (a *App) WhoAmI(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	u, err := a.api.WhoAmI(ctx)
	if err != nil {
		a.report("whoami failed", err)
		return err
	}

	fmt.Fprintf(a.out, "id:       %s\nusername: %s\nemail:    %s\n", u.ID, u.Username, u.Email)
	return nil
}

// Refresh rotates the token pair explicitly.
func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	if _, err := a.api.RefreshToken(ctx); err != nil {
		a.report("Refresh unsuccessful", err)
		return err
	}

	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

// Logout forgets the tokens locally and removes the saved session.
func (a *App) Logout(ctx context.Context) error {
	a.api.Logout()
	a.setUserName("")
	if err := a.sessions.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) report(what string, err error) {
	switch {
	case errors.Is(err, client.ErrNotLoggedIn):
		fmt.Fprintln(a.out, "Not logged in")
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintf(a.out, "%s: server unavailable\n", what)
	default:
		fmt.Fprintf(a.out, "%s: %v\n", what, err)
	}
}
