// Command useradd creates a MiniTwit user in the configured database.
//
// Usage:
//
//	useradd -u <username> -m <email>
//
// The password is read from the terminal without echo. Server configuration
// (environment, .env, JSON file) selects the database and argon2 settings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/minitwit/internal/common"
	"github.com/dmitrijs2005/minitwit/internal/cryptox"
	"github.com/dmitrijs2005/minitwit/internal/flagx"
	"github.com/dmitrijs2005/minitwit/internal/logging"
	"github.com/dmitrijs2005/minitwit/internal/server/config"
	"github.com/dmitrijs2005/minitwit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/minitwit/internal/server/services"
	"golang.org/x/term"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "useradd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	email := fs.String("m", "", "email")
	if err := fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-u", "-m"})); err != nil {
		return err
	}
	if *username == "" || *email == "" {
		fs.Usage()
		return errors.New("both -u and -m are required")
	}

	cfg := config.LoadConfig()
	if cfg.StorageBackend == config.StorageMemory {
		return errors.New("memory storage does not persist users")
	}

	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	defer common.WipeByteArray(password)

	hasher, err := cryptox.NewArgon2Hasher(cfg.Argon2)
	if err != nil {
		return err
	}

	repos, err := repomanager.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.Close()

	u, err := services.NewUserService(repos.Users, hasher, logger).Create(ctx, *username, *email, string(password))
	if err != nil {
		return err
	}

	fmt.Printf("created user %s (%s)\n", u.Username, u.ID)
	return nil
}
