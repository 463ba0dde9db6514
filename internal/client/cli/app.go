package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/minitwit/internal/client/client"
	"github.com/dmitrijs2005/minitwit/internal/client/config"
	"github.com/dmitrijs2005/minitwit/internal/client/repositories/session"
	"github.com/dmitrijs2005/minitwit/internal/filex"
)

const (
	defaultSessionDir = ".minitwit"
	sessionDBFile     = "session.db"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config   *config.Config
	api      client.Client
	sessions session.Repository
	db       *sql.DB
	reader   *bufio.Reader
	out      io.Writer

	mu       sync.Mutex
	userName string
	mode     Mode
}

func NewApp(c *config.Config) (*App, error) {

	ctx := context.Background()

	dir := c.SessionDir
	if dir == "" {
		dir = defaultSessionDir
	}

	dsn, err := filex.PathIn(dir, sessionDBFile)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	api, err := client.NewGRPCClient(c.ServerEndpointAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := newApp(c, api, session.NewSQLiteRepository(db), os.Stdin, os.Stdout)
	a.db = db
	return a, nil
}

// newApp wires an App from its parts and restores a saved session.
func newApp(c *config.Config, api client.Client, sessions session.Repository, in io.Reader, out io.Writer) *App {
	a := &App{
		config:   c,
		api:      api,
		sessions: sessions,
		reader:   bufio.NewReader(in),
		out:      out,
	}

	api.OnRefresh(a.saveTokens)
	a.restoreSession(context.Background())

	return a
}

func (a *App) restoreSession(ctx context.Context) {
	s, err := a.sessions.Load(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "Could not load saved session: %v\n", err)
		return
	}
	if s == nil {
		return
	}
	a.api.SetTokens(client.TokenPair{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken})
	a.setUserName(s.Username)
}

// saveTokens persists a rotated pair under the current username.
func (a *App) saveTokens(p client.TokenPair) {
	err := a.sessions.Save(context.Background(), &session.Session{
		Username:     a.getUserName(),
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	})
	if err != nil {
		fmt.Fprintf(a.out, "Could not save session: %v\n", err)
	}
}

func (a *App) setUserName(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userName = name
}

func (a *App) getUserName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userName
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != mode {
		log.Printf("mode changed: %s -> %s", a.mode, mode)
	}
	a.mode = mode
}

func (a *App) getMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) isLoggedIn() bool {
	return a.api.Tokens().AccessToken != ""
}

func (a *App) getStatus() string {
	s := ""
	if name := a.getUserName(); name != "" && a.isLoggedIn() {
		s = name + " "
	}
	if m := a.getMode(); m != "" {
		s = s + string(m)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// requestContext bounds a single RPC by the configured timeout.
func (a *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

// StartOnlineStatusWatcher probes server health every interval and
// updates the mode shown in the prompt.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.checkOnline(ctx)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.api.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// Run starts the status watcher and the REPL and blocks until the user
// exits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.close()

	fmt.Fprintln(a.out, "Welcome to MiniTwit auth CLI (type 'help' for commands)")

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}

func (a *App) close() {
	_ = a.api.Close()
	if a.db != nil {
		_ = a.db.Close()
	}
}
