// Command intra-cli is a terminal companion for the 42 Intra: log in
// with your 42 account via the browser, search students by login, and
// view their profile. Run without flags for the interactive UI, or with
// --user to fetch one profile and exit.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	tea "charm.land/bubbletea/v2"

	"github.com/swifty-companion/intra-cli/intra"
	"github.com/swifty-companion/intra-cli/securestore"
	"github.com/swifty-companion/intra-cli/session"
	"github.com/swifty-companion/intra-cli/tui"
)

const debugLogFile = "intra-cli.log"

func main() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := cfg.user == "" && isTTY()

	logger, closeLog := newLogger(cfg, interactive)
	defer closeLog()

	retryClient, err := newRetryClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tokens := securestore.NewTokenStore(securestore.NewFileStore(cfg.tokenFile))

	if interactive {
		if err := runTUI(ctx, cfg, tokens, retryClient, logger); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := runPlain(ctx, cfg, tokens, retryClient, logger); err != nil {
		os.Exit(1)
	}
}

// newRetryClient builds the HTTP client shared by the session manager
// and the API client: TLS 1.2 minimum, keep-alives, retry on transient
// failures.
func newRetryClient() (*retry.Client, error) {
	baseHTTPClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			DisableKeepAlives:   false,
		},
	}

	client, err := retry.NewBackgroundClient(
		retry.WithHTTPClient(baseHTTPClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	return client, nil
}

// newLogger builds the zerolog logger. In interactive mode logs would
// corrupt the TUI, so they go to a file with -debug or nowhere at all.
func newLogger(cfg config, interactive bool) (zerolog.Logger, func()) {
	level := zerolog.WarnLevel
	if cfg.debug {
		level = zerolog.DebugLevel
	}

	if !interactive {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger(), func() {}
	}

	if cfg.debug {
		f, err := os.OpenFile(debugLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err == nil {
			logger := zerolog.New(f).Level(level).With().Timestamp().Logger()
			return logger, func() { f.Close() }
		}
	}
	return zerolog.New(io.Discard), func() {}
}

// isTTY reports whether stderr is a character device (interactive
// terminal). We check stderr because the TUI renders to stderr, allowing
// stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// newSessionManager wires the manager with a browser authorizer that
// also surfaces the consent URL through the displayer.
func newSessionManager(
	cfg config,
	tokens *securestore.TokenStore,
	retryClient *retry.Client,
	logger zerolog.Logger,
	d tui.Displayer,
) *session.Manager {
	browser := &promptingAuthorizer{
		inner: &session.BrowserAuthorizer{
			RedirectURI: cfg.redirectURI,
			Log:         logger,
		},
		displayer: d,
	}

	mgr := session.NewManager(
		session.Config{
			ClientID:     cfg.clientID,
			ClientSecret: cfg.clientSecret,
			RedirectURI:  cfg.redirectURI,
			AuthURL:      cfg.authURL,
			TokenURL:     cfg.tokenURL,
			Scopes:       oauthScopes,
		},
		tokens,
		browser,
		retryClient,
		logger,
	)
	mgr.SetOnChange(d.SessionStatus)
	return mgr
}

// promptingAuthorizer shows the consent URL before handing off to the
// real authorizer, so the user can open the link manually if the
// browser launch failed.
type promptingAuthorizer struct {
	inner     session.Authorizer
	displayer tui.Displayer
}

func (a *promptingAuthorizer) Authorize(ctx context.Context, req session.AuthRequest) (string, error) {
	a.displayer.AuthPrompt(req.URL)
	return a.inner.Authorize(ctx, req)
}

// runPlain is the non-interactive path: restore or establish a session,
// fetch one profile, print it to stdout. Status goes to stderr so the
// profile stays pipeable.
func runPlain(
	ctx context.Context,
	cfg config,
	tokens *securestore.TokenStore,
	retryClient *retry.Client,
	logger zerolog.Logger,
) error {
	status := tui.NewPlainDisplayer(os.Stderr)
	out := tui.NewPlainDisplayer(os.Stdout)

	if cfg.user == "" {
		status.Error("no login given, use --user=<login>")
		return errors.New("no login given")
	}

	mgr := newSessionManager(cfg, tokens, retryClient, logger, status)
	mgr.CheckAuthStatus(ctx)

	if !mgr.IsAuthenticated() {
		if err := mgr.Login(ctx); err != nil {
			status.Error(mgr.Status().Err)
			return err
		}
	}

	client := intra.NewClient(cfg.apiBaseURL, mgr, retryClient, logger)
	user, err := client.GetUser(ctx, cfg.user)
	if err != nil {
		status.Error(intra.UserMessage(err))
		return err
	}

	out.Profile(user)
	return nil
}

// appBackend bridges the TUI's intents onto the session manager, the
// API client, and the search coordinator. Results come back into the
// program as messages.
type appBackend struct {
	ctx       context.Context
	mgr       *session.Manager
	client    *intra.Client
	debouncer *intra.Debouncer
	program   *tea.Program
}

func (b *appBackend) Login() {
	go func() {
		// State transitions and the consent URL reach the UI through the
		// displayer; the returned error is already reflected there.
		_ = b.mgr.Login(b.ctx)
	}()
}

func (b *appBackend) Logout() {
	go b.mgr.Logout()
}

func (b *appBackend) Search(query string) {
	b.debouncer.Query(b.ctx, query)
}

func (b *appBackend) CancelSearch() {
	b.debouncer.Reset()
}

func (b *appBackend) Fetch(login string) {
	go func() {
		user, err := b.client.GetUser(b.ctx, login)
		if err != nil {
			b.program.Send(tui.MsgProfileFailed{Login: login, Message: intra.UserMessage(err)})
			return
		}
		b.program.Send(tui.MsgProfile{User: user})
	}()
}

// runTUI runs the interactive program. The BubbleTea loop owns the
// terminal; session restoration starts in the background and lands as
// messages.
func runTUI(
	ctx context.Context,
	cfg config,
	tokens *securestore.TokenStore,
	retryClient *retry.Client,
	logger zerolog.Logger,
) error {
	backend := &appBackend{ctx: ctx}

	m := tui.NewModel(backend)
	// Render on stderr so stdout pipes are not corrupted.
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	backend.program = p

	d := tui.NewProgramDisplayer(p)
	mgr := newSessionManager(cfg, tokens, retryClient, logger, d)
	client := intra.NewClient(cfg.apiBaseURL, mgr, retryClient, logger)

	backend.mgr = mgr
	backend.client = client
	backend.debouncer = intra.NewDebouncer(
		func(searchCtx context.Context, query string) ([]intra.User, error) {
			return client.SearchUsers(searchCtx, query, intra.DefaultSearchLimit)
		},
		func(r intra.SearchResult) {
			if r.Err != nil {
				p.Send(tui.MsgSearchFailed{Query: r.Query, Message: intra.UserMessage(r.Err)})
				return
			}
			p.Send(tui.MsgSearchResults{Query: r.Query, Users: r.Users})
		},
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mgr.CheckAuthStatus(ctx)
	}()

	// Quit the program when the context is cancelled (Ctrl+C / SIGTERM).
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, runErr := p.Run()
	wg.Wait()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", runErr)
		return runErr
	}
	return nil
}
