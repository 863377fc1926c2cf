// Package session owns the authentication lifecycle: the browser-based
// OAuth2 + PKCE login, token exchange and refresh against the provider's
// token endpoint, and the single "valid token right now" accessor every
// authenticated request goes through.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/rs/zerolog"

	"github.com/swifty-companion/intra-cli/securestore"
)

// Timeout configuration for the token endpoint operations.
const (
	tokenExchangeTimeout = 10 * time.Second
	refreshTokenTimeout  = 10 * time.Second
)

// Sentinel errors for login and token outcomes.
var (
	// ErrMissingCredentials means the OAuth client id or secret is not
	// configured; login cannot start.
	ErrMissingCredentials = errors.New("missing OAuth client credentials")

	// ErrLoginCancelled means the user backed out of the consent screen.
	ErrLoginCancelled = errors.New("login cancelled")

	// ErrLoginFailed is any other failed login outcome. The raw cause is
	// logged, never surfaced: guessing a more specific reason from the
	// provider's error body has proven unreliable.
	ErrLoginFailed = errors.New("login failed")

	// ErrNotAuthenticated means no usable token exists and none could be
	// obtained silently.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// State is the session phase.
type State int

const (
	// StateUnknown holds before the startup check runs.
	StateUnknown State = iota
	// StateChecking holds while the stored session is being restored.
	StateChecking
	// StateAuthenticated means a usable token record exists.
	StateAuthenticated
	// StateUnauthenticated means logged out.
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Status is the session state the UI consumes. Err is the user-facing
// error string for the current phase, empty when there is none.
type Status struct {
	State State
	Err   string
}

// Config carries the OAuth client configuration, read once at startup.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
}

// TokenResponse is the provider's token endpoint response body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// Manager is the single source of truth for "is the user logged in" and
// the sole credential path for authenticated requests. Construct one per
// process and hand it by reference to whatever needs it.
type Manager struct {
	cfg     Config
	tokens  *securestore.TokenStore
	browser Authorizer
	http    *retry.Client
	log     zerolog.Logger

	mu       sync.Mutex
	state    State
	errMsg   string
	gen      uint64 // bumped on logout so late responses cannot resurrect a session
	onChange func(Status)
}

// NewManager creates a Manager in the Unknown state.
func NewManager(
	cfg Config,
	tokens *securestore.TokenStore,
	browser Authorizer,
	httpClient *retry.Client,
	log zerolog.Logger,
) *Manager {
	return &Manager{
		cfg:     cfg,
		tokens:  tokens,
		browser: browser,
		http:    httpClient,
		log:     log,
		state:   StateUnknown,
	}
}

// SetOnChange registers a callback invoked after every state transition.
// The callback may run on whichever goroutine caused the transition.
func (m *Manager) SetOnChange(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Status returns the current session state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, Err: m.errMsg}
}

// IsAuthenticated reports whether the session is in the authenticated
// phase.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateAuthenticated
}

// CheckAuthStatus reconstructs the session from the token store at
// startup. An expired stored token triggers one silent refresh; only a
// failed refresh produces an error string. A first run with no stored
// token is not an error.
func (m *Manager) CheckAuthStatus(ctx context.Context) {
	m.setState(StateChecking, "")

	access, haveToken, err := m.tokens.AccessToken()
	if err != nil {
		m.log.Error().Err(err).Msg("reading stored session failed")
		m.setState(StateUnauthenticated, "Failed to check authentication status")
		return
	}
	expired, err := m.tokens.IsExpired()
	if err != nil {
		m.log.Error().Err(err).Msg("reading stored expiry failed")
		m.setState(StateUnauthenticated, "Failed to check authentication status")
		return
	}

	switch {
	case haveToken && access != "" && !expired:
		m.setState(StateAuthenticated, "")
	case haveToken && access != "":
		if _, err := m.refreshAccessToken(ctx); err != nil {
			m.setState(StateUnauthenticated, "Session expired")
			return
		}
		m.setState(StateAuthenticated, "")
	default:
		m.setState(StateUnauthenticated, "")
	}
}

// Login runs the interactive authorization-code flow: present the
// consent screen via the Authorizer, exchange the returned code together
// with the PKCE verifier, persist the token record.
func (m *Manager) Login(ctx context.Context) error {
	if m.cfg.ClientID == "" || m.cfg.ClientSecret == "" {
		m.setState(StateUnauthenticated, "Missing OAuth client credentials")
		return ErrMissingCredentials
	}

	req, verifier := m.newAuthRequest()
	m.log.Debug().Str("state", req.State).Msg("starting authorization flow")

	code, err := m.browser.Authorize(ctx, req)
	if err != nil || code == "" {
		m.log.Warn().Err(err).Msg("authorization flow did not produce a code")
		m.setState(StateUnauthenticated, "Login cancelled or failed")
		if errors.Is(err, ErrLoginCancelled) {
			return ErrLoginCancelled
		}
		return ErrLoginFailed
	}

	resp, err := m.exchangeCode(ctx, code, verifier)
	if err != nil {
		m.setState(StateUnauthenticated, "Login failed")
		return ErrLoginFailed
	}

	if err := m.tokens.Save(resp.AccessToken, resp.RefreshToken, resp.ExpiresIn); err != nil {
		m.log.Error().Err(err).Msg("persisting token record failed")
		m.setState(StateUnauthenticated, "Login failed")
		return ErrLoginFailed
	}

	m.setState(StateAuthenticated, "")
	return nil
}

// GetValidToken returns an access token with at least the safety margin
// of validity left, refreshing first when needed. A failed silent
// refresh demotes the session to unauthenticated without an error
// string: this is a background consequence, not a user action.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	expired, err := m.tokens.IsExpired()
	if err != nil {
		expired = true
	}

	if expired {
		if _, err := m.refreshAccessToken(ctx); err != nil {
			m.setState(StateUnauthenticated, "")
			return "", ErrNotAuthenticated
		}
	}

	access, ok, err := m.tokens.AccessToken()
	if err != nil || !ok || access == "" {
		m.setState(StateUnauthenticated, "")
		return "", ErrNotAuthenticated
	}
	return access, nil
}

// Logout clears the token record and transitions to unauthenticated.
// Storage failures are logged and swallowed: logout never appears to
// fail.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.gen++
	m.mu.Unlock()

	if err := m.tokens.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("clearing token record failed during logout")
	}
	m.setState(StateUnauthenticated, "")
}

// refreshAccessToken trades the stored refresh token for a new token
// record. No stored refresh token fails fast without a network call. A
// non-success response clears the store entirely: the provider does not
// support retrying an invalid refresh token.
func (m *Manager) refreshAccessToken(ctx context.Context) (*TokenResponse, error) {
	refreshToken, ok, err := m.tokens.RefreshToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if !ok || refreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	gen := m.generation()

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", m.cfg.ClientID)
	data.Set("client_secret", m.cfg.ClientSecret)
	data.Set("refresh_token", refreshToken)

	body, status, err := m.postForm(ctx, data, refreshTokenTimeout)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	if status != http.StatusOK {
		m.log.Warn().Int("status", status).Bytes("body", body).Msg("token refresh rejected")
		if clearErr := m.tokens.Clear(); clearErr != nil {
			m.log.Warn().Err(clearErr).Msg("clearing token record after rejected refresh failed")
		}
		return nil, ErrNotAuthenticated
	}

	resp, err := parseTokenResponse(body)
	if err != nil {
		m.log.Error().Err(err).Msg("refresh response unusable")
		return nil, fmt.Errorf("refresh response unusable: %w", err)
	}

	// A logout while this request was in flight wins: discard the result
	// instead of re-persisting tokens.
	if m.generation() != gen {
		return nil, ErrNotAuthenticated
	}

	if err := m.tokens.Save(resp.AccessToken, resp.RefreshToken, resp.ExpiresIn); err != nil {
		return nil, fmt.Errorf("persisting refreshed token failed: %w", err)
	}
	return resp, nil
}

// exchangeCode trades an authorization code plus its PKCE verifier for a
// token record.
func (m *Manager) exchangeCode(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", m.cfg.ClientID)
	data.Set("client_secret", m.cfg.ClientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", m.cfg.RedirectURI)
	data.Set("code_verifier", verifier)

	body, status, err := m.postForm(ctx, data, tokenExchangeTimeout)
	if err != nil {
		m.log.Error().Err(err).Msg("token exchange request failed")
		return nil, err
	}
	if status != http.StatusOK {
		// The raw body goes to the log for diagnostics; the caller only
		// ever sees a generic login failure.
		m.log.Error().Int("status", status).Bytes("body", body).Msg("token exchange rejected")
		return nil, ErrLoginFailed
	}

	resp, err := parseTokenResponse(body)
	if err != nil {
		m.log.Error().Err(err).Msg("token exchange response unusable")
		return nil, err
	}
	return resp, nil
}

// postForm sends one form-encoded POST to the token endpoint.
func (m *Manager) postForm(
	ctx context.Context,
	data url.Values,
	timeout time.Duration,
) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		reqCtx,
		http.MethodPost,
		m.cfg.TokenURL,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.DoWithContext(reqCtx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// parseTokenResponse parses and validates a success response from the
// token endpoint.
func parseTokenResponse(body []byte) (*TokenResponse, error) {
	var resp TokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if err := validateTokenResponse(&resp); err != nil {
		return nil, fmt.Errorf("invalid token response: %w", err)
	}
	return &resp, nil
}

// validateTokenResponse rejects responses no session could be built on.
func validateTokenResponse(resp *TokenResponse) error {
	if resp.AccessToken == "" {
		return errors.New("access_token is empty")
	}
	if resp.ExpiresIn <= 0 {
		return fmt.Errorf("expires_in must be positive, got: %d", resp.ExpiresIn)
	}
	// token_type is optional, but if present it should be "bearer".
	if resp.TokenType != "" && !strings.EqualFold(resp.TokenType, "bearer") {
		return fmt.Errorf("unexpected token_type: %s (expected bearer)", resp.TokenType)
	}
	return nil
}

// setState records a transition and notifies the registered listener.
func (m *Manager) setState(state State, errMsg string) {
	m.mu.Lock()
	changed := m.state != state || m.errMsg != errMsg
	m.state = state
	m.errMsg = errMsg
	fn := m.onChange
	m.mu.Unlock()

	if changed {
		m.log.Debug().Stringer("state", state).Str("error", errMsg).Msg("session transition")
	}
	if fn != nil && changed {
		fn(Status{State: state, Err: errMsg})
	}
}

func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}
