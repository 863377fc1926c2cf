package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// Defaults for the 42 Intra API. Everything is overridable for tests
// and self-hosted mirrors.
const (
	defaultAPIBaseURL  = "https://api.intra.42.fr"
	defaultRedirectURI = "http://localhost:42420/oauth/callback"
	defaultTokenFile   = ".intra-tokens.json"
)

// oauthScopes is the fixed scope list the provider grants this client.
var oauthScopes = []string{"public"}

type config struct {
	clientID     string
	clientSecret string
	redirectURI  string
	apiBaseURL   string
	authURL      string
	tokenURL     string
	tokenFile    string

	user  string // one-shot fetch mode
	debug bool
}

// loadConfig parses flags and environment. Priority: flag > env >
// default. Client credentials may stay empty here; a missing id or
// secret only fails once a login actually starts.
func loadConfig(args []string) (config, error) {
	fs := pflag.NewFlagSet("intra-cli", pflag.ContinueOnError)
	flagClientID := fs.String("client-id", "", "OAuth client ID (or INTRA_CLIENT_ID env)")
	flagClientSecret := fs.String("client-secret", "", "OAuth client secret (or INTRA_CLIENT_SECRET env)")
	flagRedirectURI := fs.String("redirect-uri", "", "OAuth redirect URI (default: "+defaultRedirectURI+" or INTRA_REDIRECT_URI env)")
	flagAPIBaseURL := fs.String("api-url", "", "Intra API base URL (default: "+defaultAPIBaseURL+" or INTRA_API_URL env)")
	flagTokenFile := fs.String("token-file", "", "Token storage file (default: "+defaultTokenFile+" or INTRA_TOKEN_FILE env)")
	flagUser := fs.String("user", "", "Fetch one profile by login and exit")
	flagDebug := fs.Bool("debug", false, "Write debug logs")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	cfg := config{
		clientID:     getConfig(*flagClientID, "INTRA_CLIENT_ID", ""),
		clientSecret: getConfig(*flagClientSecret, "INTRA_CLIENT_SECRET", ""),
		redirectURI:  getConfig(*flagRedirectURI, "INTRA_REDIRECT_URI", defaultRedirectURI),
		apiBaseURL:   getConfig(*flagAPIBaseURL, "INTRA_API_URL", defaultAPIBaseURL),
		tokenFile:    getConfig(*flagTokenFile, "INTRA_TOKEN_FILE", defaultTokenFile),
		user:         *flagUser,
		debug:        *flagDebug,
	}
	cfg.apiBaseURL = strings.TrimRight(cfg.apiBaseURL, "/")
	cfg.authURL = cfg.apiBaseURL + "/oauth/authorize"
	cfg.tokenURL = cfg.apiBaseURL + "/oauth/token"

	if err := validateURL(cfg.apiBaseURL); err != nil {
		return config{}, fmt.Errorf("invalid API base URL: %w", err)
	}
	if err := validateURL(cfg.redirectURI); err != nil {
		return config{}, fmt.Errorf("invalid redirect URI: %w", err)
	}

	return cfg, nil
}

// getConfig returns value with priority: flag > env > default.
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// validateURL validates that a configured URL is properly formed.
func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}
