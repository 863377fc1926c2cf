package main

import (
	"testing"
)

func TestGetConfig_Priority(t *testing.T) {
	t.Setenv("TEST_CONFIG_KEY", "from-env")

	if got := getConfig("from-flag", "TEST_CONFIG_KEY", "from-default"); got != "from-flag" {
		t.Errorf("Flag should win, got %q", got)
	}
	if got := getConfig("", "TEST_CONFIG_KEY", "from-default"); got != "from-env" {
		t.Errorf("Env should win over default, got %q", got)
	}
	if got := getConfig("", "TEST_CONFIG_MISSING", "from-default"); got != "from-default" {
		t.Errorf("Default should apply, got %q", got)
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid https", "https://api.intra.42.fr", false},
		{"valid http with port", "http://localhost:42420/oauth/callback", false},
		{"empty", "", true},
		{"bad scheme", "ftp://example.com", true},
		{"no host", "https://", true},
		{"not a url", "://nope", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.apiBaseURL != defaultAPIBaseURL {
		t.Errorf("apiBaseURL = %q, want %q", cfg.apiBaseURL, defaultAPIBaseURL)
	}
	if cfg.redirectURI != defaultRedirectURI {
		t.Errorf("redirectURI = %q, want %q", cfg.redirectURI, defaultRedirectURI)
	}
	if cfg.tokenFile != defaultTokenFile {
		t.Errorf("tokenFile = %q, want %q", cfg.tokenFile, defaultTokenFile)
	}
	if want := defaultAPIBaseURL + "/oauth/authorize"; cfg.authURL != want {
		t.Errorf("authURL = %q, want %q", cfg.authURL, want)
	}
	if want := defaultAPIBaseURL + "/oauth/token"; cfg.tokenURL != want {
		t.Errorf("tokenURL = %q, want %q", cfg.tokenURL, want)
	}
}

func TestLoadConfig_FlagsAndDerivedEndpoints(t *testing.T) {
	cfg, err := loadConfig([]string{
		"--api-url=https://intra.example/",
		"--client-id=cid",
		"--client-secret=sec",
		"--user=alice",
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.apiBaseURL != "https://intra.example" {
		t.Errorf("apiBaseURL = %q, trailing slash should be trimmed", cfg.apiBaseURL)
	}
	if cfg.authURL != "https://intra.example/oauth/authorize" {
		t.Errorf("authURL = %q", cfg.authURL)
	}
	if cfg.clientID != "cid" || cfg.clientSecret != "sec" {
		t.Errorf("credentials not picked up from flags")
	}
	if cfg.user != "alice" {
		t.Errorf("user = %q", cfg.user)
	}
}

func TestLoadConfig_RejectsBadURLs(t *testing.T) {
	if _, err := loadConfig([]string{"--api-url=ftp://nope"}); err == nil {
		t.Errorf("Expected error for bad API URL")
	}
	if _, err := loadConfig([]string{"--redirect-uri=not a url"}); err == nil {
		t.Errorf("Expected error for bad redirect URI")
	}
}
