package session

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freePort grabs an ephemeral port for the loopback listener.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// hitRedirect simulates the provider's browser redirect.
func hitRedirect(t *testing.T, redirectURI string, params url.Values) {
	t.Helper()
	go func() {
		// Give Authorize a moment to start its listener.
		for i := 0; i < 50; i++ {
			resp, err := http.Get(redirectURI + "?" + params.Encode())
			if err == nil {
				resp.Body.Close()
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}()
}

func TestBrowserAuthorizer_Success(t *testing.T) {
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/oauth/callback", freePort(t))
	b := &BrowserAuthorizer{
		RedirectURI: redirectURI,
		Log:         zerolog.Nop(),
		OpenURL:     func(string) error { return nil },
	}

	hitRedirect(t, redirectURI, url.Values{"code": {"the-code"}, "state": {"st-1"}})

	code, err := b.Authorize(context.Background(), AuthRequest{URL: "https://auth.example", State: "st-1"})
	require.NoError(t, err)
	assert.Equal(t, "the-code", code)
}

func TestBrowserAuthorizer_AccessDenied(t *testing.T) {
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/oauth/callback", freePort(t))
	b := &BrowserAuthorizer{
		RedirectURI: redirectURI,
		Log:         zerolog.Nop(),
		OpenURL:     func(string) error { return nil },
	}

	hitRedirect(t, redirectURI, url.Values{"error": {"access_denied"}, "state": {"st-2"}})

	_, err := b.Authorize(context.Background(), AuthRequest{URL: "https://auth.example", State: "st-2"})
	assert.ErrorIs(t, err, ErrLoginCancelled)
}

func TestBrowserAuthorizer_StateMismatch(t *testing.T) {
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/oauth/callback", freePort(t))
	b := &BrowserAuthorizer{
		RedirectURI: redirectURI,
		Log:         zerolog.Nop(),
		OpenURL:     func(string) error { return nil },
	}

	hitRedirect(t, redirectURI, url.Values{"code": {"the-code"}, "state": {"forged"}})

	_, err := b.Authorize(context.Background(), AuthRequest{URL: "https://auth.example", State: "st-3"})
	assert.ErrorIs(t, err, ErrLoginFailed)
}

func TestBrowserAuthorizer_ContextCancelled(t *testing.T) {
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/oauth/callback", freePort(t))
	b := &BrowserAuthorizer{
		RedirectURI: redirectURI,
		Log:         zerolog.Nop(),
		OpenURL:     func(string) error { return nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := b.Authorize(ctx, AuthRequest{URL: "https://auth.example", State: "st-4"})
	assert.ErrorIs(t, err, ErrLoginCancelled)
}
