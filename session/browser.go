package session

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog"
)

// BrowserAuthorizer presents the consent screen in the system browser
// and captures the redirect on a loopback listener bound to the
// configured redirect URI.
type BrowserAuthorizer struct {
	RedirectURI string
	Log         zerolog.Logger

	// OpenURL launches the browser; nil means the platform default.
	// The caller is expected to also display the URL, so a failed
	// launch is not fatal.
	OpenURL func(url string) error
}

type authOutcome struct {
	code string
	err  error
}

// Authorize opens req.URL and waits for the provider to redirect back
// with a code, an error indication, or for ctx to be cancelled.
func (b *BrowserAuthorizer) Authorize(ctx context.Context, req AuthRequest) (string, error) {
	redirect, err := url.Parse(b.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: invalid redirect URI: %v", ErrLoginFailed, err)
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return "", fmt.Errorf("%w: cannot listen on %s: %v", ErrLoginFailed, redirect.Host, err)
	}

	outcome := make(chan authOutcome, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if redirect.Path != "" && r.URL.Path != redirect.Path {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()

		if q.Get("state") != req.State {
			b.Log.Warn().Msg("redirect carried an unexpected state parameter")
			writeCallbackPage(w, "Login failed. You can close this tab.")
			outcome <- authOutcome{err: ErrLoginFailed}
			return
		}

		if errCode := q.Get("error"); errCode != "" {
			b.Log.Warn().Str("error", errCode).
				Str("description", q.Get("error_description")).
				Msg("authorization denied")
			writeCallbackPage(w, "Login cancelled. You can close this tab.")
			if errCode == "access_denied" {
				outcome <- authOutcome{err: ErrLoginCancelled}
			} else {
				outcome <- authOutcome{err: ErrLoginFailed}
			}
			return
		}

		code := q.Get("code")
		if code == "" {
			writeCallbackPage(w, "Login failed. You can close this tab.")
			outcome <- authOutcome{err: ErrLoginFailed}
			return
		}

		writeCallbackPage(w, "Login complete. You can close this tab and return to the terminal.")
		outcome <- authOutcome{code: code}
	})}

	go srv.Serve(ln)
	defer srv.Close()

	open := b.OpenURL
	if open == nil {
		open = openBrowser
	}
	if err := open(req.URL); err != nil {
		b.Log.Warn().Err(err).Msg("could not launch browser, open the URL manually")
	}

	select {
	case <-ctx.Done():
		return "", ErrLoginCancelled
	case out := <-outcome:
		return out.code, out.err
	}
}

func writeCallbackPage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", message)
}

// openBrowser launches the platform's default browser.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
