package session

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// AuthRequest is a prepared authorization-code request: the consent URL
// to present (carrying the PKCE challenge) and the anti-CSRF state the
// redirect must echo back.
type AuthRequest struct {
	URL   string
	State string
}

// Authorizer presents the consent screen and returns the authorization
// code from the redirect. Implementations return ErrLoginCancelled when
// the user backs out and ErrLoginFailed for any other outcome that
// carries no code.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthRequest) (code string, err error)
}

// newAuthRequest builds the PKCE authorization request. The code
// verifier is generated locally and returned to the caller; only its
// S256 challenge travels in the URL.
func (m *Manager) newAuthRequest() (AuthRequest, string) {
	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	cfg := oauth2.Config{
		ClientID: m.cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:  m.cfg.AuthURL,
			TokenURL: m.cfg.TokenURL,
		},
		RedirectURL: m.cfg.RedirectURI,
		Scopes:      m.cfg.Scopes,
	}

	return AuthRequest{
		URL:   cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		State: state,
	}, verifier
}
