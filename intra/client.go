package intra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/rs/zerolog"
)

// apiRequestTimeout bounds each resource API call.
const apiRequestTimeout = 15 * time.Second

const (
	// searchMinChars is the floor below which a search returns nothing
	// without touching the network: shorter queries match too much of a
	// large user base and burn rate-limit quota for no relevance.
	searchMinChars = 3

	// DefaultSearchLimit is the page size for login suggestions.
	DefaultSearchLimit = 3
)

// TokenProvider hands out an access token valid for at least the expiry
// safety margin at dispatch time. The session manager implements it.
type TokenProvider interface {
	GetValidToken(ctx context.Context) (string, error)
}

// Client performs authenticated read-only calls against the Intra API.
type Client struct {
	baseURL string
	tokens  TokenProvider
	http    *retry.Client
	log     zerolog.Logger
}

// NewClient creates a Client for the API at baseURL.
func NewClient(baseURL string, tokens TokenProvider, httpClient *retry.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    httpClient,
		log:     log,
	}
}

// GetUser fetches one profile by login. The login is trimmed and
// lowercased first; an empty result is a ValidationError before any
// network call.
func (c *Client) GetUser(ctx context.Context, login string) (*User, error) {
	login = normalize(login)
	if login == "" {
		return nil, &ValidationError{Reason: "Login is required"}
	}

	body, err := c.get(ctx, c.baseURL+"/v2/users/"+url.PathEscape(login))
	if err != nil {
		if nf, ok := err.(*NotFoundError); ok {
			nf.Login = login
		}
		return nil, err
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, &APIError{Status: http.StatusOK, Message: "Unexpected response from server"}
	}
	return &user, nil
}

// SearchUsers returns up to limit profile summaries whose login matches
// query, in the relevance order the API chose. Queries shorter than
// three characters after normalization return an empty slice with zero
// network calls.
func (c *Client) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	query = normalize(query)
	if len(query) < searchMinChars {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	params := url.Values{}
	params.Set("search[login]", query)
	params.Set("page[size]", strconv.Itoa(limit))

	body, err := c.get(ctx, c.baseURL+"/v2/users?"+params.Encode())
	if err != nil {
		if nf, ok := err.(*NotFoundError); ok {
			nf.Login = query
		}
		return nil, err
	}

	var users []User
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, &APIError{Status: http.StatusOK, Message: "Unexpected response from server"}
	}
	return users, nil
}

// get performs one bearer-authenticated GET and maps failures into the
// error taxonomy. NotFoundError comes back with an empty login for the
// caller to fill.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: no usable token", ErrAuthExpired)
	}

	reqCtx, cancel := context.WithTimeout(ctx, apiRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.DoWithContext(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug().
			Int("status", resp.StatusCode).
			Str("url", rawURL).
			Bytes("body", body).
			Msg("intra api request failed")
		return nil, statusError(resp.StatusCode, body)
	}

	return body, nil
}

// statusError maps one non-2xx status into the taxonomy.
func statusError(status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrAuthExpired
	case http.StatusNotFound:
		return &NotFoundError{}
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}

	message := "Unknown error"
	var errBody apiErrorBody
	if err := json.Unmarshal(body, &errBody); err == nil {
		if errBody.ErrorDescription != "" {
			message = errBody.ErrorDescription
		} else if errBody.Error != "" {
			message = errBody.Error
		}
	}
	return &APIError{Status: status, Message: message}
}

// normalize trims and lowercases a login or query.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
