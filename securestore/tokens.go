package securestore

import (
	"strconv"
	"time"
)

// Slot names, fixed so a stored session survives binary upgrades.
const (
	slotAccessToken  = "access_token"
	slotRefreshToken = "refresh_token"
	slotTokenExpiry  = "token_expiry"
)

// expiryMargin is subtracted from the recorded expiry so a request never
// starts with a token that expires mid-flight.
const expiryMargin = 5 * time.Minute

// TokenStore persists the OAuth token record (access token, refresh
// token, computed expiry) on top of a Store. Absence of a record means
// logged out. Only the session manager writes it.
type TokenStore struct {
	store Store
}

// NewTokenStore creates a TokenStore over the given slot store.
func NewTokenStore(store Store) *TokenStore {
	return &TokenStore{store: store}
}

// Save persists a fresh token record. The expiry instant is computed
// here, at save time, never stored as a raw duration. An empty refresh
// token leaves the previously stored one untouched: the provider only
// rotates refresh tokens sometimes.
func (t *TokenStore) Save(accessToken, refreshToken string, expiresIn int) error {
	expiry := time.Now().Add(time.Duration(expiresIn) * time.Second)

	values := map[string]string{
		slotAccessToken: accessToken,
		slotTokenExpiry: strconv.FormatInt(expiry.Unix(), 10),
	}
	if refreshToken != "" {
		values[slotRefreshToken] = refreshToken
	}
	return t.store.Put(values)
}

// AccessToken returns the stored access token, if any.
func (t *TokenStore) AccessToken() (string, bool, error) {
	return t.store.Get(slotAccessToken)
}

// RefreshToken returns the stored refresh token, if any.
func (t *TokenStore) RefreshToken() (string, bool, error) {
	return t.store.Get(slotRefreshToken)
}

// IsExpired reports whether the stored access token is within the safety
// margin of its expiry. No recorded expiry, or an unreadable one, counts
// as expired.
func (t *TokenStore) IsExpired() (bool, error) {
	raw, ok, err := t.store.Get(slotTokenExpiry)
	if err != nil {
		return true, err
	}
	if !ok {
		return true, nil
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return true, nil
	}
	expiry := time.Unix(unix, 0)
	return time.Now().After(expiry.Add(-expiryMargin)), nil
}

// Clear deletes the whole token record. Clearing an already empty store
// is fine.
func (t *TokenStore) Clear() error {
	return t.store.Delete(slotAccessToken, slotRefreshToken, slotTokenExpiry)
}
