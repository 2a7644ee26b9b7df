package eduadmin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"eduadmin-sync/internal/httpx"
	"eduadmin-sync/internal/logging"
	"eduadmin-sync/internal/state"
)

// ErrNoToken is returned when no usable access token could be obtained.
var ErrNoToken = errors.New("eduadmin: no access token")

// expirySkew is subtracted from the server-provided lifetime.
const expirySkew = 30 * time.Second

// Token is the persisted form of the cached credential.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   float64 `json:"expires_in"`
}

// TokenCache hands out the cached bearer token and performs a password-grant
// exchange only when the cached one is absent or expired.
type TokenCache struct {
	URL      string
	Username string
	Password string
	HTTP     *http.Client
	State    state.Store
	Timeout  time.Duration
	Now      func() time.Time
}

func NewTokenCache(tokenURL, username, password string, st state.Store, timeout time.Duration) *TokenCache {
	return &TokenCache{
		URL:      tokenURL,
		Username: username,
		Password: password,
		HTTP:     &http.Client{},
		State:    st,
		Timeout:  timeout,
		Now:      time.Now,
	}
}

// Token returns a valid access token.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	now := c.Now()

	var cached Token
	err := c.State.Get(ctx, state.KeyToken, &cached)
	switch {
	case err == nil:
		if cached.AccessToken != "" && now.Unix() < cached.ExpiresAt {
			return cached.AccessToken, nil
		}
	case !errors.Is(err, state.ErrNotFound):
		logging.Warn().Err(err).Msg("token cache unreadable, requesting a new token")
	}

	tok, err := c.exchange(ctx, now)
	if err != nil {
		return "", err
	}
	if err := c.State.Set(ctx, state.KeyToken, tok); err != nil {
		logging.Warn().Err(err).Msg("failed to persist access token")
	}
	return tok.AccessToken, nil
}

func (c *TokenCache) exchange(ctx context.Context, now time.Time) (Token, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	form := url.Values{}
	form.Set("username", c.Username)
	form.Set("password", c.Password)
	form.Set("grant_type", "password")
	encoded := form.Encode()

	var tr tokenResponse
	err := httpx.DoJSON(ctx, c.HTTP, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.Header.Set("Accept", "application/json")
		return r, nil
	}, &tr, httpx.NoRetry())
	if err != nil {
		return Token{}, fmt.Errorf("%w: token request: %v", ErrNoToken, err)
	}
	if tr.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: empty access_token in response", ErrNoToken)
	}

	expires := now.Add(time.Duration(tr.ExpiresIn)*time.Second - expirySkew)
	logging.Info().Time("expires_at", expires).Msg("obtained new access token")
	return Token{AccessToken: tr.AccessToken, ExpiresAt: expires.Unix()}, nil
}
