package xauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flockrank/internal/model"
)

// Config carries the OAuth2 application settings for the platform.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthorizeURL string
	TokenURL     string
}

// Client runs the OAuth2 PKCE flow against the platform's token endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
	nowFn      func() time.Time
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		nowFn:      time.Now,
	}
}

// BuildAuthorizationURL returns the provider authorize URL for the given
// state and verifier. The verifier itself is never sent; only its S256
// challenge appears in the URL.
func (c *Client) BuildAuthorizationURL(state, verifier string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("scope", strings.Join(c.cfg.Scopes, " "))
	q.Set("state", state)
	q.Set("code_challenge", CodeChallenge(verifier))
	q.Set("code_challenge_method", "S256")
	return c.cfg.AuthorizeURL + "?" + q.Encode()
}

// ExchangeCode trades an authorization code plus the original verifier for
// tokens. Fails with AuthError(ExchangeFailed) on any non-2xx response.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (model.Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("code_verifier", verifier)
	return c.tokenRequest(ctx, form, ExchangeFailed)
}

// Refresh trades a refresh token for a new credential.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (model.Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.cfg.ClientID)
	return c.tokenRequest(ctx, form, RefreshFailed)
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values, failKind Kind) (model.Credential, error) {
	var cred model.Credential
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return cred, &AuthError{Kind: failKind, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Confidential client: basic auth with app credentials.
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return cred, &AuthError{Kind: failKind, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return cred, &AuthError{Kind: failKind, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var raw struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return cred, &AuthError{Kind: failKind, Err: err}
	}
	cred.AccessToken = raw.AccessToken
	cred.RefreshToken = raw.RefreshToken
	if raw.ExpiresIn > 0 {
		cred.Expiry = c.nowFn().UTC().Add(time.Duration(raw.ExpiresIn) * time.Second)
	}
	return cred, nil
}
