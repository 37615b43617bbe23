// Package oauth issues, validates and refreshes platform access tokens.
package oauth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/sync/singleflight"

	"review_hub/internal/adapters/observability"
	"review_hub/internal/domain"
)

// DefaultSkew is how long before expiry a token is refreshed proactively.
const DefaultSkew = 5 * time.Minute

// defaultLifetime applies when the token endpoint omits expires_in.
const defaultLifetime = time.Hour

type Config struct {
	Platform     domain.Platform
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	Scopes       []string
	AuthParams   map[string]string // extra consent-screen parameters
	Timeout      time.Duration     // per token-endpoint call
}

// Google is the Business Profile grant (offline access, forced consent so a
// refresh token is always issued).
func Google(clientID, clientSecret string) Config {
	ep := endpoints.Google
	ep.AuthStyle = oauth2.AuthStyleInParams
	return Config{
		Platform:     domain.PlatformGoogle,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     ep,
		Scopes:       []string{"https://www.googleapis.com/auth/business.manage"},
		AuthParams:   map[string]string{"access_type": "offline", "prompt": "consent"},
	}
}

func Yelp(clientID, clientSecret string) Config {
	return Config{
		Platform:     domain.PlatformYelp,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://biz.yelp.com/oauth2/authorize",
			TokenURL:  "https://api.yelp.com/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"r2r_business_owner"},
	}
}

// Manager implements domain.TokenManager for one platform.
type Manager struct {
	platform domain.Platform
	cfg      oauth2.Config
	params   map[string]string
	hc       *http.Client
	timeout  time.Duration
	skew     time.Duration
	now      func() time.Time
	flight   singleflight.Group
}

type Option func(*Manager)

func WithHTTPClient(hc *http.Client) Option { return func(m *Manager) { m.hc = hc } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithSkew(d time.Duration) Option { return func(m *Manager) { m.skew = d } }

func New(c Config, opts ...Option) *Manager {
	m := &Manager{
		platform: c.Platform,
		cfg: oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     c.Endpoint,
			Scopes:       c.Scopes,
		},
		params:  c.AuthParams,
		timeout: c.Timeout,
		skew:    DefaultSkew,
		now:     time.Now,
	}
	if m.timeout <= 0 {
		m.timeout = 15 * time.Second
	}
	for _, o := range opts {
		o(m)
	}
	if m.hc == nil {
		m.hc = &http.Client{Timeout: m.timeout}
	}
	return m
}

func (m *Manager) Platform() domain.Platform { return m.platform }

func (m *Manager) AuthCodeURL(state, redirectURI string) string {
	c := m.cfg
	c.RedirectURL = redirectURI
	opts := make([]oauth2.AuthCodeOption, 0, len(m.params))
	for k, v := range m.params {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return c.AuthCodeURL(state, opts...)
}

// NeedsRefresh reports whether now >= expiresAt - skew.
func (m *Manager) NeedsRefresh(in domain.Integration) bool {
	return !m.now().Before(in.ExpiresAt.Add(-m.skew))
}

func (m *Manager) ExchangeAuthorizationCode(ctx context.Context, code, redirectURI string) (domain.TokenGrant, error) {
	ctx, cancel := m.callContext(ctx)
	defer cancel()

	c := m.cfg
	c.RedirectURL = redirectURI

	start := time.Now()
	tok, err := c.Exchange(ctx, code)
	m.observe("token.exchange", err, time.Since(start))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return domain.TokenGrant{}, &domain.AuthorizationExchangeError{
				Platform:   m.platform,
				StatusCode: statusOf(re),
				Body:       string(re.Body),
				Err:        err,
			}
		}
		if isTransport(ctx, err) {
			return domain.TokenGrant{}, &domain.PlatformSyncError{Platform: m.platform, Op: "token.exchange", Err: err}
		}
		return domain.TokenGrant{}, &domain.AuthorizationExchangeError{Platform: m.platform, Err: err}
	}
	return m.grant(tok, ""), nil
}

// EnsureValidToken refreshes in's access token when it is inside the skew
// window. Concurrent refreshes of one integration share a single grant.
// A rejected grant yields *domain.TokenRefreshError and is never retried;
// 429, 5xx and transport failures yield *domain.PlatformSyncError.
func (m *Manager) EnsureValidToken(ctx context.Context, in domain.Integration) (domain.Integration, error) {
	if !m.NeedsRefresh(in) {
		return in, nil
	}
	if in.RefreshToken == "" {
		observability.ObserveRefresh(string(m.platform), "rejected")
		return in, &domain.TokenRefreshError{Platform: m.platform, Err: errors.New("no refresh token stored")}
	}

	key := in.ID
	if key == "" {
		key = in.RefreshToken
	}
	v, err, _ := m.flight.Do(key, func() (any, error) {
		return m.refresh(ctx, in.RefreshToken)
	})
	if err != nil {
		return in, err
	}
	g := v.(domain.TokenGrant)
	in.AccessToken = g.AccessToken
	in.RefreshToken = g.RefreshToken
	in.ExpiresAt = g.ExpiresAt
	if g.Scopes != "" {
		in.Scopes = g.Scopes
	}
	return in, nil
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) (domain.TokenGrant, error) {
	ctx, cancel := m.callContext(ctx)
	defer cancel()

	// An empty access token is never valid, so the source always hits the endpoint.
	ts := m.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	start := time.Now()
	tok, err := ts.Token()
	m.observe("token.refresh", err, time.Since(start))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && grantRejected(re) {
			observability.ObserveRefresh(string(m.platform), "rejected")
			return domain.TokenGrant{}, &domain.TokenRefreshError{Platform: m.platform, Body: string(re.Body), Err: err}
		}
		observability.ObserveRefresh(string(m.platform), "error")
		return domain.TokenGrant{}, &domain.PlatformSyncError{Platform: m.platform, Op: "token.refresh", Err: err}
	}
	observability.ObserveRefresh(string(m.platform), "ok")
	return m.grant(tok, refreshToken), nil
}

func (m *Manager) grant(tok *oauth2.Token, previousRefresh string) domain.TokenGrant {
	g := domain.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
	}
	if g.RefreshToken == "" {
		g.RefreshToken = previousRefresh
	}
	if tok.Expiry.IsZero() {
		g.ExpiresAt = m.now().Add(defaultLifetime).UTC()
	}
	if s, ok := tok.Extra("scope").(string); ok {
		g.Scopes = s
	}
	return g
}

func (m *Manager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	return context.WithValue(ctx, oauth2.HTTPClient, m.hc), cancel
}

func (m *Manager) observe(endpoint string, err error, d time.Duration) {
	status := http.StatusOK
	if err != nil {
		status = 0
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status = statusOf(re)
		}
	}
	observability.ObserveExternal("oauth:"+string(m.platform), endpoint, status, d)
}

func statusOf(re *oauth2.RetrieveError) int {
	if re.Response == nil {
		return 0
	}
	return re.Response.StatusCode
}

// grantRejected separates a revoked or invalid grant from a token endpoint
// that is throttling or down. Only the former needs user re-consent.
func grantRejected(re *oauth2.RetrieveError) bool {
	switch re.ErrorCode {
	case "invalid_grant", "unauthorized_client", "invalid_client":
		return true
	}
	s := statusOf(re)
	return s >= 400 && s < 500 && s != http.StatusTooManyRequests
}

func isTransport(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
