package oauth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"review_hub/internal/adapters/oauth"
	"review_hub/internal/domain"
)

type tokenServer struct {
	*httptest.Server
	hits    atomic.Int32
	reject  bool
	status  int // non-zero answers every request with this status
	release chan struct{}
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		if ts.release != nil {
			<-ts.release
		}
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case ts.status != 0:
			w.WriteHeader(ts.status)
			_, _ = w.Write([]byte(`upstream unavailable`))
		case ts.reject, r.Form.Get("code") == "bad-code":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
		case r.Form.Get("grant_type") == "refresh_token":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "fresh-" + r.Form.Get("refresh_token"),
				"expires_in":   3600,
				"token_type":   "Bearer",
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"expires_in":    3599,
				"token_type":    "Bearer",
				"scope":         "https://www.googleapis.com/auth/business.manage",
			})
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newManager(ts *tokenServer, now time.Time) *oauth.Manager {
	return oauth.New(oauth.Config{
		Platform:     domain.PlatformGoogle,
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   ts.URL + "/auth",
			TokenURL:  ts.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Timeout: 2 * time.Second,
	}, oauth.WithClock(func() time.Time { return now }))
}

func TestEnsureValidToken_SkewWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		expiresIn   time.Duration
		wantRefresh bool
	}{
		{"expires in 10 minutes", 10 * time.Minute, false},
		{"expires in exactly 5 minutes", 5 * time.Minute, true},
		{"expires in 4 minutes", 4 * time.Minute, true},
		{"already expired", -time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTokenServer(t)
			m := newManager(ts, now)
			in := domain.Integration{ID: "i1", AccessToken: "old", RefreshToken: "r1", ExpiresAt: now.Add(tt.expiresIn)}

			out, err := m.EnsureValidToken(context.Background(), in)
			require.NoError(t, err)

			if tt.wantRefresh {
				assert.Equal(t, int32(1), ts.hits.Load())
				assert.Equal(t, "fresh-r1", out.AccessToken)
				assert.Equal(t, "r1", out.RefreshToken, "refresh token kept when the endpoint omits it")
				assert.True(t, out.ExpiresAt.After(in.ExpiresAt))
			} else {
				assert.Equal(t, int32(0), ts.hits.Load())
				assert.Equal(t, in, out)
			}
		})
	}
}

func TestEnsureValidToken_RejectedGrant(t *testing.T) {
	now := time.Now()
	ts := newTokenServer(t)
	ts.reject = true
	m := newManager(ts, now)

	in := domain.Integration{ID: "i1", AccessToken: "old", RefreshToken: "revoked", ExpiresAt: now.Add(-time.Minute)}
	out, err := m.EnsureValidToken(context.Background(), in)

	var tre *domain.TokenRefreshError
	require.ErrorAs(t, err, &tre)
	assert.Contains(t, tre.Body, "invalid_grant")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	assert.Equal(t, "old", out.AccessToken, "integration is returned unchanged")
	assert.Equal(t, int32(1), ts.hits.Load(), "rejected grants are not retried")
}

func TestEnsureValidToken_NoRefreshToken(t *testing.T) {
	now := time.Now()
	ts := newTokenServer(t)
	m := newManager(ts, now)

	_, err := m.EnsureValidToken(context.Background(), domain.Integration{ID: "i1", ExpiresAt: now})
	var tre *domain.TokenRefreshError
	require.ErrorAs(t, err, &tre)
	assert.Equal(t, int32(0), ts.hits.Load())
}

func TestEnsureValidToken_ConcurrentRefreshesShareOneGrant(t *testing.T) {
	now := time.Now()
	ts := newTokenServer(t)
	ts.release = make(chan struct{})
	m := newManager(ts, now)
	in := domain.Integration{ID: "same", RefreshToken: "r1", ExpiresAt: now.Add(-time.Minute)}

	var wg sync.WaitGroup
	results := make([]domain.Integration, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := m.EnsureValidToken(context.Background(), in)
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}

	require.Eventually(t, func() bool { return ts.hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(ts.release)
	wg.Wait()

	assert.Equal(t, int32(1), ts.hits.Load())
	assert.Equal(t, "fresh-r1", results[0].AccessToken)
	assert.Equal(t, results[0].AccessToken, results[1].AccessToken)
}

func TestExchangeAuthorizationCode(t *testing.T) {
	ts := newTokenServer(t)
	m := newManager(ts, time.Now())

	g, err := m.ExchangeAuthorizationCode(context.Background(), "good-code", "https://app.example/cb")
	require.NoError(t, err)
	assert.Equal(t, "access-1", g.AccessToken)
	assert.Equal(t, "refresh-1", g.RefreshToken)
	assert.Equal(t, "https://www.googleapis.com/auth/business.manage", g.Scopes)
	assert.WithinDuration(t, time.Now().Add(time.Hour), g.ExpiresAt, time.Minute)
}

func TestExchangeAuthorizationCode_FailureCarriesBody(t *testing.T) {
	ts := newTokenServer(t)
	m := newManager(ts, time.Now())

	_, err := m.ExchangeAuthorizationCode(context.Background(), "bad-code", "https://app.example/cb")

	var ae *domain.AuthorizationExchangeError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.StatusCode)
	assert.Contains(t, ae.Body, "Token has been expired or revoked.")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthCodeURL_GooglePreset(t *testing.T) {
	m := oauth.New(oauth.Google("client-id", "secret"))
	raw := m.AuthCodeURL("state-123", "https://app.example/v1/oauth/google/callback")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "https://www.googleapis.com/auth/business.manage", q.Get("scope"))
}

func TestEnsureValidToken_UnavailableEndpointIsTransient(t *testing.T) {
	for _, status := range []int{http.StatusServiceUnavailable, http.StatusInternalServerError, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			now := time.Now()
			ts := newTokenServer(t)
			ts.status = status
			m := newManager(ts, now)

			in := domain.Integration{ID: "i1", AccessToken: "old", RefreshToken: "r1", ExpiresAt: now.Add(-time.Minute)}
			_, err := m.EnsureValidToken(context.Background(), in)
			require.Error(t, err)

			var tre *domain.TokenRefreshError
			assert.False(t, errors.As(err, &tre), "endpoint outage must not ask for re-consent")
			var pse *domain.PlatformSyncError
			require.True(t, errors.As(err, &pse))
			assert.Equal(t, "token.refresh", pse.Op)
			assert.NotErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}
