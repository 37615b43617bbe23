package app_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"review_hub/internal/domain"
)

var nop = zerolog.Nop()

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type fakeAdapter struct {
	platform  domain.Platform
	reviews   []domain.CanonicalReview
	err       error
	refreshTo string
	postOK    bool
	delay     time.Duration

	mu       sync.Mutex
	posted   []string
	calls    int32
	inflight int32
	peak     int32
}

func (f *fakeAdapter) Platform() domain.Platform { return f.platform }

func (f *fakeAdapter) FetchReviews(ctx context.Context, in *domain.Integration) ([]domain.CanonicalReview, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.refreshTo != "" {
		in.AccessToken = f.refreshTo
		in.ExpiresAt = in.ExpiresAt.Add(time.Hour)
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.CanonicalReview, len(f.reviews))
	copy(out, f.reviews)
	for i := range out {
		out[i].BusinessID = in.BusinessID
		out[i].Platform = f.platform
	}
	return out, nil
}

func (f *fakeAdapter) PostReply(_ context.Context, _ *domain.Integration, externalReviewID, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, externalReviewID+":"+text)
	return f.postOK
}

func (f *fakeAdapter) ValidateCredentials(in domain.Integration) bool {
	return in.CredentialsValid(time.Now())
}

type fakeTokens struct {
	grant    domain.TokenGrant
	err      error
	lastCode string
}

func (f *fakeTokens) AuthCodeURL(state, redirectURI string) string {
	return "https://consent.example/auth?state=" + state + "&redirect_uri=" + redirectURI
}

func (f *fakeTokens) ExchangeAuthorizationCode(_ context.Context, code, _ string) (domain.TokenGrant, error) {
	f.lastCode = code
	return f.grant, f.err
}

func (f *fakeTokens) EnsureValidToken(_ context.Context, in domain.Integration) (domain.Integration, error) {
	return in, nil
}

// profileAdapter is a fakeAdapter that can also resolve a profile.
type profileAdapter struct {
	*fakeAdapter
	profile domain.PlatformProfile
}

func (p *profileAdapter) FetchProfile(context.Context, string, string) (domain.PlatformProfile, error) {
	return p.profile, nil
}

func canonical(ext string, rating int, text string) domain.CanonicalReview {
	return domain.CanonicalReview{ExternalID: ext, AuthorName: "Author " + ext, Rating: rating, Text: text, PostedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func activeIntegration(id, biz string, p domain.Platform) domain.Integration {
	return domain.Integration{
		ID: id, BusinessID: biz, Platform: p, AccessToken: "tok-" + id, RefreshToken: "ref-" + id,
		ExpiresAt: time.Now().Add(time.Hour), Active: true, ConnectedAt: time.Now(),
	}
}
