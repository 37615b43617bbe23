package domain

import (
	"context"
	"time"
)

type IntegrationRepository interface {
	// GetActive returns ErrNotFound when the pair has no active integration.
	GetActive(ctx context.Context, businessID string, p Platform) (Integration, error)
	ListActive(ctx context.Context, businessID string) ([]Integration, error)
	ListActiveBusinessIDs(ctx context.Context) ([]string, error)
	// SaveActive inserts, or replaces the grant of the existing active
	// integration for (business, platform). Returns the stored row.
	SaveActive(ctx context.Context, in Integration) (Integration, error)
	UpdateTokens(ctx context.Context, in Integration) error
	TouchLastSync(ctx context.Context, id string, at time.Time) error
	MarkReconnectRequired(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
}

type ReviewRepository interface {
	GetByID(ctx context.Context, id string) (Review, error)
	GetByExternalID(ctx context.Context, p Platform, externalID string) (Review, error)
	// Create returns ErrDuplicate when (platform, external id) already exists.
	Create(ctx context.Context, r Review) error
	UpdateAnnotation(ctx context.Context, id string, s *Sentiment, draft *string) error
	// MarkResponded returns ErrAlreadyResponded if the review was responded before.
	MarkResponded(ctx context.Context, id, text string, at time.Time) error
	ListPosted(ctx context.Context, businessID string, from, to time.Time) ([]Review, error)
	CountPosted(ctx context.Context, businessID string, from, to time.Time) (int, error)
	// ListBusinessIDs returns every business with at least one stored review.
	ListBusinessIDs(ctx context.Context) ([]string, error)
	List(ctx context.Context, f ReviewFilter) (ReviewsPage, error)
}

type MetricsRepository interface {
	UpsertMetrics(ctx context.Context, m ReviewMetrics) error
	GetMetrics(ctx context.Context, businessID string, day time.Time) (ReviewMetrics, error)
	ListMetrics(ctx context.Context, businessID string, from, to time.Time) ([]ReviewMetrics, error)
	CountMetrics(ctx context.Context, businessID string) (int, error)
}

// BusinessDataPurger removes everything owned by a business.
type BusinessDataPurger interface {
	DeleteBusinessData(ctx context.Context, businessID string) error
}

// TokenManager issues and refreshes access tokens for one platform.
type TokenManager interface {
	AuthCodeURL(state, redirectURI string) string
	ExchangeAuthorizationCode(ctx context.Context, code, redirectURI string) (TokenGrant, error)
	EnsureValidToken(ctx context.Context, in Integration) (Integration, error)
}

// PlatformAdapter is the capability set every review platform implements.
// FetchReviews and PostReply may refresh the integration's tokens in place;
// the caller persists them.
type PlatformAdapter interface {
	Platform() Platform
	FetchReviews(ctx context.Context, in *Integration) ([]CanonicalReview, error)
	PostReply(ctx context.Context, in *Integration, externalReviewID, text string) bool
	ValidateCredentials(in Integration) bool
}

// ProfileFetcher is implemented by adapters that can discover the account and
// location behind a fresh grant.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, accessToken, locationHint string) (PlatformProfile, error)
}

type GenerationRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// TextGenerator is the third-party text-generation call.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Locker is a cross-process mutex. ok is false when another holder owns key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}
