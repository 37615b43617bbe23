package domain

import (
	"strings"
	"time"
)

type Platform string

const (
	PlatformGoogle Platform = "google"
	PlatformYelp   Platform = "yelp"
)

// ParsePlatform accepts any casing ("Google", "YELP").
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformGoogle, PlatformYelp:
		return p, nil
	}
	return "", ErrUnknownPlatform
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ParseSentiment reports false for anything outside the three labels.
func ParseSentiment(s string) (Sentiment, bool) {
	switch v := Sentiment(strings.ToLower(strings.TrimSpace(s))); v {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return v, true
	}
	return "", false
}

// SentimentFromRating is the star-based classification used for reviews
// without text and when no generation provider is configured.
func SentimentFromRating(rating int) Sentiment {
	switch {
	case rating >= 4:
		return SentimentPositive
	case rating == 3:
		return SentimentNeutral
	default:
		return SentimentNegative
	}
}

// ClampRating keeps ratings inside 1..5.
func ClampRating(r int) int {
	if r < 1 {
		return 1
	}
	if r > 5 {
		return 5
	}
	return r
}

// CanonicalReview is the platform-agnostic shape every adapter produces.
type CanonicalReview struct {
	BusinessID     string
	Platform       Platform
	ExternalID     string
	AuthorName     string
	AuthorEmail    string // synthetic or empty when the platform hides it
	Rating         int
	Text           string
	PostedAt       time.Time
	PlatformURL    *string
	AuthorPhotoURL *string
	IsVerified     bool

	// Set when the review already carries a reply on the platform side.
	HasResponded bool
	ResponseText *string
	RespondedAt  *time.Time
}

type Review struct {
	ID             string
	BusinessID     string
	Platform       Platform
	ExternalID     string
	AuthorName     string
	AuthorEmail    string
	Rating         int
	Text           string
	PostedAt       time.Time
	CreatedAt      time.Time
	Sentiment      *Sentiment
	DraftResponse  *string
	HasResponded   bool
	RespondedAt    *time.Time
	ResponseText   *string
	PlatformURL    *string
	AuthorPhotoURL *string
	IsVerified     bool
}

// NewReview builds the stored form of a canonical review.
func NewReview(id string, cr CanonicalReview, now time.Time) Review {
	posted := cr.PostedAt
	if posted.IsZero() {
		posted = now
	}
	r := Review{
		ID:             id,
		BusinessID:     cr.BusinessID,
		Platform:       cr.Platform,
		ExternalID:     cr.ExternalID,
		AuthorName:     cr.AuthorName,
		AuthorEmail:    cr.AuthorEmail,
		Rating:         ClampRating(cr.Rating),
		Text:           cr.Text,
		PostedAt:       posted.UTC(),
		CreatedAt:      now.UTC(),
		PlatformURL:    cr.PlatformURL,
		AuthorPhotoURL: cr.AuthorPhotoURL,
		IsVerified:     cr.IsVerified,
	}
	if cr.HasResponded {
		r.HasResponded = true
		r.ResponseText = cr.ResponseText
		at := now.UTC()
		if cr.RespondedAt != nil {
			at = cr.RespondedAt.UTC()
		}
		r.RespondedAt = &at
	}
	return r
}

// ReviewFilter selects reviews for listing. Zero values mean "any".
type ReviewFilter struct {
	BusinessID   string
	Platform     *Platform
	Sentiment    *Sentiment
	HasResponded *bool
	MinRating    *int
	MaxRating    *int
	From, To     *time.Time // posted_at in [From, To)
	Search       string
	Page         int // 1-based
	PageSize     int
}

type ReviewsPage struct {
	Items      []Review
	TotalCount int
	Page       int
	PageSize   int
}

// DraftOptions customise a generated reply.
type DraftOptions struct {
	CustomPrompt string
	Keywords     []string
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage applies defaults and bounds to 1-based paging input.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}
