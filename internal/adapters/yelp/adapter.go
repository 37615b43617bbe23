// Package yelp adapts Yelp business reviews to the canonical shape.
package yelp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"review_hub/internal/adapters/observability"
	"review_hub/internal/domain"
)

const (
	DefaultAPIBase     = "https://api.yelp.com"
	DefaultPartnerBase = "https://partner-api.yelp.com"

	reviewsLimit = 50
	timeLayout   = "2006-01-02 15:04:05"
)

// Yelp reports review times in Pacific time without an offset.
var yelpZone = func() *time.Location {
	if loc, err := time.LoadLocation("America/Los_Angeles"); err == nil {
		return loc
	}
	return time.UTC
}()

type Config struct {
	APIBase     string
	PartnerBase string
	RPS         int
	Timeout     time.Duration
}

type Adapter struct {
	api     *resty.Client
	partner *resty.Client
	rl      *rate.Limiter
	tokens  domain.TokenManager
	log     zerolog.Logger
	now     func() time.Time
}

func New(cfg Config, tokens domain.TokenManager, log zerolog.Logger) *Adapter {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.PartnerBase == "" {
		cfg.PartnerBase = DefaultPartnerBase
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Adapter{
		api:     newRestClient(cfg.APIBase, cfg.Timeout),
		partner: newRestClient(cfg.PartnerBase, cfg.Timeout),
		rl:      rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
		tokens:  tokens,
		log:     log,
		now:     time.Now,
	}
}

func newRestClient(base string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "review-hub/1.0").
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// replies are not idempotent; a resent POST can publish twice
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			if err != nil {
				return true
			}
			s := r.StatusCode()
			return s == http.StatusTooManyRequests || s >= http.StatusInternalServerError
		})
}

func (a *Adapter) Platform() domain.Platform { return domain.PlatformYelp }

func (a *Adapter) ValidateCredentials(in domain.Integration) bool {
	return in.CredentialsValid(a.now())
}

type reviewsResponse struct {
	Reviews []struct {
		ID          string `json:"id"`
		URL         string `json:"url"`
		Text        string `json:"text"`
		Rating      int    `json:"rating"`
		TimeCreated string `json:"time_created"`
		User        struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			ImageURL string `json:"image_url"`
		} `json:"user"`
	} `json:"reviews"`
	Total int `json:"total"`
}

type businessResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location struct {
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
}

func (a *Adapter) FetchReviews(ctx context.Context, in *domain.Integration) ([]domain.CanonicalReview, error) {
	fresh, err := a.tokens.EnsureValidToken(ctx, *in)
	if err != nil {
		return nil, err
	}
	*in = fresh

	if in.ExternalLocationID == "" {
		return nil, &domain.PlatformSyncError{Platform: domain.PlatformYelp, Op: "reviews.list",
			Err: errors.New("integration has no business bound")}
	}

	var out reviewsResponse
	resp, err := a.send(ctx, "reviews.list", a.api.R().
		SetAuthToken(in.AccessToken).
		SetPathParam("id", in.ExternalLocationID).
		SetQueryParam("limit", fmt.Sprint(reviewsLimit)).
		SetQueryParam("sort_by", "newest").
		SetResult(&out), http.MethodGet, "/v3/businesses/{id}/reviews")
	if err = statusErr(resp, err); err != nil {
		return nil, &domain.PlatformSyncError{Platform: domain.PlatformYelp, Op: "reviews.list", Err: err}
	}

	now := a.now()
	reviews := make([]domain.CanonicalReview, 0, len(out.Reviews))
	for _, r := range out.Reviews {
		cr := domain.CanonicalReview{
			BusinessID: in.BusinessID,
			Platform:   domain.PlatformYelp,
			ExternalID: r.ID,
			AuthorName: r.User.Name,
			Rating:     domain.ClampRating(r.Rating),
			Text:       r.Text,
			PostedAt:   now.UTC(),
		}
		if t, err := time.ParseInLocation(timeLayout, r.TimeCreated, yelpZone); err == nil {
			cr.PostedAt = t.UTC()
		}
		if r.URL != "" {
			u := r.URL
			cr.PlatformURL = &u
		}
		if r.User.ImageURL != "" {
			u := r.User.ImageURL
			cr.AuthorPhotoURL = &u
		}
		reviews = append(reviews, cr)
	}
	return reviews, nil
}

// PostReply publishes a public business response through the partner API.
func (a *Adapter) PostReply(ctx context.Context, in *domain.Integration, externalReviewID, text string) bool {
	fresh, err := a.tokens.EnsureValidToken(ctx, *in)
	if err != nil {
		a.log.Warn().Err(err).Str("integration", in.ID).Msg("reply skipped: token unavailable")
		return false
	}
	*in = fresh

	resp, err := a.send(ctx, "reviews.reply", a.partner.R().
		SetAuthToken(in.AccessToken).
		SetPathParam("id", externalReviewID).
		SetFormData(map[string]string{"text": text}), http.MethodPost, "/v1/reviews/{id}/public_response")
	if err = statusErr(resp, err); err != nil {
		a.log.Warn().Err(err).Str("review", externalReviewID).Msg("reply post failed")
		return false
	}
	return true
}

// FetchProfile looks up the business the grant is for. Yelp grants are
// per business, so the hint is required.
func (a *Adapter) FetchProfile(ctx context.Context, accessToken, locationHint string) (domain.PlatformProfile, error) {
	if locationHint == "" {
		return domain.PlatformProfile{}, &domain.PlatformSyncError{Platform: domain.PlatformYelp, Op: "business.get",
			Err: errors.New("yelp business id is required")}
	}
	var b businessResponse
	resp, err := a.send(ctx, "business.get", a.api.R().
		SetAuthToken(accessToken).
		SetPathParam("id", locationHint).
		SetResult(&b), http.MethodGet, "/v3/businesses/{id}")
	if err = statusErr(resp, err); err != nil {
		return domain.PlatformProfile{}, &domain.PlatformSyncError{Platform: domain.PlatformYelp, Op: "business.get", Err: err}
	}
	id := b.ID
	if id == "" {
		id = locationHint
	}
	return domain.PlatformProfile{
		AccountID:  id,
		LocationID: id,
		Name:       b.Name,
		Address:    strings.Join(b.Location.DisplayAddress, ", "),
	}, nil
}

func (a *Adapter) send(ctx context.Context, endpoint string, req *resty.Request, method, path string) (*resty.Response, error) {
	if err := a.rl.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := req.SetContext(ctx).Execute(method, path)
	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	observability.ObserveExternal("yelp", endpoint, status, time.Since(start))
	return resp, err
}

func statusErr(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	switch s := resp.StatusCode(); {
	case s == http.StatusUnauthorized:
		return fmt.Errorf("yelp: %w", domain.ErrUnauthorized)
	case s == http.StatusNotFound:
		return fmt.Errorf("yelp: %w", domain.ErrNotFound)
	case resp.IsError():
		body := resp.String()
		if len(body) > 4096 {
			body = body[:4096]
		}
		return fmt.Errorf("bad status %d: %s", s, strings.TrimSpace(body))
	}
	return nil
}
