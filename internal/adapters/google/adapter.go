// Package google adapts Google Business Profile reviews to the canonical shape.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"review_hub/internal/domain"
)

const (
	pageSize = 50
	// maxPages bounds one sync so a misbehaving pager cannot loop forever.
	maxPages = 200
)

type Adapter struct {
	c      *Client
	tokens domain.TokenManager
	log    zerolog.Logger
	now    func() time.Time
}

func New(c *Client, tokens domain.TokenManager, log zerolog.Logger) *Adapter {
	return &Adapter{c: c, tokens: tokens, log: log, now: time.Now}
}

func (a *Adapter) Platform() domain.Platform { return domain.PlatformGoogle }

func (a *Adapter) ValidateCredentials(in domain.Integration) bool {
	return in.CredentialsValid(a.now())
}

// FetchReviews pages through every review of the integration's location.
// A location with no reviews yields an empty slice; an integration with no
// account or location bound is a *domain.PlatformSyncError.
func (a *Adapter) FetchReviews(ctx context.Context, in *domain.Integration) ([]domain.CanonicalReview, error) {
	fresh, err := a.tokens.EnsureValidToken(ctx, *in)
	if err != nil {
		return nil, err
	}
	*in = fresh

	if in.ExternalAccountID == "" || in.ExternalLocationID == "" {
		return nil, &domain.PlatformSyncError{Platform: domain.PlatformGoogle, Op: "reviews.list",
			Err: errors.New("integration has no account or location bound")}
	}

	base := fmt.Sprintf("%s/accounts/%s/locations/%s/reviews",
		a.c.ep.Reviews, url.PathEscape(lastSegment(in.ExternalAccountID)), url.PathEscape(lastSegment(in.ExternalLocationID)))

	now := a.now()
	var out []domain.CanonicalReview
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		q := url.Values{"pageSize": {fmt.Sprint(pageSize)}}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var p reviewsPage
		if err := a.c.call(ctx, "reviews.list", http.MethodGet, base+"?"+q.Encode(), in.AccessToken, nil, &p); err != nil {
			return nil, &domain.PlatformSyncError{Platform: domain.PlatformGoogle, Op: "reviews.list", Err: err}
		}
		for _, w := range p.Reviews {
			out = append(out, toCanonical(in.BusinessID, w, now))
		}
		if p.NextPageToken == "" {
			return out, nil
		}
		pageToken = p.NextPageToken
	}
	a.log.Warn().Str("integration", in.ID).Int("pages", maxPages).Msg("review pagination truncated")
	return out, nil
}

// PostReply publishes text as the owner reply. Failures are logged and
// reported as false; they never propagate.
func (a *Adapter) PostReply(ctx context.Context, in *domain.Integration, externalReviewID, text string) bool {
	fresh, err := a.tokens.EnsureValidToken(ctx, *in)
	if err != nil {
		a.log.Warn().Err(err).Str("integration", in.ID).Msg("reply skipped: token unavailable")
		return false
	}
	*in = fresh

	u := fmt.Sprintf("%s/accounts/%s/locations/%s/reviews/%s/reply",
		a.c.ep.Reviews,
		url.PathEscape(lastSegment(in.ExternalAccountID)),
		url.PathEscape(lastSegment(in.ExternalLocationID)),
		url.PathEscape(externalReviewID))
	body := map[string]string{"comment": text}
	if err := a.c.call(ctx, "reviews.reply", http.MethodPut, u, in.AccessToken, body, nil); err != nil {
		a.log.Warn().Err(err).Str("review", externalReviewID).Msg("reply post failed")
		return false
	}
	return true
}

// FetchProfile resolves the first account and its first location for a
// freshly granted token. locationHint, when set, selects that location instead.
func (a *Adapter) FetchProfile(ctx context.Context, accessToken, locationHint string) (domain.PlatformProfile, error) {
	var accts accountsPage
	if err := a.c.call(ctx, "accounts.list", http.MethodGet, a.c.ep.Accounts+"/accounts", accessToken, nil, &accts); err != nil {
		return domain.PlatformProfile{}, &domain.PlatformSyncError{Platform: domain.PlatformGoogle, Op: "accounts.list", Err: err}
	}
	if len(accts.Accounts) == 0 {
		return domain.PlatformProfile{}, &domain.PlatformSyncError{Platform: domain.PlatformGoogle, Op: "accounts.list",
			Err: fmt.Errorf("no business accounts: %w", ErrNotFound)}
	}
	acct := accts.Accounts[0]

	q := url.Values{"readMask": {"name,title,storefrontAddress"}}
	lu := fmt.Sprintf("%s/%s/locations?%s", a.c.ep.BusinessInfo, acct.Name, q.Encode())
	var locs locationsPage
	if err := a.c.call(ctx, "locations.list", http.MethodGet, lu, accessToken, nil, &locs); err != nil {
		return domain.PlatformProfile{}, &domain.PlatformSyncError{Platform: domain.PlatformGoogle, Op: "locations.list", Err: err}
	}
	if len(locs.Locations) == 0 {
		return domain.PlatformProfile{}, &domain.PlatformSyncError{Platform: domain.PlatformGoogle, Op: "locations.list",
			Err: fmt.Errorf("account %s has no locations: %w", acct.Name, ErrNotFound)}
	}
	loc := locs.Locations[0]
	if locationHint != "" {
		for _, l := range locs.Locations {
			if lastSegment(l.Name) == lastSegment(locationHint) {
				loc = l
				break
			}
		}
	}

	return domain.PlatformProfile{
		AccountID:  lastSegment(acct.Name),
		LocationID: lastSegment(loc.Name),
		Name:       loc.Title,
		Address:    loc.address(),
	}, nil
}
