package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"review_hub/internal/adapters/observability"
	"review_hub/internal/domain"
)

// Syncer is the slice of SyncOrchestrator the lifecycle needs.
type Syncer interface {
	SyncAllPlatforms(ctx context.Context, businessID string) ([]domain.CanonicalReview, error)
	PostApprovedReply(ctx context.Context, businessID string, p domain.Platform, externalReviewID, text string) bool
}

// ReviewService owns the review lifecycle: New -> Annotated -> Drafted -> Responded.
type ReviewService struct {
	reviews   domain.ReviewRepository
	annotator *Annotator
	syncer    Syncer
	cache     domain.Cache
	log       zerolog.Logger
	now       func() time.Time
	newID     func() string
}

func NewReviewService(r domain.ReviewRepository, a *Annotator, s Syncer, c domain.Cache, log zerolog.Logger) *ReviewService {
	return &ReviewService{
		reviews:   r,
		annotator: a,
		syncer:    s,
		cache:     c,
		log:       log,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Ingest stores cr unless its (platform, external id) is already known, in
// which case the stored review is returned untouched.
func (s *ReviewService) Ingest(ctx context.Context, cr domain.CanonicalReview) (domain.Review, error) {
	r, _, err := s.ingest(ctx, cr)
	return r, err
}

func (s *ReviewService) ingest(ctx context.Context, cr domain.CanonicalReview) (domain.Review, bool, error) {
	existing, err := s.reviews.GetByExternalID(ctx, cr.Platform, cr.ExternalID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Review{}, false, err
	}

	r := domain.NewReview(s.newID(), cr, s.now())
	if err := s.reviews.Create(ctx, r); err != nil {
		// lost a race with a concurrent sync
		if errors.Is(err, domain.ErrDuplicate) {
			existing, gerr := s.reviews.GetByExternalID(ctx, cr.Platform, cr.ExternalID)
			return existing, false, gerr
		}
		return domain.Review{}, false, err
	}
	observability.ObserveIngested(string(cr.Platform))
	return r, true, nil
}

type SyncResult struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

// SyncBusiness pulls every platform, stores unseen reviews and labels their sentiment.
func (s *ReviewService) SyncBusiness(ctx context.Context, businessID string) (SyncResult, error) {
	crs, err := s.syncer.SyncAllPlatforms(ctx, businessID)
	if err != nil {
		return SyncResult{}, err
	}

	res := SyncResult{Fetched: len(crs)}
	for _, cr := range crs {
		r, created, err := s.ingest(ctx, cr)
		if err != nil {
			res.Failed++
			s.log.Warn().Err(err).Str("platform", string(cr.Platform)).Str("external_id", cr.ExternalID).Msg("ingest failed")
			continue
		}
		if !created {
			continue
		}
		res.Created++

		label := s.classify(ctx, r)
		if err := s.reviews.UpdateAnnotation(ctx, r.ID, &label, nil); err != nil {
			s.log.Warn().Err(err).Str("review_id", r.ID).Msg("store sentiment failed")
		}
	}
	if res.Created > 0 {
		invalidateReviews(ctx, s.cache, businessID)
	}
	s.log.Info().Str("business_id", businessID).Int("fetched", res.Fetched).Int("created", res.Created).Msg("business synced")
	return res, nil
}

// classify uses the star rating when there is no text to read or no provider.
func (s *ReviewService) classify(ctx context.Context, r domain.Review) domain.Sentiment {
	if strings.TrimSpace(r.Text) == "" || !s.annotator.Enabled() {
		return domain.SentimentFromRating(r.Rating)
	}
	return s.annotator.ClassifySentiment(ctx, r.Text)
}

// RequestDraft stores a fresh sentiment and drafted reply. On generation
// failure nothing is written.
func (s *ReviewService) RequestDraft(ctx context.Context, reviewID string, opts domain.DraftOptions) (domain.Review, error) {
	r, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return domain.Review{}, err
	}

	label, draft, err := s.annotator.AnalyzeAndDraft(ctx, r, opts)
	if err != nil {
		s.log.Warn().Err(err).Str("review_id", reviewID).Msg("draft generation failed")
		return domain.Review{}, err
	}
	if err := s.reviews.UpdateAnnotation(ctx, reviewID, &label, &draft); err != nil {
		return domain.Review{}, err
	}
	invalidateReviews(ctx, s.cache, r.BusinessID, reviewID)

	r.Sentiment = &label
	r.DraftResponse = &draft
	return r, nil
}

// Approve marks the review responded with customText, or the stored draft when
// customText is empty, then tries to publish it. A failed publish is logged and
// does not undo the approval.
func (s *ReviewService) Approve(ctx context.Context, reviewID, customText string) (domain.Review, error) {
	r, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return domain.Review{}, err
	}

	text := strings.TrimSpace(customText)
	if text == "" && r.DraftResponse != nil {
		text = strings.TrimSpace(*r.DraftResponse)
	}
	if text == "" {
		return domain.Review{}, domain.ErrNoResponseAvailable
	}
	if r.HasResponded {
		return domain.Review{}, domain.ErrAlreadyResponded
	}

	at := s.now().UTC()
	if err := s.reviews.MarkResponded(ctx, reviewID, text, at); err != nil {
		return domain.Review{}, err
	}
	r.HasResponded = true
	r.ResponseText = &text
	r.RespondedAt = &at
	invalidateReviews(ctx, s.cache, r.BusinessID, reviewID)

	if s.syncer != nil && !s.syncer.PostApprovedReply(ctx, r.BusinessID, r.Platform, r.ExternalID, text) {
		s.log.Warn().
			Str("review_id", r.ID).
			Str("platform", string(r.Platform)).
			Str("business_id", r.BusinessID).
			Msg("approved reply was not delivered to the platform")
	}
	return r, nil
}
