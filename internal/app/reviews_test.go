package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"review_hub/internal/app"
	"review_hub/internal/domain"
	"review_hub/internal/storage/memory"
)

type stubSyncer struct {
	reviews []domain.CanonicalReview
	postOK  bool
	posts   int
}

func (s *stubSyncer) SyncAllPlatforms(context.Context, string) ([]domain.CanonicalReview, error) {
	return s.reviews, nil
}

func (s *stubSyncer) PostApprovedReply(context.Context, string, domain.Platform, string, string) bool {
	s.posts++
	return s.postOK
}

func newReviewService(store *memory.Store, gen domain.TextGenerator, sy app.Syncer) *app.ReviewService {
	return app.NewReviewService(store, app.NewAnnotator(gen, nop), sy, memory.NewCache(), nop)
}

func googleReview(ext string, rating int, text string) domain.CanonicalReview {
	cr := canonical(ext, rating, text)
	cr.BusinessID = "biz"
	cr.Platform = domain.PlatformGoogle
	return cr
}

func TestIngest_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := newReviewService(store, nil, &stubSyncer{})

	first, err := svc.Ingest(ctx, googleReview("g1", 5, "Great"))
	require.NoError(t, err)

	draft := "Thanks!"
	pos := domain.SentimentPositive
	require.NoError(t, store.UpdateAnnotation(ctx, first.ID, &pos, &draft))

	changed := googleReview("g1", 1, "edited text")
	second, err := svc.Ingest(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Rating)
	require.NotNil(t, second.DraftResponse)
	assert.Equal(t, "Thanks!", *second.DraftResponse)

	page, _ := store.List(ctx, domain.ReviewFilter{BusinessID: "biz"})
	assert.Equal(t, 1, page.TotalCount)
}

func TestSyncBusiness_StoresAndLabelsNewReviews(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("negative", nil)
	sy := &stubSyncer{reviews: []domain.CanonicalReview{
		googleReview("g1", 5, "Food was cold"),
		googleReview("g2", 4, ""),
		googleReview("g1", 5, "Food was cold"),
	}}
	svc := newReviewService(store, gen, sy)

	res, err := svc.SyncBusiness(ctx, "biz")
	require.NoError(t, err)
	assert.Equal(t, app.SyncResult{Fetched: 3, Created: 2}, res)

	r1, _ := store.GetByExternalID(ctx, domain.PlatformGoogle, "g1")
	r2, _ := store.GetByExternalID(ctx, domain.PlatformGoogle, "g2")
	require.NotNil(t, r1.Sentiment)
	require.NotNil(t, r2.Sentiment)
	assert.Equal(t, domain.SentimentNegative, *r1.Sentiment, "text is classified by the provider")
	assert.Equal(t, domain.SentimentPositive, *r2.Sentiment, "empty text falls back to the star rating")
	gen.AssertNumberOfCalls(t, "Generate", 1)

	again, err := svc.SyncBusiness(ctx, "biz")
	require.NoError(t, err)
	assert.Zero(t, again.Created)
}

func TestSyncBusiness_ImportedReplyIsKept(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cr := googleReview("g1", 3, "ok")
	reply := "Thanks for visiting"
	cr.HasResponded, cr.ResponseText = true, &reply
	svc := newReviewService(store, nil, &stubSyncer{reviews: []domain.CanonicalReview{cr}})

	_, err := svc.SyncBusiness(ctx, "biz")
	require.NoError(t, err)
	r, _ := store.GetByExternalID(ctx, domain.PlatformGoogle, "g1")
	assert.True(t, r.HasResponded)
	assert.Equal(t, reply, *r.ResponseText)
	assert.Equal(t, domain.SentimentNeutral, *r.Sentiment)
}

func TestRequestDraft(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(r domain.GenerationRequest) bool { return r.Temperature < 0.5 })).Return("positive", nil)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(r domain.GenerationRequest) bool { return r.Temperature > 0.5 })).Return("Thank you, come again!", nil)
	svc := newReviewService(store, gen, &stubSyncer{})

	r, err := svc.Ingest(ctx, googleReview("g1", 5, "Loved it"))
	require.NoError(t, err)

	got, err := svc.RequestDraft(ctx, r.ID, domain.DraftOptions{Keywords: []string{"brunch"}})
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentPositive, *got.Sentiment)
	assert.Equal(t, "Thank you, come again!", *got.DraftResponse)

	stored, _ := store.GetByID(ctx, r.ID)
	assert.Equal(t, "Thank you, come again!", *stored.DraftResponse)

	_, err = svc.RequestDraft(ctx, "missing", domain.DraftOptions{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestDraft_GenerationFailureLeavesDraftUnset(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(r domain.GenerationRequest) bool { return r.Temperature < 0.5 })).Return("neutral", nil)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(r domain.GenerationRequest) bool { return r.Temperature > 0.5 })).Return("", errors.New("rate limited"))
	svc := newReviewService(store, gen, &stubSyncer{})

	r, _ := svc.Ingest(ctx, googleReview("g1", 3, "fine"))
	_, err := svc.RequestDraft(ctx, r.ID, domain.DraftOptions{})
	var ge *domain.GenerationError
	require.ErrorAs(t, err, &ge)

	stored, _ := store.GetByID(ctx, r.ID)
	assert.Nil(t, stored.DraftResponse)
}

func TestApprove(t *testing.T) {
	ctx := context.Background()

	t.Run("no draft and no custom text", func(t *testing.T) {
		store := memory.New()
		svc := newReviewService(store, nil, &stubSyncer{})
		r, _ := svc.Ingest(ctx, googleReview("g1", 5, "x"))

		_, err := svc.Approve(ctx, r.ID, "")
		assert.ErrorIs(t, err, domain.ErrNoResponseAvailable)
		stored, _ := store.GetByID(ctx, r.ID)
		assert.False(t, stored.HasResponded)
	})

	t.Run("stored draft becomes final text", func(t *testing.T) {
		store := memory.New()
		sy := &stubSyncer{postOK: true}
		svc := newReviewService(store, nil, sy)
		r, _ := svc.Ingest(ctx, googleReview("g1", 5, "x"))
		draft := "Thanks for the kind words"
		require.NoError(t, store.UpdateAnnotation(ctx, r.ID, nil, &draft))

		got, err := svc.Approve(ctx, r.ID, "")
		require.NoError(t, err)
		assert.True(t, got.HasResponded)
		assert.Equal(t, draft, *got.ResponseText)
		assert.WithinDuration(t, time.Now(), *got.RespondedAt, time.Minute)
		assert.Equal(t, 1, sy.posts)
	})

	t.Run("custom text wins and post failure does not roll back", func(t *testing.T) {
		store := memory.New()
		sy := &stubSyncer{postOK: false}
		svc := newReviewService(store, nil, sy)
		r, _ := svc.Ingest(ctx, googleReview("g1", 5, "x"))
		draft := "draft"
		require.NoError(t, store.UpdateAnnotation(ctx, r.ID, nil, &draft))

		got, err := svc.Approve(ctx, r.ID, "  Custom reply ")
		require.NoError(t, err)
		assert.Equal(t, "Custom reply", *got.ResponseText)

		stored, _ := store.GetByID(ctx, r.ID)
		assert.True(t, stored.HasResponded)
		assert.Equal(t, 1, sy.posts)
	})

	t.Run("second approval is rejected", func(t *testing.T) {
		store := memory.New()
		svc := newReviewService(store, nil, &stubSyncer{postOK: true})
		r, _ := svc.Ingest(ctx, googleReview("g1", 5, "x"))

		_, err := svc.Approve(ctx, r.ID, "first")
		require.NoError(t, err)
		_, err = svc.Approve(ctx, r.ID, "second")
		assert.ErrorIs(t, err, domain.ErrAlreadyResponded)

		stored, _ := store.GetByID(ctx, r.ID)
		assert.Equal(t, "first", *stored.ResponseText)
	})

	t.Run("unknown review", func(t *testing.T) {
		svc := newReviewService(memory.New(), nil, &stubSyncer{})
		_, err := svc.Approve(ctx, "nope", "text")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
