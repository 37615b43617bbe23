package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_hub/internal/app"
	"review_hub/internal/domain"
	"review_hub/internal/storage/memory"
)

func put(t *testing.T, s *memory.Store, id string, rating int, sent domain.Sentiment, posted time.Time, responded bool) {
	t.Helper()
	r := domain.Review{ID: id, BusinessID: "biz", Platform: domain.PlatformGoogle, ExternalID: id, Rating: rating, PostedAt: posted, Sentiment: &sent}
	require.NoError(t, s.Create(context.Background(), r))
	if responded {
		require.NoError(t, s.MarkResponded(context.Background(), id, "thanks", posted))
	}
}

func TestComputeDaily(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	put(t, store, "a", 5, domain.SentimentPositive, d.Add(1*time.Hour), false)
	put(t, store, "b", 4, domain.SentimentPositive, d.Add(12*time.Hour), false)
	put(t, store, "c", 2, domain.SentimentNegative, d.Add(23*time.Hour+59*time.Minute), false)
	put(t, store, "next-day", 1, domain.SentimentNegative, d.Add(24*time.Hour), false)
	put(t, store, "prev-1", 3, domain.SentimentNeutral, d.Add(-time.Hour), true)

	svc := app.NewMetricsService(store, store, nop)
	m, err := svc.ComputeDaily(ctx, "biz", d.Add(15*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, d, m.Date)
	assert.Equal(t, 3, m.TotalReviews)
	assert.Equal(t, 2, m.PositiveReviews)
	assert.Equal(t, 0, m.NeutralReviews)
	assert.Equal(t, 1, m.NegativeReviews)
	assert.Equal(t, 0, m.RespondedReviews)
	assert.Equal(t, 3.6667, m.AverageRating)
	assert.Equal(t, 2, m.NewReviews)

	again, err := svc.ComputeDaily(ctx, "biz", d)
	require.NoError(t, err)
	n, _ := store.CountMetrics(ctx, "biz")
	assert.Equal(t, 1, n, "recomputing overwrites the day's row")
	assert.Equal(t, m.TotalReviews, again.TotalReviews)
	assert.Equal(t, m.AverageRating, again.AverageRating)
	assert.Equal(t, m.NewReviews, again.NewReviews)
}

func TestComputeDaily_EmptyDayAndNegativeNewReviews(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	put(t, store, "p1", 4, domain.SentimentPositive, d.Add(-2*time.Hour), false)
	put(t, store, "p2", 4, domain.SentimentPositive, d.Add(-3*time.Hour), false)

	m, err := app.NewMetricsService(store, store, nop).ComputeDaily(ctx, "biz", d)
	require.NoError(t, err)
	assert.Zero(t, m.TotalReviews)
	assert.Zero(t, m.AverageRating)
	assert.Equal(t, -2, m.NewReviews)
}

func TestAnalytics(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	put(t, store, "a", 5, domain.SentimentPositive, d.Add(time.Hour), true)
	put(t, store, "b", 3, domain.SentimentNeutral, d.Add(25*time.Hour), false)
	put(t, store, "c", 1, domain.SentimentNegative, d.Add(49*time.Hour), true)

	svc := app.NewMetricsService(store, store, nop)
	for i := 0; i < 3; i++ {
		_, err := svc.ComputeDaily(ctx, "biz", d.AddDate(0, 0, i))
		require.NoError(t, err)
	}

	a, err := svc.Analytics(ctx, "biz", d, d.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, a.TotalReviews)
	assert.Equal(t, 2, a.RespondedReviews)
	assert.Equal(t, 66.67, a.ResponseRate)
	assert.Equal(t, 3.0, a.AverageRating)
	assert.Equal(t, 1, a.PositiveReviews)
	assert.Equal(t, 1, a.NeutralReviews)
	assert.Equal(t, 1, a.NegativeReviews)
	require.Len(t, a.Daily, 3)
	assert.True(t, a.Daily[0].Date.Before(a.Daily[1].Date))
}

func TestRunnerRollupAll(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	seed(t, store, activeIntegration("g1", "biz", domain.PlatformGoogle), activeIntegration("g2", "other", domain.PlatformGoogle))
	put(t, store, "a", 5, domain.SentimentPositive, d.Add(time.Hour), true)

	metrics := app.NewMetricsService(store, store, nop)
	runner := app.NewRunner(store, nil, metrics, 2, nop)

	sum, err := runner.RollupAll(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Businesses)
	assert.Equal(t, 0, sum.Failed)

	m, err := store.GetMetrics(ctx, "biz", d)
	require.NoError(t, err)
	assert.Equal(t, 1, m.TotalReviews)
	assert.Equal(t, 1, m.RespondedReviews)

	empty, err := store.GetMetrics(ctx, "other", d)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalReviews)
}

func TestRunnerRollupAll_DisconnectedBusinessWithReviews(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	seed(t, store, activeIntegration("g1", "biz", domain.PlatformGoogle))
	put(t, store, "a", 4, domain.SentimentPositive, d.Add(2*time.Hour), false)
	put(t, store, "b", 2, domain.SentimentNegative, d.Add(3*time.Hour), true)
	require.NoError(t, store.Deactivate(ctx, "g1"))

	metrics := app.NewMetricsService(store, store, nop)
	sum, err := app.NewRunner(store, nil, metrics, 2, nop).RollupAll(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Businesses)
	assert.Equal(t, 0, sum.Failed)

	m, err := store.GetMetrics(ctx, "biz", d)
	require.NoError(t, err)
	assert.Equal(t, 2, m.TotalReviews)
	assert.Equal(t, 1, m.RespondedReviews)
}
