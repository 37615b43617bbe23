package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_hub/internal/domain"
	"review_hub/internal/storage/memory"
)

func review(id, biz string, p domain.Platform, ext string, rating int, posted time.Time) domain.Review {
	return domain.Review{ID: id, BusinessID: biz, Platform: p, ExternalID: ext, AuthorName: "A " + id, Rating: rating, Text: "text " + id, PostedAt: posted}
}

func TestCreate_DedupKey(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	now := time.Now().UTC()

	require.NoError(t, s.Create(ctx, review("r1", "b1", domain.PlatformGoogle, "x", 5, now)))
	assert.ErrorIs(t, s.Create(ctx, review("r2", "b1", domain.PlatformGoogle, "x", 4, now)), domain.ErrDuplicate)
	require.NoError(t, s.Create(ctx, review("r3", "b1", domain.PlatformYelp, "x", 4, now)), "same external id on another platform is distinct")

	got, err := s.GetByExternalID(ctx, domain.PlatformGoogle, "x")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
}

func TestListBusinessIDs(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	now := time.Now().UTC()

	ids, err := s.ListBusinessIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.Create(ctx, review("r1", "b2", domain.PlatformGoogle, "x", 5, now)))
	require.NoError(t, s.Create(ctx, review("r2", "b1", domain.PlatformYelp, "y", 4, now)))
	require.NoError(t, s.Create(ctx, review("r3", "b2", domain.PlatformYelp, "z", 3, now)))

	ids, err = s.ListBusinessIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, ids)
}

func TestMarkResponded_Once(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Create(ctx, review("r1", "b1", domain.PlatformGoogle, "x", 5, time.Now())))

	require.NoError(t, s.MarkResponded(ctx, "r1", "thanks", time.Now()))
	assert.ErrorIs(t, s.MarkResponded(ctx, "r1", "again", time.Now()), domain.ErrAlreadyResponded)
	assert.ErrorIs(t, s.MarkResponded(ctx, "nope", "x", time.Now()), domain.ErrNotFound)

	r, _ := s.GetByID(ctx, "r1")
	assert.Equal(t, "thanks", *r.ResponseText)
}

func TestSaveActive_OnePerBusinessPlatform(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	first, err := s.SaveActive(ctx, domain.Integration{ID: "i1", BusinessID: "b1", Platform: domain.PlatformGoogle, AccessToken: "a"})
	require.NoError(t, err)
	second, err := s.SaveActive(ctx, domain.Integration{ID: "i2", BusinessID: "b1", Platform: domain.PlatformGoogle, AccessToken: "b"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	active, _ := s.ListActive(ctx, "b1")
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].AccessToken)

	require.NoError(t, s.Deactivate(ctx, "i1"))
	_, err = s.GetActive(ctx, "b1", domain.PlatformGoogle)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	third, err := s.SaveActive(ctx, domain.Integration{ID: "i3", BusinessID: "b1", Platform: domain.PlatformGoogle})
	require.NoError(t, err)
	assert.Equal(t, "i3", third.ID, "a disconnected grant is not revived")
}

func TestList_FiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, rating := range []int{5, 4, 3, 2, 1} {
		r := review(string(rune('a'+i)), "b1", domain.PlatformGoogle, string(rune('a'+i)), rating, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.Create(ctx, r))
	}
	require.NoError(t, s.Create(ctx, review("other", "b2", domain.PlatformGoogle, "z", 5, base)))

	minRating := 3
	p, err := s.List(ctx, domain.ReviewFilter{BusinessID: "b1", MinRating: &minRating, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, p.TotalCount)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "c", p.Items[0].ID, "newest first")

	p, err = s.List(ctx, domain.ReviewFilter{BusinessID: "b1", MinRating: &minRating, Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "a", p.Items[0].ID)

	p, err = s.List(ctx, domain.ReviewFilter{BusinessID: "b1", Search: "TEXT D"})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "d", p.Items[0].ID)
}

func TestMetrics_UpsertAndPurge(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	day := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertMetrics(ctx, domain.ReviewMetrics{BusinessID: "b1", Date: day, TotalReviews: 1}))
	require.NoError(t, s.UpsertMetrics(ctx, domain.ReviewMetrics{BusinessID: "b1", Date: day, TotalReviews: 2}))
	n, _ := s.CountMetrics(ctx, "b1")
	assert.Equal(t, 1, n)

	m, err := s.GetMetrics(ctx, "b1", day)
	require.NoError(t, err)
	assert.Equal(t, 2, m.TotalReviews)
	assert.Equal(t, domain.DayStart(day), m.Date)

	require.NoError(t, s.Create(ctx, review("r1", "b1", domain.PlatformGoogle, "x", 5, day)))
	require.NoError(t, s.DeleteBusinessData(ctx, "b1"))
	n, _ = s.CountMetrics(ctx, "b1")
	assert.Zero(t, n)
	_, err = s.GetByExternalID(ctx, domain.PlatformGoogle, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCache_RoundTripAndDelete(t *testing.T) {
	ctx := context.Background()
	c := memory.NewCache()

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, 60))
	var got map[string]int
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, got["a"])

	require.NoError(t, c.Del(ctx, "k"))
	ok, _ = c.Get(ctx, "k", &got)
	assert.False(t, ok)
}
