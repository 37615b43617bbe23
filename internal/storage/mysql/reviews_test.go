package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"review_hub/internal/domain"
)

func TestReviewWhere(t *testing.T) {
	p := domain.PlatformYelp
	s := domain.SentimentNegative
	responded := false
	lo, hi := 2, 4
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	where, args := reviewWhere(domain.ReviewFilter{
		BusinessID: "biz", Platform: &p, Sentiment: &s, HasResponded: &responded,
		MinRating: &lo, MaxRating: &hi, From: &from, Search: " 50%_off ",
	})

	assert.Equal(t, "business_id = ? AND platform = ? AND sentiment = ? AND has_responded = ? AND rating >= ? AND rating <= ? AND posted_at >= ? AND (`text` LIKE ? OR author_name LIKE ?)", where)
	assert.Equal(t, []any{"biz", "yelp", "negative", false, 2, 4, from, `%50\%\_off%`, `%50\%\_off%`}, args)
}

func TestReviewWhere_BusinessOnly(t *testing.T) {
	where, args := reviewWhere(domain.ReviewFilter{BusinessID: "biz"})
	assert.Equal(t, "business_id = ?", where)
	assert.Equal(t, []any{"biz"}, args)
}
