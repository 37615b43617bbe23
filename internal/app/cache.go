package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"review_hub/internal/domain"
)

// Review list keys embed a per-business generation number; bumping it
// invalidates every cached filter combination at once.

func reviewKey(id string) string { return "review:" + id }

func generationKey(businessID string) string { return "reviews:gen:" + businessID }

func generation(ctx context.Context, c domain.Cache, businessID string) string {
	var g string
	if ok, _ := c.Get(ctx, generationKey(businessID), &g); ok && g != "" {
		return g
	}
	return "0"
}

func listKey(gen string, f domain.ReviewFilter) string {
	b, _ := json.Marshal(f)
	sum := sha1.Sum(b)
	return fmt.Sprintf("reviews:%s:%s:%s", f.BusinessID, gen, hex.EncodeToString(sum[:8]))
}

// invalidateReviews drops cached lists for a business and, when given, single reviews.
func invalidateReviews(ctx context.Context, c domain.Cache, businessID string, reviewIDs ...string) {
	if c == nil {
		return
	}
	_ = c.Set(ctx, generationKey(businessID), strconv.FormatInt(time.Now().UnixNano(), 36), 0)
	for _, id := range reviewIDs {
		_ = c.Del(ctx, reviewKey(id))
	}
}
