package app

import (
	"context"
	"encoding/json"
	"time"

	"review_hub/internal/domain"
)

type QueryService struct {
	repo     domain.ReviewRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ReviewRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *QueryService) GetReview(ctx context.Context, id string) (domain.Review, error) {
	key := reviewKey(id)
	var r domain.Review
	if ok, _ := s.cache.Get(ctx, key, &r); ok {
		return r, nil
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Review{}, err
	}
	_ = s.cache.Set(ctx, key, r, int(s.cacheTTL.Seconds()))
	return r, nil
}

func (s *QueryService) ListReviews(ctx context.Context, f domain.ReviewFilter) (domain.ReviewsPage, error) {
	f.Page, f.PageSize = domain.NormalizePage(f.Page, f.PageSize)
	key := listKey(generation(ctx, s.cache, f.BusinessID), f)

	var out domain.ReviewsPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	rp, err := s.repo.List(ctx, f)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy so callers mutating the result cannot alter the cached value
	cp := domain.ReviewsPage{TotalCount: rp.TotalCount, Page: rp.Page, PageSize: rp.PageSize}
	if n := len(rp.Items); n > 0 {
		cp.Items = make([]domain.Review, n)
		copy(cp.Items, rp.Items)
	}

	if b, _ := json.Marshal(cp); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
	}
	return cp, nil
}
