// Package memory holds process-local repositories with the same uniqueness
// guarantees as the MySQL store. Intended for local runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"review_hub/internal/domain"
)

type Store struct {
	mu           sync.RWMutex
	integrations map[string]domain.Integration
	reviews      map[string]domain.Review
	byExternal   map[dedupKey]string
	metrics      map[metricsKey]domain.ReviewMetrics
}

type dedupKey struct {
	platform domain.Platform
	external string
}

type metricsKey struct {
	business string
	day      time.Time
}

func New() *Store {
	return &Store{
		integrations: map[string]domain.Integration{},
		reviews:      map[string]domain.Review{},
		byExternal:   map[dedupKey]string{},
		metrics:      map[metricsKey]domain.ReviewMetrics{},
	}
}

// ---- integrations ----

func (s *Store) GetActive(_ context.Context, businessID string, p domain.Platform) (domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if in, ok := s.activeLocked(businessID, p); ok {
		return in, nil
	}
	return domain.Integration{}, domain.ErrNotFound
}

func (s *Store) activeLocked(businessID string, p domain.Platform) (domain.Integration, bool) {
	for _, in := range s.integrations {
		if in.Active && in.BusinessID == businessID && in.Platform == p {
			return in, true
		}
	}
	return domain.Integration{}, false
}

func (s *Store) ListActive(_ context.Context, businessID string) ([]domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Integration
	for _, in := range s.integrations {
		if in.Active && in.BusinessID == businessID {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func (s *Store) ListActiveBusinessIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, in := range s.integrations {
		if in.Active && !seen[in.BusinessID] {
			seen[in.BusinessID] = true
			out = append(out, in.BusinessID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SaveActive(_ context.Context, in domain.Integration) (domain.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.activeLocked(in.BusinessID, in.Platform); ok {
		in.ID = cur.ID
		in.LastSyncAt = cur.LastSyncAt
	}
	in.Active = true
	s.integrations[in.ID] = in
	return in, nil
}

func (s *Store) update(id string, fn func(*domain.Integration)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&in)
	s.integrations[id] = in
	return nil
}

func (s *Store) UpdateTokens(_ context.Context, in domain.Integration) error {
	return s.update(in.ID, func(cur *domain.Integration) {
		cur.AccessToken = in.AccessToken
		cur.RefreshToken = in.RefreshToken
		cur.ExpiresAt = in.ExpiresAt
		cur.Scopes = in.Scopes
		cur.ReconnectRequired = false
	})
}

func (s *Store) TouchLastSync(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(cur *domain.Integration) { t := at.UTC(); cur.LastSyncAt = &t })
}

func (s *Store) MarkReconnectRequired(_ context.Context, id string) error {
	return s.update(id, func(cur *domain.Integration) { cur.ReconnectRequired = true })
}

func (s *Store) Deactivate(_ context.Context, id string) error {
	return s.update(id, func(cur *domain.Integration) { cur.Active = false })
}

// ---- reviews ----

func (s *Store) GetByID(_ context.Context, id string) (domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return r, nil
}

func (s *Store) GetByExternalID(_ context.Context, p domain.Platform, externalID string) (domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[dedupKey{p, externalID}]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return s.reviews[id], nil
}

func (s *Store) Create(_ context.Context, r domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := dedupKey{r.Platform, r.ExternalID}
	if _, ok := s.byExternal[k]; ok {
		return domain.ErrDuplicate
	}
	if _, ok := s.reviews[r.ID]; ok {
		return domain.ErrDuplicate
	}
	s.reviews[r.ID] = r
	s.byExternal[k] = r.ID
	return nil
}

func (s *Store) UpdateAnnotation(_ context.Context, id string, sent *domain.Sentiment, draft *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.ErrNotFound
	}
	if sent != nil {
		v := *sent
		r.Sentiment = &v
	}
	if draft != nil {
		v := *draft
		r.DraftResponse = &v
	}
	s.reviews[id] = r
	return nil
}

func (s *Store) MarkResponded(_ context.Context, id, text string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.HasResponded {
		return domain.ErrAlreadyResponded
	}
	t := at.UTC()
	r.HasResponded = true
	r.ResponseText = &text
	r.RespondedAt = &t
	s.reviews[id] = r
	return nil
}

func (s *Store) ListPosted(_ context.Context, businessID string, from, to time.Time) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Review
	for _, r := range s.reviews {
		if r.BusinessID == businessID && !r.PostedAt.Before(from) && r.PostedAt.Before(to) {
			out = append(out, r)
		}
	}
	sortNewest(out)
	return out, nil
}

func (s *Store) CountPosted(ctx context.Context, businessID string, from, to time.Time) (int, error) {
	rs, err := s.ListPosted(ctx, businessID, from, to)
	return len(rs), err
}

func (s *Store) ListBusinessIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, r := range s.reviews {
		if !seen[r.BusinessID] {
			seen[r.BusinessID] = true
			out = append(out, r.BusinessID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) List(_ context.Context, f domain.ReviewFilter) (domain.ReviewsPage, error) {
	s.mu.RLock()
	var all []domain.Review
	for _, r := range s.reviews {
		if matches(r, f) {
			all = append(all, r)
		}
	}
	s.mu.RUnlock()

	sortNewest(all)
	page, size := domain.NormalizePage(f.Page, f.PageSize)
	out := domain.ReviewsPage{TotalCount: len(all), Page: page, PageSize: size}
	start := (page - 1) * size
	if start < len(all) {
		end := start + size
		if end > len(all) {
			end = len(all)
		}
		out.Items = append([]domain.Review(nil), all[start:end]...)
	}
	return out, nil
}

func matches(r domain.Review, f domain.ReviewFilter) bool {
	if r.BusinessID != f.BusinessID {
		return false
	}
	if f.Platform != nil && r.Platform != *f.Platform {
		return false
	}
	if f.Sentiment != nil && (r.Sentiment == nil || *r.Sentiment != *f.Sentiment) {
		return false
	}
	if f.HasResponded != nil && r.HasResponded != *f.HasResponded {
		return false
	}
	if f.MinRating != nil && r.Rating < *f.MinRating {
		return false
	}
	if f.MaxRating != nil && r.Rating > *f.MaxRating {
		return false
	}
	if f.From != nil && r.PostedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !r.PostedAt.Before(*f.To) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(r.Text), q) && !strings.Contains(strings.ToLower(r.AuthorName), q) {
			return false
		}
	}
	return true
}

func sortNewest(rs []domain.Review) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].PostedAt.Equal(rs[j].PostedAt) {
			return rs[i].ID > rs[j].ID
		}
		return rs[i].PostedAt.After(rs[j].PostedAt)
	})
}

// ---- metrics ----

func (s *Store) UpsertMetrics(_ context.Context, m domain.ReviewMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Date = domain.DayStart(m.Date)
	k := metricsKey{m.BusinessID, m.Date}
	if cur, ok := s.metrics[k]; ok {
		m.CreatedAt = cur.CreatedAt
	}
	s.metrics[k] = m
	return nil
}

func (s *Store) GetMetrics(_ context.Context, businessID string, day time.Time) (domain.ReviewMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metrics[metricsKey{businessID, domain.DayStart(day)}]
	if !ok {
		return domain.ReviewMetrics{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListMetrics(_ context.Context, businessID string, from, to time.Time) ([]domain.ReviewMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ReviewMetrics
	for k, m := range s.metrics {
		if k.business == businessID && !k.day.Before(from) && k.day.Before(to) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) CountMetrics(_ context.Context, businessID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.metrics {
		if k.business == businessID {
			n++
		}
	}
	return n, nil
}

// DeleteBusinessData removes every row owned by businessID.
func (s *Store) DeleteBusinessData(_ context.Context, businessID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, in := range s.integrations {
		if in.BusinessID == businessID {
			delete(s.integrations, id)
		}
	}
	for id, r := range s.reviews {
		if r.BusinessID == businessID {
			delete(s.reviews, id)
			delete(s.byExternal, dedupKey{r.Platform, r.ExternalID})
		}
	}
	for k := range s.metrics {
		if k.business == businessID {
			delete(s.metrics, k)
		}
	}
	return nil
}
