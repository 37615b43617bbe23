package app

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"review_hub/internal/domain"
)

const day = 24 * time.Hour

type MetricsService struct {
	reviews domain.ReviewRepository
	metrics domain.MetricsRepository
	log     zerolog.Logger
	now     func() time.Time
}

func NewMetricsService(r domain.ReviewRepository, m domain.MetricsRepository, log zerolog.Logger) *MetricsService {
	return &MetricsService{reviews: r, metrics: m, log: log, now: time.Now}
}

// BusinessIDs lists the businesses that have reviews to roll up.
func (s *MetricsService) BusinessIDs(ctx context.Context) ([]string, error) {
	return s.reviews.ListBusinessIDs(ctx)
}

// ComputeDaily snapshots the reviews posted on date's UTC day and upserts the
// row. Recomputing a day overwrites it with the same figures.
func (s *MetricsService) ComputeDaily(ctx context.Context, businessID string, date time.Time) (domain.ReviewMetrics, error) {
	start := domain.DayStart(date)
	rs, err := s.reviews.ListPosted(ctx, businessID, start, start.Add(day))
	if err != nil {
		return domain.ReviewMetrics{}, err
	}
	prior, err := s.reviews.CountPosted(ctx, businessID, start.Add(-day), start)
	if err != nil {
		return domain.ReviewMetrics{}, err
	}

	m := tally(rs)
	m.BusinessID = businessID
	m.Date = start
	m.NewReviews = m.TotalReviews - prior
	m.CreatedAt = s.now().UTC()

	if err := s.metrics.UpsertMetrics(ctx, m); err != nil {
		return domain.ReviewMetrics{}, err
	}
	s.log.Debug().Str("business_id", businessID).Time("day", start).Int("total", m.TotalReviews).Msg("daily metrics stored")
	return m, nil
}

// Analytics summarises reviews posted in [from, to) plus stored daily snapshots.
func (s *MetricsService) Analytics(ctx context.Context, businessID string, from, to time.Time) (domain.Analytics, error) {
	rs, err := s.reviews.ListPosted(ctx, businessID, from, to)
	if err != nil {
		return domain.Analytics{}, err
	}
	daily, err := s.metrics.ListMetrics(ctx, businessID, domain.DayStart(from), to)
	if err != nil {
		return domain.Analytics{}, err
	}

	t := tally(rs)
	a := domain.Analytics{
		TotalReviews:     t.TotalReviews,
		RespondedReviews: t.RespondedReviews,
		AverageRating:    t.AverageRating,
		PositiveReviews:  t.PositiveReviews,
		NeutralReviews:   t.NeutralReviews,
		NegativeReviews:  t.NegativeReviews,
		Daily:            daily,
	}
	if t.TotalReviews > 0 {
		a.ResponseRate = round(float64(t.RespondedReviews)*100/float64(t.TotalReviews), 2)
	}
	return a, nil
}

// tally fills the count and average fields. Mean is 0 for an empty set.
func tally(rs []domain.Review) domain.ReviewMetrics {
	var m domain.ReviewMetrics
	sum := 0
	for _, r := range rs {
		m.TotalReviews++
		sum += r.Rating
		if r.HasResponded {
			m.RespondedReviews++
		}
		if r.Sentiment == nil {
			continue
		}
		switch *r.Sentiment {
		case domain.SentimentPositive:
			m.PositiveReviews++
		case domain.SentimentNeutral:
			m.NeutralReviews++
		case domain.SentimentNegative:
			m.NegativeReviews++
		}
	}
	if m.TotalReviews > 0 {
		m.AverageRating = round(float64(sum)/float64(m.TotalReviews), 4)
	}
	return m
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
