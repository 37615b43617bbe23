package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"review_hub/internal/domain"
)

func scanMetrics(s rowScanner) (domain.ReviewMetrics, error) {
	var m domain.ReviewMetrics
	err := s.Scan(&m.BusinessID, &m.Date, &m.TotalReviews, &m.PositiveReviews, &m.NeutralReviews, &m.NegativeReviews,
		&m.RespondedReviews, &m.NewReviews, &m.AverageRating, &m.CreatedAt)
	m.Date = domain.DayStart(m.Date)
	m.CreatedAt = m.CreatedAt.UTC()
	return m, err
}

// UpsertMetrics keeps the original created_at when a day is recomputed.
func (r *Repo) UpsertMetrics(ctx context.Context, m domain.ReviewMetrics) error {
	_, err := r.db.ExecContext(ctx, upsertMetricsSQL,
		m.BusinessID, domain.DayStart(m.Date), m.TotalReviews, m.PositiveReviews, m.NeutralReviews, m.NegativeReviews,
		m.RespondedReviews, m.NewReviews, m.AverageRating, m.CreatedAt.UTC(),
	)
	return err
}

func (r *Repo) GetMetrics(ctx context.Context, businessID string, day time.Time) (domain.ReviewMetrics, error) {
	m, err := scanMetrics(r.db.QueryRowContext(ctx, getMetricsSQL, businessID, domain.DayStart(day)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ReviewMetrics{}, domain.ErrNotFound
	}
	return m, err
}

func (r *Repo) ListMetrics(ctx context.Context, businessID string, from, to time.Time) ([]domain.ReviewMetrics, error) {
	rows, err := r.db.QueryContext(ctx, listMetricsSQL, businessID, domain.DayStart(from), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReviewMetrics
	for rows.Next() {
		m, err := scanMetrics(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repo) CountMetrics(ctx context.Context, businessID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countMetricsSQL, businessID).Scan(&n)
	return n, err
}
