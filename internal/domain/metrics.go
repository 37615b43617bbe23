package domain

import "time"

// ReviewMetrics is one snapshot per (business, UTC day).
type ReviewMetrics struct {
	BusinessID       string
	Date             time.Time
	TotalReviews     int
	PositiveReviews  int
	NeutralReviews   int
	NegativeReviews  int
	RespondedReviews int
	NewReviews       int // today's total minus the prior day's; may be negative
	AverageRating    float64
	CreatedAt        time.Time
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type Analytics struct {
	TotalReviews     int
	RespondedReviews int
	ResponseRate     float64 // percent
	AverageRating    float64
	PositiveReviews  int
	NeutralReviews   int
	NegativeReviews  int
	Daily            []ReviewMetrics
}
