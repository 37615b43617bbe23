package httpserver

import (
	"time"

	"review_hub/internal/app"
	"review_hub/internal/domain"
)

type reviewDTO struct {
	ID             string     `json:"id"`
	BusinessID     string     `json:"business_id"`
	Platform       string     `json:"platform"`
	ExternalID     string     `json:"external_id"`
	AuthorName     string     `json:"author_name"`
	AuthorEmail    string     `json:"author_email,omitempty"`
	Rating         int        `json:"rating"`
	Text           string     `json:"text"`
	PostedAt       time.Time  `json:"posted_at"`
	CreatedAt      time.Time  `json:"created_at"`
	Sentiment      *string    `json:"sentiment"`
	DraftResponse  *string    `json:"draft_response"`
	HasResponded   bool       `json:"has_responded"`
	RespondedAt    *time.Time `json:"responded_at"`
	ResponseText   *string    `json:"response_text"`
	PlatformURL    *string    `json:"platform_url,omitempty"`
	AuthorPhotoURL *string    `json:"author_photo_url,omitempty"`
	IsVerified     bool       `json:"is_verified"`
}

func toReviewDTO(r domain.Review) reviewDTO {
	d := reviewDTO{
		ID:             r.ID,
		BusinessID:     r.BusinessID,
		Platform:       string(r.Platform),
		ExternalID:     r.ExternalID,
		AuthorName:     r.AuthorName,
		AuthorEmail:    r.AuthorEmail,
		Rating:         r.Rating,
		Text:           r.Text,
		PostedAt:       r.PostedAt,
		CreatedAt:      r.CreatedAt,
		DraftResponse:  r.DraftResponse,
		HasResponded:   r.HasResponded,
		RespondedAt:    r.RespondedAt,
		ResponseText:   r.ResponseText,
		PlatformURL:    r.PlatformURL,
		AuthorPhotoURL: r.AuthorPhotoURL,
		IsVerified:     r.IsVerified,
	}
	if r.Sentiment != nil {
		s := string(*r.Sentiment)
		d.Sentiment = &s
	}
	return d
}

type reviewsPageDTO struct {
	Items      []reviewDTO `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

func toReviewsPageDTO(p domain.ReviewsPage) reviewsPageDTO {
	out := reviewsPageDTO{
		Items:      make([]reviewDTO, 0, len(p.Items)),
		TotalCount: p.TotalCount,
		Page:       p.Page,
		PageSize:   p.PageSize,
	}
	if p.PageSize > 0 {
		out.TotalPages = (p.TotalCount + p.PageSize - 1) / p.PageSize
	}
	for _, r := range p.Items {
		out.Items = append(out.Items, toReviewDTO(r))
	}
	return out
}

type integrationDTO struct {
	ID                string     `json:"id"`
	Platform          string     `json:"platform"`
	DisplayName       string     `json:"display_name,omitempty"`
	Address           string     `json:"address,omitempty"`
	ConnectedAt       time.Time  `json:"connected_at"`
	LastSyncAt        *time.Time `json:"last_sync_at"`
	Expired           bool       `json:"expired"`
	ReconnectRequired bool       `json:"reconnect_required"`
}

func toIntegrationDTO(v domain.IntegrationView) integrationDTO {
	return integrationDTO{
		ID:                v.ID,
		Platform:          string(v.Platform),
		DisplayName:       v.DisplayName,
		Address:           v.Address,
		ConnectedAt:       v.ConnectedAt,
		LastSyncAt:        v.LastSyncAt,
		Expired:           v.Expired,
		ReconnectRequired: v.ReconnectRequired,
	}
}

type metricsDTO struct {
	Date             string  `json:"date"`
	TotalReviews     int     `json:"total_reviews"`
	PositiveReviews  int     `json:"positive_reviews"`
	NeutralReviews   int     `json:"neutral_reviews"`
	NegativeReviews  int     `json:"negative_reviews"`
	RespondedReviews int     `json:"responded_reviews"`
	NewReviews       int     `json:"new_reviews"`
	AverageRating    float64 `json:"average_rating"`
}

func toMetricsDTO(m domain.ReviewMetrics) metricsDTO {
	return metricsDTO{
		Date:             m.Date.UTC().Format(dateLayout),
		TotalReviews:     m.TotalReviews,
		PositiveReviews:  m.PositiveReviews,
		NeutralReviews:   m.NeutralReviews,
		NegativeReviews:  m.NegativeReviews,
		RespondedReviews: m.RespondedReviews,
		NewReviews:       m.NewReviews,
		AverageRating:    m.AverageRating,
	}
}

type analyticsDTO struct {
	TotalReviews     int          `json:"total_reviews"`
	RespondedReviews int          `json:"responded_reviews"`
	ResponseRate     float64      `json:"response_rate"`
	AverageRating    float64      `json:"average_rating"`
	PositiveReviews  int          `json:"positive_reviews"`
	NeutralReviews   int          `json:"neutral_reviews"`
	NegativeReviews  int          `json:"negative_reviews"`
	Daily            []metricsDTO `json:"daily"`
}

func toAnalyticsDTO(a domain.Analytics) analyticsDTO {
	out := analyticsDTO{
		TotalReviews:     a.TotalReviews,
		RespondedReviews: a.RespondedReviews,
		ResponseRate:     a.ResponseRate,
		AverageRating:    a.AverageRating,
		PositiveReviews:  a.PositiveReviews,
		NeutralReviews:   a.NeutralReviews,
		NegativeReviews:  a.NegativeReviews,
		Daily:            make([]metricsDTO, 0, len(a.Daily)),
	}
	for _, m := range a.Daily {
		out.Daily = append(out.Daily, toMetricsDTO(m))
	}
	return out
}

type syncDTO struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

func toSyncDTO(r app.SyncResult) syncDTO {
	return syncDTO{Fetched: r.Fetched, Created: r.Created, Failed: r.Failed}
}

type draftRequest struct {
	CustomPrompt string   `json:"custom_prompt"`
	Keywords     []string `json:"keywords"`
}

type approveRequest struct {
	ResponseText string `json:"response_text"`
}
