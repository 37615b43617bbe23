package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"review_hub/internal/domain"
)

func scanReview(s rowScanner) (domain.Review, error) {
	var rv domain.Review
	var platform string
	var (
		sentiment, draft, responseText, platformURL, photoURL sql.NullString
		respondedAt                                           sql.NullTime
	)
	err := s.Scan(
		&rv.ID, &rv.BusinessID, &platform, &rv.ExternalID, &rv.AuthorName, &rv.AuthorEmail, &rv.Rating, &rv.Text,
		&rv.PostedAt, &rv.CreatedAt, &sentiment, &draft, &rv.HasResponded, &respondedAt,
		&responseText, &platformURL, &photoURL, &rv.IsVerified,
	)
	if err != nil {
		return domain.Review{}, err
	}
	rv.Platform = domain.Platform(platform)
	rv.PostedAt = rv.PostedAt.UTC()
	rv.CreatedAt = rv.CreatedAt.UTC()
	if sentiment.Valid {
		if s, ok := domain.ParseSentiment(sentiment.String); ok {
			rv.Sentiment = &s
		}
	}
	rv.DraftResponse = strPtr(draft)
	rv.RespondedAt = timePtr(respondedAt)
	rv.ResponseText = strPtr(responseText)
	rv.PlatformURL = strPtr(platformURL)
	rv.AuthorPhotoURL = strPtr(photoURL)
	return rv, nil
}

func sentimentArg(s *domain.Sentiment) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func (r *Repo) GetByID(ctx context.Context, id string) (domain.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, getReviewByIDSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrNotFound
	}
	return rv, err
}

func (r *Repo) GetByExternalID(ctx context.Context, p domain.Platform, externalID string) (domain.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, getReviewByExternalSQL, string(p), externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrNotFound
	}
	return rv, err
}

// Create relies on uq_reviews_dedup for the dedup guarantee.
func (r *Repo) Create(ctx context.Context, rv domain.Review) error {
	_, err := r.db.ExecContext(ctx, insertReviewSQL,
		rv.ID, rv.BusinessID, string(rv.Platform), rv.ExternalID, rv.AuthorName, rv.AuthorEmail, rv.Rating, rv.Text,
		rv.PostedAt.UTC(), rv.CreatedAt.UTC(), sentimentArg(rv.Sentiment), valStr(rv.DraftResponse),
		rv.HasResponded, valTime(rv.RespondedAt), valStr(rv.ResponseText),
		valStr(rv.PlatformURL), valStr(rv.AuthorPhotoURL), rv.IsVerified,
	)
	if isDuplicate(err) {
		return domain.ErrDuplicate
	}
	return err
}

func (r *Repo) UpdateAnnotation(ctx context.Context, id string, s *domain.Sentiment, draft *string) error {
	if s == nil && draft == nil {
		return nil
	}
	return r.execOne(ctx, updateAnnotationSQL, sentimentArg(s), valStr(draft), id)
}

func (r *Repo) MarkResponded(ctx context.Context, id, text string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, markRespondedSQL, text, at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// nothing updated: either unknown or already responded
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrAlreadyResponded
}

func (r *Repo) ListPosted(ctx context.Context, businessID string, from, to time.Time) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, listPostedSQL, businessID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReviews(rows)
}

func (r *Repo) CountPosted(ctx context.Context, businessID string, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countPostedSQL, businessID, from.UTC(), to.UTC()).Scan(&n)
	return n, err
}

func (r *Repo) ListBusinessIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, listReviewedBusinessesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func collectReviews(rows *sql.Rows) ([]domain.Review, error) {
	var out []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// List applies f and returns one page, newest first.
func (r *Repo) List(ctx context.Context, f domain.ReviewFilter) (domain.ReviewsPage, error) {
	page, size := domain.NormalizePage(f.Page, f.PageSize)
	where, args := reviewWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews WHERE "+where, args...).Scan(&total); err != nil {
		return domain.ReviewsPage{}, err
	}

	q := "SELECT" + reviewColumns + "\nFROM reviews WHERE " + where + "\nORDER BY posted_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, append(args, size, (page-1)*size)...)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	items, err := collectReviews(rows)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	return domain.ReviewsPage{Items: items, TotalCount: total, Page: page, PageSize: size}, nil
}

func reviewWhere(f domain.ReviewFilter) (string, []any) {
	conds := []string{"business_id = ?"}
	args := []any{f.BusinessID}
	if f.Platform != nil {
		conds = append(conds, "platform = ?")
		args = append(args, string(*f.Platform))
	}
	if f.Sentiment != nil {
		conds = append(conds, "sentiment = ?")
		args = append(args, string(*f.Sentiment))
	}
	if f.HasResponded != nil {
		conds = append(conds, "has_responded = ?")
		args = append(args, *f.HasResponded)
	}
	if f.MinRating != nil {
		conds = append(conds, "rating >= ?")
		args = append(args, *f.MinRating)
	}
	if f.MaxRating != nil {
		conds = append(conds, "rating <= ?")
		args = append(args, *f.MaxRating)
	}
	if f.From != nil {
		conds = append(conds, "posted_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conds = append(conds, "posted_at < ?")
		args = append(args, f.To.UTC())
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		like := "%" + likeEscaper.Replace(q) + "%"
		conds = append(conds, "(`text` LIKE ? OR author_name LIKE ?)")
		args = append(args, like, like)
	}
	return strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
