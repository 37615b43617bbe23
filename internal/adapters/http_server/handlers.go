package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"review_hub/internal/app"
	"review_hub/internal/domain"
)

const (
	dateLayout   = "2006-01-02"
	maxBodyBytes = 64 << 10
)

type Handlers struct {
	Q            *app.QueryService
	Reviews      *app.ReviewService
	Integrations *app.IntegrationService
	Metrics      *app.MetricsService
	Purge        *app.PurgeService
	FrontendURL  string
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/v1/oauth/{platform}/start", h.startAuthorization)
	s.mux.Get("/v1/oauth/{platform}/callback", h.completeAuthorization)

	s.mux.Route("/v1/businesses/{id}", func(r chi.Router) {
		r.Get("/integrations", h.listIntegrations)
		r.Get("/integrations/valid", h.validateCredentials)
		r.Delete("/integrations/{platform}", h.disconnect)
		r.Post("/sync", h.syncBusiness)
		r.Get("/reviews", h.listReviews)
		r.Post("/metrics/{date}", h.computeDaily)
		r.Get("/analytics", h.analytics)
		r.Delete("/data", h.deleteBusinessData)
	})

	s.mux.Get("/v1/reviews/{id}", h.getReview)
	s.mux.Post("/v1/reviews/{id}/draft", h.requestDraft)
	s.mux.Post("/v1/reviews/{id}/approve", h.approve)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	var genErr *domain.GenerationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrNoResponseAvailable):
		writeProblem(w, http.StatusUnprocessableEntity, "No Response Available", err.Error())
	case errors.Is(err, domain.ErrAlreadyResponded):
		writeProblem(w, http.StatusConflict, "Already Responded", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, app.ErrDraftingDisabled):
		writeProblem(w, http.StatusServiceUnavailable, "Drafting Disabled", err.Error())
	case errors.As(err, &genErr):
		writeProblem(w, http.StatusBadGateway, "Generation Failed", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeProblem(w, http.StatusBadRequest, "Invalid State", err.Error())
	case errors.Is(err, domain.ErrUnknownPlatform):
		writeProblem(w, http.StatusBadRequest, "Unknown Platform", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached writes v with an ETag and honours If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func writeValue(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, body)
}

// decodeBody treats an empty body as the zero request.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func platformParam(w http.ResponseWriter, r *http.Request) (domain.Platform, bool) {
	p, err := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Unknown Platform", "platform must be google or yelp")
		return "", false
	}
	return p, true
}

func (h *Handlers) startAuthorization(w http.ResponseWriter, r *http.Request) {
	p, ok := platformParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	biz := strings.TrimSpace(q.Get("business_id"))
	if biz == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid business_id", "business_id is required")
		return
	}
	u, err := h.Integrations.AuthorizationURL(r.Context(), p, biz, q.Get("location"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, http.StatusOK, map[string]string{"authorization_url": u})
}

// completeAuthorization is the platform redirect target. It always ends in a
// redirect back to the frontend carrying the outcome.
func (h *Handlers) completeAuthorization(w http.ResponseWriter, r *http.Request) {
	p, ok := platformParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	dest := strings.TrimRight(h.FrontendURL, "/") + "/integrations"
	v := url.Values{"platform": {string(p)}}

	if e := q.Get("error"); e != "" {
		v.Set("status", "error")
		v.Set("reason", e)
		http.Redirect(w, r, dest+"?"+v.Encode(), http.StatusFound)
		return
	}
	in, err := h.Integrations.CompleteAuthorization(r.Context(), p, q.Get("state"), q.Get("code"))
	if err != nil {
		log.Warn().Err(err).Str("platform", string(p)).Msg("oauth callback failed")
		v.Set("status", "error")
		switch {
		case errors.Is(err, domain.ErrInvalidState):
			v.Set("reason", "invalid_state")
		case errors.Is(err, domain.ErrUnauthorized):
			v.Set("reason", "exchange_failed")
		default:
			v.Set("reason", "internal")
		}
		http.Redirect(w, r, dest+"?"+v.Encode(), http.StatusFound)
		return
	}
	v.Set("status", "connected")
	v.Set("integration_id", in.ID)
	http.Redirect(w, r, dest+"?"+v.Encode(), http.StatusFound)
}

func (h *Handlers) listIntegrations(w http.ResponseWriter, r *http.Request) {
	views, err := h.Integrations.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]integrationDTO, 0, len(views))
	for _, v := range views {
		out = append(out, toIntegrationDTO(v))
	}
	writeCached(w, r, out)
}

func (h *Handlers) validateCredentials(w http.ResponseWriter, r *http.Request) {
	ok, err := h.Integrations.ValidateCredentials(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, http.StatusOK, map[string]bool{"valid": ok})
}

func (h *Handlers) disconnect(w http.ResponseWriter, r *http.Request) {
	p, ok := platformParam(w, r)
	if !ok {
		return
	}
	if err := h.Integrations.Disconnect(r.Context(), chi.URLParam(r, "id"), p); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) syncBusiness(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reviews.SyncBusiness(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, http.StatusOK, toSyncDTO(res))
}

func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	rv, err := h.Q.GetReview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, toReviewDTO(rv))
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	f, detail := parseReviewFilter(r.URL.Query())
	if detail != "" {
		writeProblem(w, http.StatusBadRequest, "Invalid filter", detail)
		return
	}
	f.BusinessID = chi.URLParam(r, "id")

	out, err := h.Q.ListReviews(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, toReviewsPageDTO(out))
}

// parseReviewFilter returns a non-empty detail when a parameter is malformed.
func parseReviewFilter(q url.Values) (domain.ReviewFilter, string) {
	var f domain.ReviewFilter
	if v := q.Get("platform"); v != "" {
		p, err := domain.ParsePlatform(v)
		if err != nil {
			return f, "platform must be google or yelp"
		}
		f.Platform = &p
	}
	if v := q.Get("sentiment"); v != "" {
		s, ok := domain.ParseSentiment(v)
		if !ok {
			return f, "sentiment must be positive, neutral or negative"
		}
		f.Sentiment = &s
	}
	if v := q.Get("responded"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, "responded must be true or false"
		}
		f.HasResponded = &b
	}
	for _, p := range []struct {
		key string
		dst **int
	}{{"min_rating", &f.MinRating}, {"max_rating", &f.MaxRating}} {
		if v := q.Get(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 5 {
				return f, p.key + " must be an integer between 1 and 5"
			}
			*p.dst = &n
		}
	}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		if v := q.Get(p.key); v != "" {
			t, err := parseTime(v)
			if err != nil {
				return f, p.key + " must be a date (YYYY-MM-DD) or RFC 3339 timestamp"
			}
			*p.dst = &t
		}
	}
	f.Search = strings.TrimSpace(q.Get("q"))
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, "page must be a positive integer"
		}
		f.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > domain.MaxPageSize {
			return f, "page_size must be an integer between 1 and " + strconv.Itoa(domain.MaxPageSize)
		}
		f.PageSize = n
	}
	return f, ""
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	return t.UTC(), err
}

func (h *Handlers) requestDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	rv, err := h.Reviews.RequestDraft(r.Context(), chi.URLParam(r, "id"), domain.DraftOptions{
		CustomPrompt: strings.TrimSpace(req.CustomPrompt),
		Keywords:     req.Keywords,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, http.StatusOK, toReviewDTO(rv))
}

func (h *Handlers) approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	rv, err := h.Reviews.Approve(r.Context(), chi.URLParam(r, "id"), req.ResponseText)
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, http.StatusOK, toReviewDTO(rv))
}

func (h *Handlers) computeDaily(w http.ResponseWriter, r *http.Request) {
	d, err := time.Parse(dateLayout, chi.URLParam(r, "date"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid date", "date must be YYYY-MM-DD")
		return
	}
	m, err := h.Metrics.ComputeDaily(r.Context(), chi.URLParam(r, "id"), d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, http.StatusOK, toMetricsDTO(m))
}

// analytics defaults to the last 30 days when no range is given.
func (h *Handlers) analytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to := domain.DayStart(time.Now()).Add(24 * time.Hour)
	from := to.AddDate(0, 0, -30)
	if v := q.Get("from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid from", "from must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid to", "to must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
			return
		}
		to = t
	}
	if !from.Before(to) {
		writeProblem(w, http.StatusBadRequest, "Invalid range", "from must be before to")
		return
	}
	a, err := h.Metrics.Analytics(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, toAnalyticsDTO(a))
}

func (h *Handlers) deleteBusinessData(w http.ResponseWriter, r *http.Request) {
	if err := h.Purge.DeleteBusinessData(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
