package google

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"review_hub/internal/domain"
)

type reviewsPage struct {
	Reviews       []wireReview `json:"reviews"`
	NextPageToken string       `json:"nextPageToken"`
}

type wireReview struct {
	Name     string `json:"name"`
	ReviewID string `json:"reviewId"`
	Reviewer struct {
		DisplayName     string `json:"displayName"`
		ProfilePhotoURL string `json:"profilePhotoUrl"`
		IsAnonymous     bool   `json:"isAnonymous"`
	} `json:"reviewer"`
	StarRating  starRating `json:"starRating"`
	Comment     string     `json:"comment"`
	CreateTime  string     `json:"createTime"`
	UpdateTime  string     `json:"updateTime"`
	ReviewReply *struct {
		Comment    string `json:"comment"`
		UpdateTime string `json:"updateTime"`
	} `json:"reviewReply"`
}

// starRating accepts the enum form ("FIVE") as well as plain numbers.
// Anything unrecognised decodes to 1.
type starRating int

var starWords = map[string]int{"ONE": 1, "TWO": 2, "THREE": 3, "FOUR": 4, "FIVE": 5}

func (s *starRating) UnmarshalJSON(b []byte) error {
	*s = 1
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*s = starRating(domain.ClampRating(int(n)))
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return nil
	}
	str = strings.ToUpper(strings.TrimSpace(str))
	if v, ok := starWords[str]; ok {
		*s = starRating(v)
	} else if v, err := strconv.Atoi(str); err == nil {
		*s = starRating(domain.ClampRating(v))
	}
	return nil
}

type accountsPage struct {
	Accounts []struct {
		Name        string `json:"name"`
		AccountName string `json:"accountName"`
	} `json:"accounts"`
}

type locationsPage struct {
	Locations []wireLocation `json:"locations"`
}

type wireLocation struct {
	Name              string `json:"name"`
	Title             string `json:"title"`
	StorefrontAddress *struct {
		AddressLines       []string `json:"addressLines"`
		Locality           string   `json:"locality"`
		AdministrativeArea string   `json:"administrativeArea"`
		PostalCode         string   `json:"postalCode"`
	} `json:"storefrontAddress"`
}

func (l wireLocation) address() string {
	a := l.StorefrontAddress
	if a == nil {
		return ""
	}
	parts := append([]string{}, a.AddressLines...)
	for _, p := range []string{a.Locality, a.AdministrativeArea, a.PostalCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// lastSegment turns "accounts/123/locations/456" into "456".
func lastSegment(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func parseTime(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return fallback.UTC()
}

const reviewURLBase = "https://www.google.com/maps/reviews/"

func toCanonical(businessID string, w wireReview, now time.Time) domain.CanonicalReview {
	id := w.ReviewID
	if id == "" {
		id = lastSegment(w.Name)
	}
	cr := domain.CanonicalReview{
		BusinessID: businessID,
		Platform:   domain.PlatformGoogle,
		ExternalID: id,
		AuthorName: w.Reviewer.DisplayName,
		Rating:     int(w.StarRating),
		Text:       w.Comment,
		PostedAt:   parseTime(w.CreateTime, now),
		IsVerified: true, // reviews always come from signed-in accounts
	}
	if id != "" {
		u := reviewURLBase + url.PathEscape(id)
		cr.PlatformURL = &u
	}
	if cr.AuthorName == "" {
		cr.AuthorName = "Google user"
	}
	if cr.Rating == 0 {
		cr.Rating = 1
	}
	if w.Reviewer.ProfilePhotoURL != "" {
		u := w.Reviewer.ProfilePhotoURL
		cr.AuthorPhotoURL = &u
	}
	if w.ReviewReply != nil && w.ReviewReply.Comment != "" {
		text := w.ReviewReply.Comment
		at := parseTime(w.ReviewReply.UpdateTime, now)
		cr.HasResponded = true
		cr.ResponseText = &text
		cr.RespondedAt = &at
	}
	return cr
}
