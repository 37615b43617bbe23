package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"review_hub/internal/domain"
)

const stateTTL = 10 * time.Minute

// PlatformConnector is what the connect flow needs for one platform.
type PlatformConnector struct {
	Tokens      domain.TokenManager
	Adapter     domain.PlatformAdapter
	RedirectURL string
}

type oauthState struct {
	BusinessID   string          `json:"business_id"`
	Platform     domain.Platform `json:"platform"`
	LocationHint string          `json:"location_hint,omitempty"`
}

// IntegrationService runs the connect, disconnect and listing flows.
type IntegrationService struct {
	repo      domain.IntegrationRepository
	platforms map[domain.Platform]PlatformConnector
	cache     domain.Cache
	log       zerolog.Logger
	now       func() time.Time
	newID     func() string
}

func NewIntegrationService(repo domain.IntegrationRepository, platforms map[domain.Platform]PlatformConnector, c domain.Cache, log zerolog.Logger) *IntegrationService {
	return &IntegrationService{
		repo:      repo,
		platforms: platforms,
		cache:     c,
		log:       log,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

func stateKey(state string) string { return "oauth_state:" + state }

// AuthorizationURL starts the consent flow. The returned URL carries a one-time
// state valid for ten minutes.
func (s *IntegrationService) AuthorizationURL(ctx context.Context, p domain.Platform, businessID, locationHint string) (string, error) {
	pc, ok := s.platforms[p]
	if !ok {
		return "", domain.ErrUnknownPlatform
	}
	state := s.newID()
	st := oauthState{BusinessID: businessID, Platform: p, LocationHint: locationHint}
	if err := s.cache.Set(ctx, stateKey(state), st, int(stateTTL.Seconds())); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return pc.Tokens.AuthCodeURL(state, pc.RedirectURL), nil
}

// CompleteAuthorization exchanges the callback code and stores the single
// active integration for (business, platform).
func (s *IntegrationService) CompleteAuthorization(ctx context.Context, p domain.Platform, state, code string) (domain.IntegrationView, error) {
	pc, ok := s.platforms[p]
	if !ok {
		return domain.IntegrationView{}, domain.ErrUnknownPlatform
	}

	var st oauthState
	found, err := s.cache.Get(ctx, stateKey(state), &st)
	if err != nil {
		return domain.IntegrationView{}, fmt.Errorf("load oauth state: %w", err)
	}
	if !found || st.Platform != p || state == "" {
		return domain.IntegrationView{}, domain.ErrInvalidState
	}
	_ = s.cache.Del(ctx, stateKey(state))

	grant, err := pc.Tokens.ExchangeAuthorizationCode(ctx, code, pc.RedirectURL)
	if err != nil {
		s.log.Warn().Err(err).Str("platform", string(p)).Str("business_id", st.BusinessID).Msg("code exchange failed")
		return domain.IntegrationView{}, err
	}

	var profile domain.PlatformProfile
	if pf, ok := pc.Adapter.(domain.ProfileFetcher); ok {
		profile, err = pf.FetchProfile(ctx, grant.AccessToken, st.LocationHint)
		if err != nil {
			return domain.IntegrationView{}, fmt.Errorf("fetch %s profile: %w", p, err)
		}
	}

	now := s.now().UTC()
	in, err := s.repo.SaveActive(ctx, domain.Integration{
		ID:                 s.newID(),
		BusinessID:         st.BusinessID,
		Platform:           p,
		ExternalAccountID:  profile.AccountID,
		ExternalLocationID: profile.LocationID,
		AccessToken:        grant.AccessToken,
		RefreshToken:       grant.RefreshToken,
		ExpiresAt:          grant.ExpiresAt,
		Scopes:             grant.Scopes,
		Active:             true,
		ConnectedAt:        now,
		DisplayName:        profile.Name,
		Address:            profile.Address,
	})
	if err != nil {
		return domain.IntegrationView{}, err
	}
	s.log.Info().Str("platform", string(p)).Str("business_id", st.BusinessID).Str("integration_id", in.ID).Msg("integration connected")
	return toView(in, now), nil
}

// Disconnect clears the active flag; the row is kept.
func (s *IntegrationService) Disconnect(ctx context.Context, businessID string, p domain.Platform) error {
	in, err := s.repo.GetActive(ctx, businessID, p)
	if err != nil {
		return err
	}
	return s.repo.Deactivate(ctx, in.ID)
}

func (s *IntegrationService) List(ctx context.Context, businessID string) ([]domain.IntegrationView, error) {
	ins, err := s.repo.ListActive(ctx, businessID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.IntegrationView, 0, len(ins))
	for _, in := range ins {
		out = append(out, toView(in, now))
	}
	return out, nil
}

// ValidateCredentials is true when any active integration holds a usable token.
func (s *IntegrationService) ValidateCredentials(ctx context.Context, businessID string) (bool, error) {
	ins, err := s.repo.ListActive(ctx, businessID)
	if err != nil {
		return false, err
	}
	for _, in := range ins {
		if pc, ok := s.platforms[in.Platform]; ok && pc.Adapter.ValidateCredentials(in) {
			return true, nil
		}
	}
	return false, nil
}

func toView(in domain.Integration, now time.Time) domain.IntegrationView {
	return domain.IntegrationView{
		ID:                in.ID,
		Platform:          in.Platform,
		DisplayName:       in.DisplayName,
		Address:           in.Address,
		ConnectedAt:       in.ConnectedAt,
		LastSyncAt:        in.LastSyncAt,
		Expired:           !now.Before(in.ExpiresAt),
		ReconnectRequired: in.ReconnectRequired,
	}
}
