package app

import (
	"context"

	"github.com/rs/zerolog"

	"review_hub/internal/domain"
)

// PurgeService deletes everything a business owns, as if the business row
// had been cascade-deleted.
type PurgeService struct {
	purger domain.BusinessDataPurger
	cache  domain.Cache
	log    zerolog.Logger
}

func NewPurgeService(p domain.BusinessDataPurger, c domain.Cache, log zerolog.Logger) *PurgeService {
	return &PurgeService{purger: p, cache: c, log: log}
}

func (s *PurgeService) DeleteBusinessData(ctx context.Context, businessID string) error {
	if err := s.purger.DeleteBusinessData(ctx, businessID); err != nil {
		return err
	}
	invalidateReviews(ctx, s.cache, businessID)
	s.log.Info().Str("business_id", businessID).Msg("business data deleted")
	return nil
}
