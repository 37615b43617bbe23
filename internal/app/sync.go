package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"review_hub/internal/adapters/observability"
	"review_hub/internal/domain"
)

const (
	defaultSyncWorkers = 4
	syncLockTTL        = 5 * time.Minute
)

var errSyncInProgress = errors.New("sync already running for integration")

// SyncOrchestrator fetches reviews from every active integration of a
// business. One failing platform never hides the others' reviews.
type SyncOrchestrator struct {
	integrations domain.IntegrationRepository
	adapters     map[domain.Platform]domain.PlatformAdapter
	locker       domain.Locker
	workers      int64
	log          zerolog.Logger
	now          func() time.Time

	// serialises concurrent syncs of one integration inside this process
	flight singleflight.Group
}

func NewSyncOrchestrator(repo domain.IntegrationRepository, adapters []domain.PlatformAdapter, workers int, log zerolog.Logger) *SyncOrchestrator {
	if workers <= 0 {
		workers = defaultSyncWorkers
	}
	m := make(map[domain.Platform]domain.PlatformAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Platform()] = a
	}
	return &SyncOrchestrator{
		integrations: repo,
		adapters:     m,
		workers:      int64(workers),
		log:          log,
		now:          time.Now,
	}
}

// WithLocker adds a cross-process lock per integration (redis in production).
func (s *SyncOrchestrator) WithLocker(l domain.Locker) *SyncOrchestrator {
	s.locker = l
	return s
}

func (s *SyncOrchestrator) Adapter(p domain.Platform) (domain.PlatformAdapter, bool) {
	a, ok := s.adapters[p]
	return a, ok
}

// SyncAllPlatforms returns the union of every integration's reviews. Only a
// failure to list integrations is returned as an error; per-integration
// failures are logged and skipped. No ordering across platforms.
func (s *SyncOrchestrator) SyncAllPlatforms(ctx context.Context, businessID string) ([]domain.CanonicalReview, error) {
	ins, err := s.integrations.ListActive(ctx, businessID)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		all []domain.CanonicalReview
		sem = semaphore.NewWeighted(s.workers)
	)
	for _, in := range ins {
		if err := sem.Acquire(ctx, 1); err != nil {
			s.log.Warn().Err(err).Str("business_id", businessID).Msg("sync fan-out interrupted")
			break
		}
		wg.Add(1)
		go func(in domain.Integration) {
			defer wg.Done()
			defer sem.Release(1)

			v, err, _ := s.flight.Do(in.ID, func() (any, error) {
				return s.syncIntegration(ctx, in)
			})
			if err != nil {
				return
			}
			rs := v.([]domain.CanonicalReview)
			mu.Lock()
			all = append(all, rs...)
			mu.Unlock()
		}(in)
	}
	wg.Wait()
	return all, nil
}

func (s *SyncOrchestrator) syncIntegration(ctx context.Context, in domain.Integration) ([]domain.CanonicalReview, error) {
	log := s.log.With().
		Str("platform", string(in.Platform)).
		Str("integration_id", in.ID).
		Str("business_id", in.BusinessID).
		Logger()

	a, ok := s.adapters[in.Platform]
	if !ok {
		log.Warn().Msg("no adapter configured for platform, skipping")
		observability.ObserveSync(string(in.Platform), "skipped")
		return nil, domain.ErrUnknownPlatform
	}

	if s.locker != nil {
		unlock, got, err := s.locker.TryLock(ctx, "sync:"+in.ID, syncLockTTL)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("sync lock unavailable, continuing unlocked")
		case !got:
			log.Info().Msg("integration is being synced by another worker, skipping")
			observability.ObserveSync(string(in.Platform), "skipped")
			return nil, errSyncInProgress
		default:
			defer unlock()
		}
	}

	before := in
	reviews, err := a.FetchReviews(ctx, &in)
	s.persistTokens(ctx, log, before, in)

	if err != nil {
		var tre *domain.TokenRefreshError
		if errors.As(err, &tre) {
			log.Warn().Err(err).Str("body", tre.Body).Msg("refresh grant rejected, integration needs reconnecting")
			if merr := s.integrations.MarkReconnectRequired(ctx, in.ID); merr != nil {
				log.Error().Err(merr).Msg("mark reconnect failed")
			}
			observability.ObserveSync(string(in.Platform), "reconnect")
			return nil, err
		}
		log.Warn().Err(err).Msg("platform sync failed")
		observability.ObserveSync(string(in.Platform), "error")
		return nil, err
	}

	if err := s.integrations.TouchLastSync(ctx, in.ID, s.now().UTC()); err != nil {
		log.Warn().Err(err).Msg("touch last sync failed")
	}
	observability.ObserveSync(string(in.Platform), "ok")
	log.Debug().Int("reviews", len(reviews)).Msg("platform synced")
	return reviews, nil
}

// persistTokens writes back a grant refreshed during the call.
func (s *SyncOrchestrator) persistTokens(ctx context.Context, log zerolog.Logger, before, after domain.Integration) {
	if before.AccessToken == after.AccessToken && before.RefreshToken == after.RefreshToken && before.ExpiresAt.Equal(after.ExpiresAt) {
		return
	}
	if err := s.integrations.UpdateTokens(ctx, after); err != nil {
		log.Error().Err(err).Msg("persist refreshed tokens failed")
	}
}

// PostApprovedReply posts text through the business's active integration for
// platform. False when no such integration exists or the post fails.
func (s *SyncOrchestrator) PostApprovedReply(ctx context.Context, businessID string, p domain.Platform, externalReviewID, text string) bool {
	log := s.log.With().Str("platform", string(p)).Str("business_id", businessID).Str("review_id", externalReviewID).Logger()

	in, err := s.integrations.GetActive(ctx, businessID, p)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Msg("integration lookup failed")
		}
		return false
	}
	a, ok := s.adapters[p]
	if !ok {
		return false
	}

	before := in
	posted := a.PostReply(ctx, &in, externalReviewID, text)
	s.persistTokens(ctx, log, before, in)
	return posted
}
