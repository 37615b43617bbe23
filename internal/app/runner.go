package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"review_hub/internal/domain"
)

// Runner drives the batch jobs triggered by the ingestor and the scheduler.
type Runner struct {
	integrations domain.IntegrationRepository
	reviews      *ReviewService
	metrics      *MetricsService
	workers      int64
	log          zerolog.Logger
}

func NewRunner(in domain.IntegrationRepository, r *ReviewService, m *MetricsService, workers int, log zerolog.Logger) *Runner {
	if workers <= 0 {
		workers = defaultSyncWorkers
	}
	return &Runner{integrations: in, reviews: r, metrics: m, workers: int64(workers), log: log}
}

type RunSummary struct {
	Businesses int
	Failed     int
	Created    int
}

// SyncAll syncs every business that has an active integration.
func (r *Runner) SyncAll(ctx context.Context) (RunSummary, error) {
	var mu sync.Mutex
	var sum RunSummary
	ids, err := r.integrations.ListActiveBusinessIDs(ctx)
	if err != nil {
		return sum, err
	}
	err = r.each(ctx, ids, func(ctx context.Context, biz string) {
		res, err := r.reviews.SyncBusiness(ctx, biz)
		mu.Lock()
		defer mu.Unlock()
		sum.Businesses++
		if err != nil {
			sum.Failed++
			r.log.Error().Err(err).Str("business_id", biz).Msg("sync failed")
			return
		}
		sum.Created += res.Created
	})
	return sum, err
}

// RollupAll computes the daily snapshot of day for every business that has
// an active integration or any stored review. A disconnected business keeps
// getting snapshots of the reviews it already has.
func (r *Runner) RollupAll(ctx context.Context, day time.Time) (RunSummary, error) {
	var mu sync.Mutex
	var sum RunSummary
	active, err := r.integrations.ListActiveBusinessIDs(ctx)
	if err != nil {
		return sum, err
	}
	reviewed, err := r.metrics.BusinessIDs(ctx)
	if err != nil {
		return sum, err
	}
	err = r.each(ctx, union(active, reviewed), func(ctx context.Context, biz string) {
		_, err := r.metrics.ComputeDaily(ctx, biz, day)
		mu.Lock()
		defer mu.Unlock()
		sum.Businesses++
		if err != nil {
			sum.Failed++
			r.log.Error().Err(err).Str("business_id", biz).Msg("metrics rollup failed")
		}
	})
	return sum, err
}

func (r *Runner) each(ctx context.Context, ids []string, fn func(context.Context, string)) error {
	sem := semaphore.NewWeighted(r.workers)
	var wg sync.WaitGroup
	for _, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)
			fn(ctx, id)
		}(id)
	}
	wg.Wait()
	return ctx.Err()
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range append(append([]string(nil), a...), b...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
