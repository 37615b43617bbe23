package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"review_hub/internal/adapters/observability"
	"review_hub/internal/bootstrap"
	"review_hub/internal/domain"
	"review_hub/internal/shared"
)

// Long-running trigger for the batch jobs. Schedules use six fields
// (seconds first).
func main() {
	_ = godotenv.Load()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.Serve()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.Build(ctx, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer a.Close()

	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	if _, err := c.AddFunc(cfg.SyncSchedule, func() {
		sum, err := a.Runner.SyncAll(ctx)
		if err != nil {
			log.Error().Err(err).Msg("scheduled sync failed")
			return
		}
		log.Info().Int("businesses", sum.Businesses).Int("failed", sum.Failed).Int("created", sum.Created).Msg("scheduled sync done")
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SyncSchedule).Msg("invalid SYNC_SCHEDULE")
	}

	if _, err := c.AddFunc(cfg.MetricsSchedule, func() {
		day := domain.DayStart(time.Now()).AddDate(0, 0, -1)
		sum, err := a.Runner.RollupAll(ctx, day)
		if err != nil {
			log.Error().Err(err).Msg("scheduled rollup failed")
			return
		}
		log.Info().Time("day", day).Int("businesses", sum.Businesses).Int("failed", sum.Failed).Msg("scheduled rollup done")
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.MetricsSchedule).Msg("invalid METRICS_SCHEDULE")
	}

	c.Start()
	log.Info().Str("sync", cfg.SyncSchedule).Str("metrics", cfg.MetricsSchedule).Msg("scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info().Msg("scheduler stopped")
}
