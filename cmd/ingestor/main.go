package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"review_hub/internal/adapters/observability"
	"review_hub/internal/bootstrap"
	"review_hub/internal/domain"
	"review_hub/internal/shared"
)

// One-shot run: sync every business with an active integration, then roll up
// yesterday's metrics (UTC).
func main() {
	ctx := context.Background()
	_ = godotenv.Load()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Int("workers", cfg.SyncWorkers).
		Int("rps", cfg.PlatformRPS).
		Msg("ingestor starting")

	a, err := bootstrap.Build(ctx, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer a.Close()

	sum, err := a.Runner.SyncAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("sync failed")
	}
	log.Info().Int("businesses", sum.Businesses).Int("failed", sum.Failed).Int("created", sum.Created).Msg("sync completed")

	day := domain.DayStart(time.Now()).AddDate(0, 0, -1)
	sum, err = a.Runner.RollupAll(ctx, day)
	if err != nil {
		log.Fatal().Err(err).Msg("metrics rollup failed")
	}
	log.Info().Time("day", day).Int("businesses", sum.Businesses).Int("failed", sum.Failed).Msg("metrics rollup completed")
}
