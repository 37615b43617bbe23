// Package bootstrap builds the dependency graph shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"review_hub/internal/adapters/google"
	httpserver "review_hub/internal/adapters/http_server"
	"review_hub/internal/adapters/oauth"
	"review_hub/internal/adapters/observability"
	"review_hub/internal/adapters/openai"
	redisad "review_hub/internal/adapters/redis"
	"review_hub/internal/adapters/yelp"
	"review_hub/internal/app"
	"review_hub/internal/domain"
	"review_hub/internal/shared"
	"review_hub/internal/storage/memory"
	mysqlrepo "review_hub/internal/storage/mysql"
)

// Store is everything the services persist through. Both the MySQL and the
// in-memory implementations satisfy it.
type Store interface {
	domain.IntegrationRepository
	domain.ReviewRepository
	domain.MetricsRepository
	domain.BusinessDataPurger
}

type App struct {
	Store        Store
	Cache        domain.Cache
	Sync         *app.SyncOrchestrator
	Reviews      *app.ReviewService
	Integrations *app.IntegrationService
	Metrics      *app.MetricsService
	Queries      *app.QueryService
	Purge        *app.PurgeService
	Runner       *app.Runner

	frontendURL string
	closers     []func() error
}

// Handlers exposes the services to the HTTP layer.
func (a *App) Handlers() *httpserver.Handlers {
	return &httpserver.Handlers{
		Q:            a.Queries,
		Reviews:      a.Reviews,
		Integrations: a.Integrations,
		Metrics:      a.Metrics,
		Purge:        a.Purge,
		FrontendURL:  a.frontendURL,
	}
}

func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build wires storage, cache, platform adapters and services from cfg.
func Build(ctx context.Context, cfg shared.Config, log zerolog.Logger) (*App, error) {
	a := &App{frontendURL: cfg.FrontendURL}

	store, err := openStore(ctx, cfg, log, a)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Store = store

	var locker domain.Locker
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rc.Ping(pctx)
		cancel()
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, rc.Client().Close)
		a.Cache = rc
		locker = redisad.NewLocker(rc.Client())
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache ok")
	} else {
		log.Warn().Msg("REDIS_ADDR is empty, using in-process cache")
		a.Cache = memory.NewCache()
	}

	connectors, adapters := platforms(cfg, log)

	a.Sync = app.NewSyncOrchestrator(store, adapters, cfg.SyncWorkers, observability.Component(log, "sync"))
	if locker != nil {
		a.Sync.WithLocker(locker)
	}

	var gen domain.TextGenerator
	if cfg.OpenAIKey != "" {
		c, err := openai.New(cfg.OpenAIBase, cfg.OpenAIKey, cfg.OpenAIModel, cfg.PlatformRPS, cfg.CallTimeout)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("openai client: %w", err)
		}
		gen = c
	}
	annotator := app.NewAnnotator(gen, observability.Component(log, "annotator"))

	a.Reviews = app.NewReviewService(store, annotator, a.Sync, a.Cache, observability.Component(log, "reviews"))
	a.Integrations = app.NewIntegrationService(store, connectors, a.Cache, observability.Component(log, "integrations"))
	a.Metrics = app.NewMetricsService(store, store, observability.Component(log, "metrics"))
	a.Queries = app.NewQueryService(store, a.Cache, cfg.CacheTTL)
	a.Purge = app.NewPurgeService(store, a.Cache, observability.Component(log, "purge"))
	a.Runner = app.NewRunner(store, a.Reviews, a.Metrics, cfg.SyncWorkers, observability.Component(log, "runner"))
	return a, nil
}

func openStore(ctx context.Context, cfg shared.Config, log zerolog.Logger, a *App) (Store, error) {
	if cfg.MySQLDSN == "" {
		log.Warn().Msg("MYSQL_DSN is empty, using in-memory storage (data is lost on exit)")
		return memory.New(), nil
	}
	db, err := mysqlrepo.Open(ctx, cfg.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	if err := mysqlrepo.Migrate(db); err != nil {
		return nil, err
	}
	log.Info().Msg("database connection ok, migrations applied")
	return mysqlrepo.New(db), nil
}

// platforms builds one token manager and adapter per configured platform.
func platforms(cfg shared.Config, log zerolog.Logger) (map[domain.Platform]app.PlatformConnector, []domain.PlatformAdapter) {
	connectors := map[domain.Platform]app.PlatformConnector{}
	var adapters []domain.PlatformAdapter

	if cfg.Google.Enabled() {
		oc := oauth.Google(cfg.Google.ClientID, cfg.Google.ClientSecret)
		oc.Timeout = cfg.CallTimeout
		overrideTokenURL(&oc.Endpoint, cfg.GoogleTokenURL)
		tokens := oauth.New(oc)

		client := google.NewClient(google.Endpoints{
			Reviews:      cfg.GoogleReviewsBase,
			Accounts:     cfg.GoogleAccountsBase,
			BusinessInfo: cfg.GoogleBusinessBase,
		}, cfg.PlatformRPS, cfg.CallTimeout)
		ad := google.New(client, tokens, observability.Component(log, "google"))

		connectors[domain.PlatformGoogle] = app.PlatformConnector{Tokens: tokens, Adapter: ad, RedirectURL: cfg.Google.RedirectURL}
		adapters = append(adapters, ad)
	}

	if cfg.Yelp.Enabled() {
		oc := oauth.Yelp(cfg.Yelp.ClientID, cfg.Yelp.ClientSecret)
		oc.Timeout = cfg.CallTimeout
		overrideTokenURL(&oc.Endpoint, cfg.YelpTokenURL)
		tokens := oauth.New(oc)

		ad := yelp.New(yelp.Config{
			APIBase:     cfg.YelpAPIBase,
			PartnerBase: cfg.YelpPartnerBase,
			RPS:         cfg.PlatformRPS,
			Timeout:     cfg.CallTimeout,
		}, tokens, observability.Component(log, "yelp"))

		connectors[domain.PlatformYelp] = app.PlatformConnector{Tokens: tokens, Adapter: ad, RedirectURL: cfg.Yelp.RedirectURL}
		adapters = append(adapters, ad)
	}
	return connectors, adapters
}

func overrideTokenURL(ep *oauth2.Endpoint, u string) {
	if u != "" {
		ep.TokenURL = u
	}
}
