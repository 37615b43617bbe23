package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type PlatformCreds struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (p PlatformCreds) Enabled() bool { return p.ClientID != "" && p.ClientSecret != "" }

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string // empty selects in-memory storage
	RedisAddr   string // empty selects an in-process cache
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration
	FrontendURL string

	Google             PlatformCreds
	GoogleTokenURL     string // empty keeps the library endpoint
	GoogleReviewsBase  string
	GoogleAccountsBase string
	GoogleBusinessBase string
	Yelp               PlatformCreds
	YelpTokenURL       string
	YelpAPIBase        string
	YelpPartnerBase    string

	OpenAIKey   string // empty disables AI drafting
	OpenAIBase  string
	OpenAIModel string

	SyncWorkers     int
	PlatformRPS     int
	CallTimeout     time.Duration
	SyncSchedule    string
	MetricsSchedule string
}

// Load reads the environment once at process start.
func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    os.Getenv("MYSQL_DSN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		FrontendURL: env("FRONTEND_URL", "http://localhost:3000"),

		Google: PlatformCreds{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  env("GOOGLE_REDIRECT_URL", "http://localhost:8080/v1/oauth/google/callback"),
		},
		GoogleTokenURL:     os.Getenv("GOOGLE_TOKEN_URL"),
		GoogleReviewsBase:  env("GOOGLE_REVIEWS_BASE_URL", "https://mybusiness.googleapis.com/v4"),
		GoogleAccountsBase: env("GOOGLE_ACCOUNTS_BASE_URL", "https://mybusinessaccountmanagement.googleapis.com/v1"),
		GoogleBusinessBase: env("GOOGLE_BUSINESS_INFO_BASE_URL", "https://mybusinessbusinessinformation.googleapis.com/v1"),
		Yelp: PlatformCreds{
			ClientID:     os.Getenv("YELP_CLIENT_ID"),
			ClientSecret: os.Getenv("YELP_CLIENT_SECRET"),
			RedirectURL:  env("YELP_REDIRECT_URL", "http://localhost:8080/v1/oauth/yelp/callback"),
		},
		YelpTokenURL:    os.Getenv("YELP_TOKEN_URL"),
		YelpAPIBase:     env("YELP_API_BASE_URL", "https://api.yelp.com"),
		YelpPartnerBase: env("YELP_PARTNER_BASE_URL", "https://partner-api.yelp.com"),

		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBase:  env("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel: env("OPENAI_MODEL", "gpt-4o"),

		SyncWorkers:     atoi("SYNC_WORKERS", 4),
		PlatformRPS:     atoi("PLATFORM_RPS", 5),
		CallTimeout:     time.Duration(atoi("CALL_TIMEOUT_SECONDS", 20)) * time.Second,
		SyncSchedule:    env("SYNC_SCHEDULE", "0 */30 * * * *"),
		MetricsSchedule: env("METRICS_SCHEDULE", "0 5 0 * * *"),
	}
	if !c.Google.Enabled() {
		log.Warn().Msg("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET empty, google integration disabled")
	}
	if !c.Yelp.Enabled() {
		log.Warn().Msg("YELP_CLIENT_ID/YELP_CLIENT_SECRET empty, yelp integration disabled")
	}
	if c.OpenAIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is empty, sentiment falls back to star rating and drafting is disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
