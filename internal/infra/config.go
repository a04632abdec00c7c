package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Jobs backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int
	JobsBackend string
	JWTSecret   string
	GeoIPDBPath string

	FalAPIKey        string
	FalQueueBaseURL  string
	FalWebhookURL    string
	KieAPIKey        string
	KieBaseURL       string
	KieCallbackURL   string
	OpenRouterAPIKey string
	OpenRouterURL    string

	VisibilityWindow  time.Duration
	AwaitMaxWait      time.Duration
	AwaitPollInterval time.Duration
	ReconcileInterval time.Duration
	ReconcileAfter    time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	CostImage int64
	CostVideo int64
	CostAudio int64
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns:  getEnvInt("DB_MIN_CONNS", 1),
		JobsBackend: getEnv("JOBS_BACKEND", BackendPostgres),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		FalAPIKey:        os.Getenv("FAL_KEY"),
		FalQueueBaseURL:  getEnv("FAL_QUEUE_BASE_URL", "https://queue.fal.run"),
		FalWebhookURL:    os.Getenv("FAL_WEBHOOK_URL"),
		KieAPIKey:        os.Getenv("KIE_API_KEY"),
		KieBaseURL:       getEnv("KIE_BASE_URL", "https://api.kie.ai"),
		KieCallbackURL:   os.Getenv("KIE_CALLBACK_URL"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterURL:    getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),

		VisibilityWindow:  time.Hour * time.Duration(getEnvInt("JOB_VISIBILITY_WINDOW_HOURS", 24)),
		AwaitMaxWait:      time.Second * time.Duration(getEnvInt("AWAIT_MAX_WAIT_SECONDS", 120)),
		AwaitPollInterval: time.Second * time.Duration(getEnvInt("AWAIT_POLL_INTERVAL_SECONDS", 2)),
		ReconcileInterval: time.Second * time.Duration(getEnvInt("RECONCILE_INTERVAL_SECONDS", 30)),
		ReconcileAfter:    time.Minute * time.Duration(getEnvInt("RECONCILE_AFTER_MINUTES", 5)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		CostImage: int64(getEnvInt("CREDITS_COST_IMAGE", 1)),
		CostVideo: int64(getEnvInt("CREDITS_COST_VIDEO", 10)),
		CostAudio: int64(getEnvInt("CREDITS_COST_AUDIO", 2)),
	}

	if cfg.JobsBackend != BackendPostgres && cfg.JobsBackend != BackendMemory {
		return nil, fmt.Errorf("JOBS_BACKEND must be %q or %q", BackendPostgres, BackendMemory)
	}
	if cfg.JobsBackend == BackendPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
