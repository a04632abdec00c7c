package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finestudio/internal/adapter/repo"
	"finestudio/internal/domain"
	"finestudio/internal/http/handlers"
	"finestudio/internal/http/httpapi"
	"finestudio/internal/infra"
	"finestudio/internal/infra/geoip"
	"finestudio/internal/metrics"
	"finestudio/internal/middleware"
	"finestudio/internal/providers"
	"finestudio/internal/providers/fal"
	"finestudio/internal/providers/kie"
	"finestudio/internal/providers/openrouter"
	"finestudio/internal/service"
	"finestudio/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	var jobs domain.JobRepository
	var credits domain.CreditRepository
	if cfg.JobsBackend == infra.BackendPostgres {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		if err := repo.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure schema")
		}
		jobs = repo.NewJobRepository(pool)
		credits = repo.NewCreditRepository(pool)
	} else {
		logger.Warn().Msg("using in-memory job store; records vanish on restart")
		jobs = store.NewJobStore()
		credits = store.NewCreditLedger()
	}

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	set := metrics.New()
	registry := newRegistry(cfg)
	tracker := service.NewJobs(jobs, credits, registry, set, logger, service.Costs{
		domain.JobKindImage: cfg.CostImage,
		domain.JobKindVideo: cfg.CostVideo,
		domain.JobKindAudio: cfg.CostAudio,
	})

	app := handlers.NewApp(tracker, credits, cfg, set, logger)
	router := httpapi.NewRouter(app, countryLookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newRegistry(cfg *infra.Config) *providers.Registry {
	registry := providers.NewRegistry()
	registry.Register("fal-ai/", fal.NewClient(fal.Options{
		APIKey:       cfg.FalAPIKey,
		QueueBaseURL: cfg.FalQueueBaseURL,
		WebhookURL:   cfg.FalWebhookURL,
	}))
	registry.Register("kie/", kie.NewClient(kie.Options{
		APIKey:      cfg.KieAPIKey,
		BaseURL:     cfg.KieBaseURL,
		CallbackURL: cfg.KieCallbackURL,
	}))
	registry.Register("openrouter/", openrouter.NewClient(openrouter.Options{
		APIKey:  cfg.OpenRouterAPIKey,
		BaseURL: cfg.OpenRouterURL,
	}))
	return registry
}
