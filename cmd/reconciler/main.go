// The reconciler sweeps jobs stuck pending past a threshold and resolves them
// through their provider's status endpoint. Running it beside the API is safe:
// terminal transitions are idempotent, so a webhook landing mid-sweep wins or
// loses cleanly.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finestudio/internal/adapter/repo"
	"finestudio/internal/domain"
	"finestudio/internal/infra"
	"finestudio/internal/providers"
	"finestudio/internal/providers/fal"
	"finestudio/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("reconciler: db connection failed")
	}
	defer pool.Close()
	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("reconciler: ensure schema failed")
	}

	jobs := repo.NewJobRepository(pool)
	credits := repo.NewCreditRepository(pool)

	// Only providers with a pull path matter here; Kie resolves through
	// webhooks alone and is left out on purpose.
	registry := providers.NewRegistry()
	registry.Register("fal-ai/", fal.NewClient(fal.Options{
		APIKey:       cfg.FalAPIKey,
		QueueBaseURL: cfg.FalQueueBaseURL,
	}))

	tracker := service.NewJobs(jobs, credits, registry, nil, logger, service.Costs{
		domain.JobKindImage: cfg.CostImage,
		domain.JobKindVideo: cfg.CostVideo,
		domain.JobKindAudio: cfg.CostAudio,
	})

	logger.Info().
		Dur("interval", cfg.ReconcileInterval).
		Dur("after", cfg.ReconcileAfter).
		Msg("reconciler: started")

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				logger.Error().Err(ctx.Err()).Msg("reconciler: stopped with error")
			}
			logger.Info().Msg("reconciler: stopped")
			return
		case <-ticker.C:
		}
		resolved, err := tracker.ReconcilePending(ctx, cfg.ReconcileAfter)
		if err != nil {
			logger.Error().Err(err).Msg("reconciler: sweep failed")
			continue
		}
		if resolved > 0 {
			logger.Info().Int("resolved", resolved).Msg("reconciler: sweep applied")
		}
	}
}
