package handlers

import (
	"encoding/json"
	"net/http"

	"finestudio/internal/domain"
	"finestudio/internal/infra"
	"finestudio/internal/metrics"
	"finestudio/internal/middleware"
	"finestudio/internal/service"
)

// App bundles the dependencies shared by the HTTP handlers.
type App struct {
	Jobs    *service.Jobs
	Credits domain.CreditRepository
	Config  *infra.Config
	Metrics *metrics.Set
	Logger  infra.Logger
}

func NewApp(jobs *service.Jobs, credits domain.CreditRepository, cfg *infra.Config, set *metrics.Set, logger infra.Logger) *App {
	return &App{Jobs: jobs, Credits: credits, Config: cfg, Metrics: set, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error":   errCode,
		"message": message,
	})
}

func (a *App) currentOwnerID(r *http.Request) string {
	return middleware.OwnerIDFromContext(r.Context())
}
