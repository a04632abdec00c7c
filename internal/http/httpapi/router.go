package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"finestudio/internal/http/handlers"
	"finestudio/internal/middleware"
)

// NewRouter wires the HTTP surface. Webhooks, health and metrics stay outside
// the auth chain; everything under /v1 except webhooks requires a session
// token.
func NewRouter(app *handlers.App, countryLookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.Locale("en", countryLookup),
		middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)
	if app.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	}

	r.Route("/v1/webhooks", func(r chi.Router) {
		r.Post("/{provider}", app.Webhook)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.Config.JWTSecret))

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.SubmitJob)
			r.Get("/", app.ListJobs)
			r.Get("/{request_id}", app.GetJob)
		})

		r.Get("/v1/credits/balance", app.CreditsBalance)
	})

	return r
}
