package routes

import (
	"net/http"
	"time"

	"drone-flight/registry/internal/api"
	"drone-flight/registry/internal/logging"
	"drone-flight/registry/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func RegisterRoutes(deps *api.Dependencies, upSince time.Time) http.Handler {

	// initialize Chi router
	r := chi.NewRouter()

	// global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(middleware.MetricsMiddleware(deps.Metrics))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Wallet-Address"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	logging.Info("Router initialized with metrics and logging middleware")

	handlers := api.NewHandlers(deps)

	// health check and metrics
	r.Get("/healthCheck", handlers.HealthCheckHandler(upSince))
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	RegisterAPIRoutes(r, deps, handlers)
	RegisterToolRoutes(r, deps)

	return r
}
