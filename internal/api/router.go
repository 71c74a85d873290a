package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pagecraft/subsync/internal/domain"
	"github.com/pagecraft/subsync/internal/engine"
	"github.com/pagecraft/subsync/internal/observe"
	"github.com/pagecraft/subsync/internal/provider"
	"github.com/pagecraft/subsync/internal/store"
)

// RouterConfig carries the dependencies the HTTP surface composes.
type RouterConfig struct {
	Reconciler *engine.Reconciler
	Deduper    *store.Deduper
	Observer   observe.Observer
	Adapters   []provider.Adapter
	Secrets    map[domain.Provider]string
	// BuildBackendURL enables the job-status proxy when non-empty.
	BuildBackendURL string
	Logger          *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	for _, adapter := range cfg.Adapters {
		h := NewWebhookHandler(
			adapter,
			cfg.Secrets[adapter.Provider()],
			cfg.Reconciler,
			cfg.Deduper,
			cfg.Observer,
			cfg.Logger,
		)
		r.Post("/webhooks/"+string(adapter.Provider()), h.Receive)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		if cfg.BuildBackendURL != "" {
			jobs := NewJobStatusHandler(cfg.BuildBackendURL, cfg.Logger)
			r.Get("/jobs/{id}", jobs.Get)
		}
	})

	return r
}
