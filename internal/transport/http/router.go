package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attestor/pkg/platform/middleware/request"
	"attestor/pkg/platform/middleware/requesttime"
)

// Registrar mounts a module's routes. Handlers stay thin and delegate to
// services so transport concerns remain isolated.
type Registrar interface {
	Register(r chi.Router)
}

// Config carries everything the router needs from main.
type Config struct {
	Logger         *slog.Logger
	Metrics        *request.Metrics
	MetricsHandler http.Handler
	RequestTimeout time.Duration
	MaxBodyBytes   int64

	// Health is mounted outside the request deadline so probes are never
	// starved by a slow chain.
	Health Registrar
	APIs   []Registrar
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(cfg.Metrics))

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(api chi.Router) {
		if cfg.RequestTimeout > 0 {
			api.Use(request.Deadline(cfg.RequestTimeout))
		}
		if cfg.MaxBodyBytes > 0 {
			api.Use(request.BodyLimit(cfg.MaxBodyBytes))
		}
		for _, reg := range cfg.APIs {
			reg.Register(api)
		}
	})

	return r
}
