package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/artpar/channelgen/adapters/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics       *metrics.Collector // enables /metrics and request metrics
	EnableOpenAPI bool               // serves /openapi.json and the Swagger UI
}

// NewRouter creates the preview server router.
func NewRouter(h *Handler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Metrics.Gatherer(), promhttp.HandlerOpts{}))
	}

	r.Get("/health", h.Liveness)
	r.Get("/health/live", h.Liveness)
	r.Get("/health/ready", h.Readiness)
	r.Get("/version", h.Version)

	if cfg.EnableOpenAPI {
		r.Get("/openapi.json", h.OpenAPI)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.json")))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/protocols", h.Protocols)
		r.Get("/channels", h.Channels)
		r.Post("/generate", h.Generate)
		r.Get("/runs", h.Runs)
		r.Get("/runs/{id}", h.Run)
	})

	return r
}

// internal reports paths that are neither logged nor measured.
func internal(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics" || strings.HasPrefix(path, "/swagger")
}

// NewMetricsMiddleware creates middleware that records request metrics.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if internal(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.RequestDuration.WithLabelValues(r.Method, route, statusLabel(ww.Status())).Observe(time.Since(start).Seconds())
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware creates middleware that logs each request at debug
// level.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if internal(r.URL.Path) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
