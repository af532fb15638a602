package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-fallback-proxy/internal/config"
	"media-fallback-proxy/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance. Every
// GET/HEAD outside the fixed endpoints goes to the static handler, with the
// fallback interceptor in front of it.
func RegisterRoutes(e *echo.Echo, fallback *FallbackHandler, static *StaticHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/dev/status", health.Status)

	e.Match([]string{http.MethodGet, http.MethodHead}, "/*", static.Serve, fallback.Intercept)
}

// RegisterMetrics exposes the Prometheus registry when metrics are enabled.
func RegisterMetrics(e *echo.Echo, cfg *config.Config, m *metrics.Metrics) {
	if m == nil || !cfg.Metrics.Enabled {
		return
	}
	e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
}
