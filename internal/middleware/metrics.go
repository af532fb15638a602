package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"media-fallback-proxy/internal/metrics"
)

// RequestMetrics returns an Echo middleware that records Prometheus metrics
// for each inbound request, proxied or served locally.
func RequestMetrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			// A returned *echo.HTTPError (404 from the static handler, 405 from
			// the router) is written later by Echo's error handler.
			statusCode := c.Response().Status
			var he *echo.HTTPError
			if err != nil && errors.As(err, &he) {
				statusCode = he.Code
			}

			status := strconv.Itoa(statusCode)
			method := metrics.NormalizeMethod(c.Request().Method)
			path := metrics.NormalizePath(c.Request().URL.Path)

			m.RequestsTotal.WithLabelValues(method, status, path).Inc()
			m.RequestDuration.WithLabelValues(method, status, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
