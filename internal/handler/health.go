// Package handler holds the Echo handlers and route wiring.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"media-fallback-proxy/internal/config"
	"media-fallback-proxy/internal/route"
	"media-fallback-proxy/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	svc     *service.FallbackService
	matcher *route.Matcher
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, svc *service.FallbackService, m *route.Matcher, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, svc: svc, matcher: m, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type statusResponse struct {
	Status         string   `json:"status"`
	Version        string   `json:"version"`
	Environment    string   `json:"environment"`
	FallbackActive bool     `json:"fallback_active"`
	Origin         string   `json:"origin"`
	PublicDir      string   `json:"public_dir"`
	Routes         []string `json:"routes"`
}

// Status reports the dev server's fallback configuration.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:         "ok",
		Version:        string(h.version),
		Environment:    h.cfg.App.Environment,
		FallbackActive: h.svc.Active(),
		Origin:         h.svc.Origin(),
		PublicDir:      h.cfg.Assets.PublicDir,
		Routes:         h.matcher.Patterns(),
	})
}
