package handler

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"

	"media-fallback-proxy/internal/client"
	"media-fallback-proxy/internal/config"
	"media-fallback-proxy/internal/probe"
	"media-fallback-proxy/internal/route"
	"media-fallback-proxy/internal/service"
)

// testServer is a fully wired Echo instance over a temp public dir.
type testServer struct {
	e   *echo.Echo
	cfg *config.Config
	svc *service.FallbackService
}

// newTestServer wires the handlers against origin, with files created under
// <tmp>/public. The origin is not validated, so httptest URLs work.
func newTestServer(t *testing.T, env, origin string, files map[string]string) *testServer {
	t.Helper()

	workDir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(workDir, "public", filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := &config.Config{
		App:    config.AppConfig{Environment: env},
		Assets: config.AssetsConfig{WorkDir: workDir, PublicDir: "public"},
		Fallback: config.FallbackConfig{
			Origin:          origin,
			Routes:          []string{"/media/*", "/patterns/*"},
			TimeoutSeconds:  10,
			IdleConnections: 4,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	oc := client.NewOriginClient(cfg, logger, nil)
	prober := probe.New(filepath.Join(workDir, "public"))
	svc := service.NewFallbackService(oc, prober, cfg, logger, nil)
	matcher := route.New(cfg.Fallback.Routes)

	e := echo.New()
	RegisterRoutes(e,
		NewFallbackHandler(svc, matcher, logger),
		NewStaticHandler(cfg),
		NewHealthHandler(cfg, svc, matcher, "test"),
	)
	return &testServer{e: e, cfg: cfg, svc: svc}
}
