package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"golang.org/x/time/rate"

	"media-fallback-proxy/internal/client"
	"media-fallback-proxy/internal/config"
	"media-fallback-proxy/internal/handler"
	"media-fallback-proxy/internal/metrics"
	"media-fallback-proxy/internal/middleware"
	"media-fallback-proxy/internal/probe"
	"media-fallback-proxy/internal/route"
	"media-fallback-proxy/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("media-fallback-proxy"),
		kong.Description("Development server that fetches missing local images from a fallback origin."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			newMetrics,
			newEcho,
			newMatcher,
			fx.Annotate(newProber, fx.As(new(service.Prober))),
			fx.Annotate(client.NewOriginClient, fx.As(new(service.Fetcher))),
			service.NewFallbackService,
			handler.NewFallbackHandler,
			handler.NewStaticHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, handler.RegisterMetrics, warnConfigPermissions, logFallbackMode, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// newMetrics returns nil when metrics are disabled; consumers accept nil.
func newMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New()
}

func newMatcher(cfg *config.Config) *route.Matcher {
	return route.New(cfg.Fallback.Routes)
}

func newProber(cfg *config.Config) *probe.Prober {
	return probe.New(filepath.Join(cfg.Assets.WorkDir, cfg.Assets.PublicDir))
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout stays 0 so large images streamed from the origin are not cut
	// off; the origin client timeout bounds them instead.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.SecurityHeaders())

	if m != nil {
		e.Use(middleware.RequestMetrics(m))
	}

	if cfg.Server.RateLimit.Enabled {
		store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit.RequestsPerSecond))
		e.Use(echomw.RateLimiter(store))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func logFallbackMode(svc *service.FallbackService, m *route.Matcher, cfg *config.Config, logger *slog.Logger) {
	if !svc.Active() {
		logger.Info("image fallback disabled outside development",
			"environment", cfg.App.Environment,
		)
		return
	}
	logger.Info("image fallback enabled",
		"origin", svc.Origin(),
		"routes", m.Patterns(),
		"public_dir", filepath.Join(cfg.Assets.WorkDir, cfg.Assets.PublicDir),
	)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
