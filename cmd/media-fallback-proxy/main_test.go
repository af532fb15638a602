package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"media-fallback-proxy/internal/config"
)

func TestNewEcho_RateLimit(t *testing.T) {
	tests := []struct {
		name     string
		limit    config.RateLimitConfig
		want429  bool
		requests int
	}{
		{"enabled rejects burst", config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1}, true, 10},
		{"disabled never rejects", config.RateLimitConfig{Enabled: false}, false, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Server: config.ServerConfig{RateLimit: tt.limit}}
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))

			e := newEcho(cfg, logger, nil)
			e.GET("/media/card.png", func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})

			got429 := false
			for i := range tt.requests {
				rec := httptest.NewRecorder()
				e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/card.png", http.NoBody))
				if i == 0 && rec.Code != http.StatusOK {
					t.Fatalf("first request: status = %d, want %d", rec.Code, http.StatusOK)
				}
				if rec.Code == http.StatusTooManyRequests {
					got429 = true
				}
			}
			if got429 != tt.want429 {
				t.Errorf("saw 429 = %v, want %v", got429, tt.want429)
			}
		})
	}
}

func TestNewEcho_SecurityHeaders(t *testing.T) {
	cfg := &config.Config{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	e := newEcho(cfg, logger, nil)
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	if v := rec.Header().Get("X-Content-Type-Options"); v != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", v, "nosniff")
	}
	if v := rec.Header().Get(echo.HeaderXRequestID); v == "" {
		t.Error("X-Request-Id header missing")
	}
}
