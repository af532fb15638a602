package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"media-fallback-proxy/internal/model"
	"media-fallback-proxy/internal/route"
	"media-fallback-proxy/internal/service"
)

// FallbackHandler intercepts image requests under the fallback routes and
// answers them from the fallback origin when the local file is missing.
type FallbackHandler struct {
	service *service.FallbackService
	matcher *route.Matcher
	logger  *slog.Logger
}

// NewFallbackHandler creates a FallbackHandler.
func NewFallbackHandler(svc *service.FallbackService, m *route.Matcher, logger *slog.Logger) *FallbackHandler {
	return &FallbackHandler{
		service: svc,
		matcher: m,
		logger:  logger.With("component", "fallback_handler"),
	}
}

// Intercept is an Echo middleware. Requests it does not take over are passed
// to next unchanged.
func (h *FallbackHandler) Intercept(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if !h.matcher.Match(req.URL.Path) {
			return next(c)
		}

		out, err := h.service.Intercept(&model.ImageRequest{
			Ctx:         req.Context(),
			Method:      req.Method,
			Scheme:      c.Scheme(),
			Host:        req.Host,
			Path:        req.URL.Path,
			EscapedPath: req.URL.EscapedPath(),
			RawQuery:    req.URL.RawQuery,
			Header:      req.Header,
		})
		if err != nil {
			return h.mapError(c, err)
		}
		if out.PassThrough {
			return next(c)
		}
		return h.stream(c, out)
	}
}

func (h *FallbackHandler) stream(c echo.Context, out *model.Outcome) error {
	resp := out.Response
	defer func() { _ = resp.Body.Close() }()

	// Upstream values replace anything set earlier in the chain.
	for key, vals := range resp.Header {
		c.Response().Header().Del(key)
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}
	c.Response().WriteHeader(resp.StatusCode)

	// The status is already sent; a failed copy leaves the client with a
	// truncated body, so the error is only logged.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming fallback body",
			"err", err,
			"url", out.FallbackURL,
		)
	}

	h.logger.Info("served from fallback origin",
		"path", c.Request().URL.Path,
		"status", resp.StatusCode,
	)
	return nil
}

func (h *FallbackHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("fallback fetch failed",
		"err", err,
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": "fallback origin timed out",
		})
	}

	if errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "client disconnected",
		})
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "fallback origin unreachable",
		})
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return c.JSON(http.StatusGatewayTimeout, map[string]string{
				"error": "fallback origin timed out",
			})
		}
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "fallback origin connection failed",
		})
	}

	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "fallback origin request failed",
	})
}
