// Package client provides the HTTP client for the fallback image origin.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/carlmjohnson/requests"

	"media-fallback-proxy/internal/config"
	"media-fallback-proxy/internal/metrics"
	"media-fallback-proxy/internal/model"
)

// OriginClient fetches images from the fallback origin.
type OriginClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewOriginClient creates an OriginClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
// Redirects are followed by the client, so the caller only sees the final response.
func NewOriginClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *OriginClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Fallback.IdleConnections,
		MaxIdleConnsPerHost: cfg.Fallback.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &OriginClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Fallback.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "origin_client"),
		metrics: m,
	}
}

// Fetch issues a GET for url with exactly the given headers and returns the
// response with its body unread. Any status code is returned as is; a 304 or
// 404 from the origin is a response, not an error. The caller is responsible
// for closing the response body. Canceling ctx aborts the request.
func (c *OriginClient) Fetch(ctx context.Context, url string, header http.Header) (*model.UpstreamResponse, error) {
	rb := requests.URL(url)
	for key, vals := range header {
		rb.Header(key, vals...)
	}
	req, err := rb.Request(ctx)
	if err != nil {
		return nil, fmt.Errorf("build origin request: %w", err)
	}

	c.logger.Debug("origin request",
		"url", url,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via UpstreamResponse
	duration := time.Since(start).Seconds()

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(http.MethodGet).Observe(duration)
		}
		return nil, fmt.Errorf("origin request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(http.MethodGet).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(http.MethodGet, status).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}
