// Package service implements the fallback image interception logic.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/samber/lo"

	"media-fallback-proxy/internal/config"
	"media-fallback-proxy/internal/metrics"
	"media-fallback-proxy/internal/model"
	"media-fallback-proxy/internal/probe"
)

// CacheControl is set on every proxied response, replacing whatever the origin sent.
const CacheControl = "public, max-age=86400, immutable"

// imageExtensions are the path suffixes eligible for fallback, compared lowercased.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif", ".svg"}

// loopbackHosts are the only hostnames the fallback answers on.
var loopbackHosts = []string{"localhost", "127.0.0.1"}

// hopByHopHeaders are connection-scoped and never copied from the origin response.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Fetcher retrieves a URL from the fallback origin.
type Fetcher interface {
	Fetch(ctx context.Context, url string, header http.Header) (*model.UpstreamResponse, error)
}

// Prober reports whether a request path exists in the local asset tree.
type Prober interface {
	Probe(name string) (probe.Presence, error)
	Path(name string) string
}

// FallbackService decides, per request, whether a missing local image is
// fetched from the fallback origin.
type FallbackService struct {
	fetcher     Fetcher
	prober      Prober
	origin      string
	development bool
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewFallbackService creates a FallbackService. The metrics parameter is optional.
func NewFallbackService(f Fetcher, p Prober, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *FallbackService {
	origin := cfg.Fallback.Origin
	if origin == "" {
		origin = config.DefaultOrigin
	}
	return &FallbackService{
		fetcher:     f,
		prober:      p,
		origin:      strings.TrimSuffix(origin, "/"),
		development: cfg.App.IsDevelopment(),
		logger:      logger.With("component", "fallback_service"),
		metrics:     m,
	}
}

// Active reports whether the service can ever proxy, i.e. runs in development.
func (s *FallbackService) Active() bool {
	return s.development
}

// Origin returns the fallback origin.
func (s *FallbackService) Origin() string {
	return s.origin
}

// Gate applies the request-only checks in order: method, environment, host,
// extension. It returns the reason of the first failing check, or true when
// the request is eligible for a local probe.
func (s *FallbackService) Gate(req *model.ImageRequest) (model.Reason, bool) {
	if req.Method != http.MethodGet {
		return model.ReasonMethod, false
	}
	if !s.development {
		return model.ReasonEnvironment, false
	}
	if !lo.Contains(loopbackHosts, hostname(req.Host)) {
		return model.ReasonHost, false
	}
	if !lo.Contains(imageExtensions, strings.ToLower(path.Ext(req.Path))) {
		return model.ReasonExtension, false
	}
	return "", true
}

// Intercept runs the full pipeline for one request. It returns a pass-through
// Outcome unless the request is an eligible image missing locally, in which
// case the Outcome carries the origin response with its body unread; the
// caller must close it. An error means the origin fetch itself failed.
func (s *FallbackService) Intercept(req *model.ImageRequest) (*model.Outcome, error) {
	if reason, ok := s.Gate(req); !ok {
		return s.passThrough(reason), nil
	}

	presence, err := s.prober.Probe(req.Path)
	switch presence {
	case probe.Present:
		return s.passThrough(model.ReasonLocalFile), nil
	case probe.ProbeError:
		s.logger.Warn("local file probe failed; serving locally",
			"path", s.prober.Path(req.Path),
			"err", err,
		)
		return s.passThrough(model.ReasonProbeError), nil
	}

	fallbackURL := s.FallbackURL(escapedPath(req), req.RawQuery)
	s.logger.Debug("local image missing, fetching from origin",
		"path", req.Path,
		"url", fallbackURL,
	)

	ctx := req.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := s.fetcher.Fetch(ctx, fallbackURL, s.ForwardHeaders(req))
	if err != nil {
		return nil, fmt.Errorf("fetch fallback %s: %w", fallbackURL, err)
	}

	resp.Header = rewriteResponseHeaders(resp.Header)
	s.record(model.ReasonProxied)

	return &model.Outcome{
		Reason:      model.ReasonProxied,
		FallbackURL: fallbackURL,
		Response:    resp,
	}, nil
}

// FallbackURL returns the origin URL for an escaped request path and raw query.
func (s *FallbackService) FallbackURL(p, rawQuery string) string {
	u := s.origin + p
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

// ForwardHeaders builds the origin request headers. Conditional headers are
// always sent, empty when the client did not supply them, and the Referer
// points at the local dev server's root.
func (s *FallbackService) ForwardHeaders(req *model.ImageRequest) http.Header {
	h := make(http.Header, 4)
	h.Set("Accept", headerOr(req.Header, "Accept", "*/*"))
	h.Set("If-None-Match", headerOr(req.Header, "If-None-Match", ""))
	h.Set("If-Modified-Since", headerOr(req.Header, "If-Modified-Since", ""))
	h.Set("Referer", referer(req))
	return h
}

func (s *FallbackService) passThrough(r model.Reason) *model.Outcome {
	s.record(r)
	return model.PassThrough(r)
}

func (s *FallbackService) record(r model.Reason) {
	if s.metrics != nil {
		s.metrics.FallbackDecisions.WithLabelValues(string(r)).Inc()
	}
}

// headerOr returns all values of key joined by ", ", or def when the header is absent.
func headerOr(h http.Header, key, def string) string {
	vals := h.Values(key)
	if len(vals) == 0 {
		return def
	}
	return strings.Join(vals, ", ")
}

// escapedPath returns the wire form of the request path, re-encoding the
// decoded path when the caller did not supply one.
func escapedPath(req *model.ImageRequest) string {
	if req.EscapedPath != "" {
		return req.EscapedPath
	}
	u := url.URL{Path: req.Path}
	return u.EscapedPath()
}

func hostname(host string) string {
	u := url.URL{Host: host}
	return strings.ToLower(u.Hostname())
}

func referer(req *model.ImageRequest) string {
	scheme := req.Scheme
	if scheme == "" {
		scheme = "http"
	}
	u := url.URL{Host: req.Host}
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	return scheme + "://" + host + "/"
}

// rewriteResponseHeaders copies the origin headers minus hop-by-hop fields
// and forces the immutable cache directive.
func rewriteResponseHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				dst.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		dst.Del(name)
	}
	dst.Set("Cache-Control", CacheControl)
	return dst
}
