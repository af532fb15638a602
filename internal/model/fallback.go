// Package model defines shared types for the fallback proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ImageRequest is the inbound request as seen by the fallback interceptor.
// Host is the raw Host header and may carry a port. Path is decoded and used
// for matching and the local lookup; EscapedPath is the path as sent on the
// wire and is what the origin receives.
type ImageRequest struct {
	Ctx         context.Context
	Method      string
	Scheme      string
	Host        string
	Path        string
	EscapedPath string
	RawQuery    string
	Header      http.Header
}

// UpstreamResponse is a response fetched from the fallback origin.
// Body is streamed and must be closed by whoever ends up holding it.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Reason names why a request was or was not proxied.
type Reason string

// Reasons recorded on an Outcome.
const (
	ReasonProxied     Reason = "proxied"
	ReasonMethod      Reason = "method"
	ReasonEnvironment Reason = "environment"
	ReasonHost        Reason = "host"
	ReasonExtension   Reason = "extension"
	ReasonLocalFile   Reason = "local_file"
	ReasonProbeError  Reason = "probe_error"
)

// Outcome is the result of one interception: either pass through to normal
// serving, or answer with Response.
type Outcome struct {
	PassThrough bool
	Reason      Reason
	FallbackURL string
	Response    *UpstreamResponse
}

// PassThrough returns an Outcome deferring to normal serving.
func PassThrough(r Reason) *Outcome {
	return &Outcome{PassThrough: true, Reason: r}
}
