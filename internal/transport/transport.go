// Package transport rewrites outgoing backend requests so they reach the
// configured host and carry the stored bearer token.
package transport

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PlaceholderBaseURL is the address API requests are built against. The
// HostSelection transport replaces it with the stored base URL; with no
// stored URL the request goes out unchanged.
const PlaceholderBaseURL = "http://localhost"

// Source provides the connection values read on every request.
type Source interface {
	BaseURL() string
	Token() string
}

// HostSelection is an http.RoundTripper that points each request at the
// current base URL and adds Authorization when it is missing.
type HostSelection struct {
	Source Source
	// Base performs the rewritten request. nil means http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper. It never fails on bad
// configuration: an unusable base URL leaves the request as it was.
func (h *HostSelection) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())

	if base, ok := parseBase(h.Source.BaseURL()); ok {
		rewriteURL(out, base)
	}

	if out.Header.Get("Authorization") == "" {
		if token := h.Source.Token(); token != "" {
			out.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return h.base().RoundTrip(out)
}

func (h *HostSelection) base() http.RoundTripper {
	if h.Base != nil {
		return h.Base
	}
	return http.DefaultTransport
}

func parseBase(raw string) (*url.URL, bool) {
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, false
	}
	return u, true
}

// rewriteURL swaps scheme and host and prefixes the base path. The
// request's escaped path and raw query are carried over unchanged.
func rewriteURL(req *http.Request, base *url.URL) {
	req.URL.Scheme = base.Scheme
	req.URL.Host = base.Host
	req.Host = ""

	prefix := strings.TrimSuffix(base.Path, "/")
	if prefix == "" {
		return
	}
	path := req.URL.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if req.URL.RawPath != "" {
		raw := req.URL.RawPath
		if !strings.HasPrefix(raw, "/") {
			raw = "/" + raw
		}
		req.URL.RawPath = strings.TrimSuffix(base.EscapedPath(), "/") + raw
	}
	req.URL.Path = prefix + path
}

// Logging records each backend exchange on a zap logger. Header values
// of Authorization are never written.
type Logging struct {
	Base   http.RoundTripper
	Logger *zap.Logger
}

// RoundTrip implements http.RoundTripper.
func (l *Logging) RoundTrip(req *http.Request) (*http.Response, error) {
	base := l.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	elapsed := time.Since(start)

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Bool("auth", req.Header.Get("Authorization") != ""),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		l.Logger.Debug("backend request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	l.Logger.Debug("backend request", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}

// Options configures NewClient.
type Options struct {
	Timeout time.Duration
	// Base is the innermost transport. nil builds one with Timeout as
	// the dial timeout.
	Base http.RoundTripper
}

// NewClient returns an http.Client whose requests are host-rewritten,
// authorized from source and logged.
func NewClient(source Source, logger *zap.Logger, opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	base := opts.Base
	if base == nil {
		base = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &HostSelection{
			Source: source,
			Base:   &Logging{Base: base, Logger: logger},
		},
	}
}
