// Package pulse checks whether a FixAgent backend answers at a given base
// URL and watches the configured backend for loss of connectivity.
package pulse

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/delvicier/fixagent/internal/metrics"
	"github.com/delvicier/fixagent/pkg/models"
)

// DefaultHealthPath is served by the backend's API documentation route
// and needs no authentication.
const DefaultHealthPath = "/api"

// Checker executes a reachability check against a candidate base URL.
// Implementations never fail: every problem is reported as unreachable.
type Checker interface {
	Check(ctx context.Context, candidate string) *models.ProbeResult
}

// HTTPChecker probes candidates with a bounded-timeout GET on the health
// path.
type HTTPChecker struct {
	client     *http.Client
	timeout    time.Duration
	healthPath string
	userAgent  string
	metrics    *metrics.Metrics
	now        func() time.Time
}

// CheckerOption configures an HTTPChecker.
type CheckerOption func(*HTTPChecker)

// WithMetrics records every probe on m.
func WithMetrics(m *metrics.Metrics) CheckerOption {
	return func(c *HTTPChecker) { c.metrics = m }
}

// WithUserAgent sets the User-Agent header on probe requests.
func WithUserAgent(ua string) CheckerOption {
	return func(c *HTTPChecker) { c.userAgent = ua }
}

// NewHTTPChecker creates a checker whose connect and response-header
// timeouts are both timeout. healthPath defaults to DefaultHealthPath.
func NewHTTPChecker(timeout time.Duration, healthPath string, opts ...CheckerOption) *HTTPChecker {
	if healthPath == "" {
		healthPath = DefaultHealthPath
	}
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}

	transport := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout: timeout,
		}).DialContext,
		ResponseHeaderTimeout: timeout,
		TLSHandshakeTimeout:   timeout,
		// Scans touch hundreds of hosts once each; pooled connections would only leak.
		DisableKeepAlives: true,
	}

	c := &HTTPChecker{
		client: &http.Client{
			Transport: transport,
			Timeout:   2 * timeout,
		},
		timeout:    timeout,
		healthPath: healthPath,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check sends GET <candidate><healthPath>. A final status in 200-399 is
// reachable; anything else, including any transport error, is not.
func (c *HTTPChecker) Check(ctx context.Context, candidate string) *models.ProbeResult {
	start := c.now()
	result := &models.ProbeResult{
		CandidateURL: candidate,
		CheckedAt:    start.UTC(),
	}
	defer func() {
		elapsed := c.now().Sub(start)
		result.LatencyMs = float64(elapsed) / float64(time.Millisecond)
		c.metrics.ObserveProbe(result.Reachable, elapsed)
	}()

	target := strings.TrimSuffix(candidate, "/") + c.healthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	result.StatusCode = resp.StatusCode
	result.Reachable = resp.StatusCode >= 200 && resp.StatusCode < 400
	if !result.Reachable {
		result.Error = resp.Status
	}
	return result
}

// Probe is the boolean form of Check.
func (c *HTTPChecker) Probe(ctx context.Context, candidate string) bool {
	return c.Check(ctx, candidate).Reachable
}

// Timeout returns the per-phase timeout the checker was built with.
func (c *HTTPChecker) Timeout() time.Duration {
	return c.timeout
}
