// Package api is a typed client for the FixAgent backend REST API.
//
// Every operation returns a *Result. HTTP error statuses are data, not Go
// errors: callers inspect Result.StatusCode and Result.Problem. Errors are
// reserved for requests that never got a response (*TransportError),
// payloads rejected before sending (ErrInvalidRequest), and success bodies
// that do not decode (ErrDecode).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/delvicier/fixagent/internal/metrics"
	"github.com/delvicier/fixagent/internal/transport"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	// ErrNotConfigured matches transport errors raised while no base URL
	// is stored.
	ErrNotConfigured = errors.New("backend address not configured")

	// ErrInvalidRequest is returned when a payload fails validation. No
	// request is sent.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrDecode is returned when a 2xx body cannot be decoded.
	ErrDecode = errors.New("decode response")
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 4 << 20

// Result is the outcome of a request that reached the backend.
type Result[T any] struct {
	StatusCode int
	// Body is set for 2xx responses with a non-empty body.
	Body *T
	// Problem is set for 4xx and 5xx responses.
	Problem *Problem
}

// OK reports whether the status is 2xx.
func (r *Result[T]) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Empty is the body type of endpoints whose response carries nothing of
// interest.
type Empty struct{}

// TransportError wraps a failure to get any response from the backend.
type TransportError struct {
	Method       string
	Path         string
	Unconfigured bool
	Err          error
}

func (e *TransportError) Error() string {
	if e.Unconfigured && !errors.Is(e.Err, ErrNotConfigured) {
		return fmt.Sprintf("%s %s: %v (%v)", e.Method, e.Path, ErrNotConfigured, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNotConfigured) true for requests sent
// without a stored base URL.
func (e *TransportError) Is(target error) bool {
	return target == ErrNotConfigured && e.Unconfigured
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithMetrics counts requests by method and status.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client calls the backend through an http.Client whose transport
// rewrites the placeholder host (see transport.NewClient).
type Client struct {
	http      *http.Client
	source    transport.Source
	logger    *zap.Logger
	validate  *validator.Validate
	userAgent string
	metrics   *metrics.Metrics
}

// New creates a Client. source is consulted for ImageURL and to classify
// transport failures; host rewriting itself happens in httpClient's
// transport.
func New(httpClient *http.Client, source transport.Source, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		http:     httpClient,
		source:   source,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks v against its validate tags.
func (c *Client) Validate(v any) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	if err := c.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// request describes one call.
type request struct {
	method string
	path   string
	body   any
	// raw, when set, is sent as-is with contentType instead of body.
	raw         io.Reader
	contentType string
	// bearer overrides the stored token for this request.
	bearer string
}

func send[T any](ctx context.Context, c *Client, r request) (*Result[T], error) {
	var body io.Reader
	contentType := r.contentType
	switch {
	case r.raw != nil:
		body = r.raw
	case r.body != nil:
		if err := c.Validate(r.body); err != nil {
			return nil, err
		}
		buf, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	// Nothing leaves the process until a base URL is stored; the placeholder
	// host would otherwise be dialled with the stored token attached.
	if c.source.BaseURL() == "" {
		c.metrics.ObserveAPI(r.method, 0)
		return nil, &TransportError{
			Method:       r.method,
			Path:         r.path,
			Unconfigured: true,
			Err:          ErrNotConfigured,
		}
	}

	target := transport.PlaceholderBaseURL + "/" + strings.TrimPrefix(r.path, "/")
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveAPI(r.method, 0)
		return nil, &TransportError{
			Method:       r.method,
			Path:         r.path,
			Unconfigured: c.source.BaseURL() == "",
			Err:          err,
		}
	}
	defer resp.Body.Close()
	c.metrics.ObserveAPI(r.method, resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Method: r.method, Path: r.path, Err: err}
	}

	res := &Result[T]{StatusCode: resp.StatusCode}
	if !res.OK() {
		res.Problem = DecodeProblem(resp.StatusCode, data)
		c.logger.Debug("backend returned error status",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", res.Problem.Detail),
		)
		return res, nil
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return res, nil
	}
	if _, empty := any((*T)(nil)).(*Empty); empty {
		return res, nil
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return res, fmt.Errorf("%w: %s %s: %v", ErrDecode, r.method, r.path, err)
	}
	res.Body = &out
	return res, nil
}
