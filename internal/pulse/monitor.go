package pulse

import (
	"context"
	"sync"
	"time"

	"github.com/delvicier/fixagent/internal/event"
	"github.com/delvicier/fixagent/internal/metrics"
	"github.com/delvicier/fixagent/pkg/models"
	"go.uber.org/zap"
)

// Event topics published by the connectivity monitor.
const (
	TopicConnectionLost     = "pulse.connection.lost"
	TopicConnectionRestored = "pulse.connection.restored"
)

// ConnectionEvent is the payload for the connection topics.
type ConnectionEvent struct {
	BaseURL  string              `json:"base_url"`
	Failures int                 `json:"consecutive_failures"`
	Result   *models.ProbeResult `json:"result,omitempty"`
}

// Source supplies the base URL to watch.
type Source interface {
	BaseURL() string
}

// State is the monitor's view of the configured backend.
type State string

const (
	StateUnknown      State = "unknown"
	StateUp           State = "up"
	StateDown         State = "down"
	StateUnconfigured State = "unconfigured"
)

// Status is a point-in-time copy of the monitor state.
type Status struct {
	State               State               `json:"state"`
	BaseURL             string              `json:"base_url,omitempty"`
	ConsecutiveFailures int                 `json:"consecutive_failures"`
	LastCheck           *models.ProbeResult `json:"last_check,omitempty"`
}

// MonitorConfig holds the monitor's tuning.
type MonitorConfig struct {
	Interval         time.Duration
	FailureThreshold int
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithEventBus publishes connection events on p.
func WithEventBus(p event.Publisher) MonitorOption {
	return func(m *Monitor) { m.bus = p }
}

// WithMonitorMetrics exports the connection_up gauge.
func WithMonitorMetrics(mt *metrics.Metrics) MonitorOption {
	return func(m *Monitor) { m.metrics = mt }
}

// WithRescan runs fn once each time the connection is declared lost.
func WithRescan(fn func(ctx context.Context) error) MonitorOption {
	return func(m *Monitor) { m.rescan = fn }
}

// Monitor periodically probes the configured backend and reports
// transitions between reachable and lost.
type Monitor struct {
	source  Source
	checker Checker
	cfg     MonitorConfig
	logger  *zap.Logger
	bus     event.Publisher
	metrics *metrics.Metrics
	rescan  func(ctx context.Context) error

	mu       sync.Mutex
	state    State
	watched  string
	failures int
	last     *models.ProbeResult
}

// NewMonitor creates a Monitor. A zero interval defaults to 30s and a
// threshold below 1 defaults to 3.
func NewMonitor(source Source, checker Checker, cfg MonitorConfig, logger *zap.Logger, opts ...MonitorOption) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 3
	}
	m := &Monitor{
		source:  source,
		checker: checker,
		cfg:     cfg,
		logger:  logger,
		bus:     event.Discard,
		state:   StateUnknown,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run checks immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Info("connectivity monitor started", zap.Duration("interval", m.cfg.Interval))
	m.CheckOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("connectivity monitor stopped")
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

// CheckOnce probes the current base URL and applies the result.
func (m *Monitor) CheckOnce(ctx context.Context) Status {
	baseURL := m.source.BaseURL()
	if baseURL == "" {
		m.mu.Lock()
		m.state = StateUnconfigured
		m.watched = ""
		m.failures = 0
		m.last = nil
		m.mu.Unlock()
		m.metrics.SetConnectionUp(false)
		return m.Status()
	}

	result := m.checker.Check(ctx, baseURL)
	if ctx.Err() != nil {
		return m.Status()
	}

	var (
		lost, restored bool
		failures       int
	)
	m.mu.Lock()
	if m.watched != baseURL {
		// A new address starts with a clean slate.
		m.watched = baseURL
		m.failures = 0
		m.state = StateUnknown
	}
	m.last = result
	if result.Reachable {
		restored = m.state == StateDown
		m.failures = 0
		m.state = StateUp
	} else {
		m.failures++
		if m.failures >= m.cfg.FailureThreshold && m.state != StateDown {
			m.state = StateDown
			lost = true
		}
	}
	failures = m.failures
	m.mu.Unlock()

	m.metrics.SetConnectionUp(result.Reachable)

	payload := ConnectionEvent{BaseURL: baseURL, Failures: failures, Result: result}
	switch {
	case lost:
		m.logger.Warn("backend connection lost",
			zap.String("url", baseURL),
			zap.Int("failures", failures),
			zap.String("error", result.Error),
		)
		m.bus.PublishAsync(ctx, event.Event{Topic: TopicConnectionLost, Source: "pulse", Payload: payload})
		if m.rescan != nil {
			if err := m.rescan(ctx); err != nil {
				m.logger.Warn("rescan after connection loss failed", zap.Error(err))
			}
		}
	case restored:
		m.logger.Info("backend connection restored", zap.String("url", baseURL))
		m.bus.PublishAsync(ctx, event.Event{Topic: TopicConnectionRestored, Source: "pulse", Payload: payload})
	default:
		m.logger.Debug("backend health checked",
			zap.String("url", baseURL),
			zap.Bool("reachable", result.Reachable),
			zap.Float64("latency_ms", result.LatencyMs),
		)
	}
	return m.Status()
}

// Status returns the current monitor state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:               m.state,
		BaseURL:             m.watched,
		ConsecutiveFailures: m.failures,
		LastCheck:           m.last,
	}
}
