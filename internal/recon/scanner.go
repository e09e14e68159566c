// Package recon finds the FixAgent backend on the local network by probing
// a fixed candidate list, and validates manually entered addresses.
package recon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/delvicier/fixagent/internal/event"
	"github.com/delvicier/fixagent/internal/metrics"
	"github.com/delvicier/fixagent/internal/pulse"
	"github.com/delvicier/fixagent/internal/services"
	"github.com/delvicier/fixagent/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Mode selects how candidates are probed.
type Mode string

const (
	ModeFast   Mode = "fast"
	ModeDeep   Mode = "deep"
	ModeManual Mode = "manual"
)

// ParseMode accepts "fast", "deep" or "" (fast).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFast:
		return ModeFast, nil
	case ModeDeep:
		return ModeDeep, nil
	}
	return "", fmt.Errorf("unknown scan mode %q", s)
}

// Status is the terminal state of a session.
type Status string

const (
	StatusConnected Status = "connected"
	StatusNotFound  Status = "not_found"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// DefaultBatchSize is the number of concurrent probes in fast mode.
const DefaultBatchSize = 30

var (
	// ErrInvalidURL is returned by Connect for input that is empty or
	// lacks an http:// or https:// prefix. No probe is sent.
	ErrInvalidURL = errors.New("invalid server URL")

	// ErrScanActive is returned by TryStart while another session runs.
	ErrScanActive = errors.New("a scan is already running")

	// ErrUnreachable is returned by Connect when the probe fails.
	ErrUnreachable = errors.New("server unreachable")
)

// URLStore persists the discovered base URL.
type URLStore interface {
	SetBaseURL(ctx context.Context, raw string) error
}

// Outcome describes a finished session.
type Outcome struct {
	SessionID string        `json:"session_id"`
	Mode      Mode          `json:"mode"`
	Status    Status        `json:"status"`
	FoundURL  string        `json:"found_url,omitempty"`
	Probed    int           `json:"probed"`
	Total     int           `json:"total"`
	Duration  time.Duration `json:"duration"`
}

// Config tunes the scanner.
type Config struct {
	// BatchSize is the fast-mode concurrency. Values below 1 use
	// DefaultBatchSize.
	BatchSize int
	// RateLimit caps probes per second across a session. 0 is unlimited.
	RateLimit float64
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithHistory records every session in repo.
func WithHistory(repo services.ScanRepository) Option {
	return func(s *Scanner) { s.history = repo }
}

// WithEventBus publishes scan lifecycle and progress events on p.
func WithEventBus(p event.Publisher) Option {
	return func(s *Scanner) { s.bus = p }
}

// WithMetrics records scan outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// Scanner runs discovery sessions. At most one session is active; starting
// another cancels the previous one.
type Scanner struct {
	checker    pulse.Checker
	store      URLStore
	candidates []string
	batchSize  int
	limiter    *rate.Limiter
	logger     *zap.Logger
	history    services.ScanRepository
	bus        event.Publisher
	metrics    *metrics.Metrics
	now        func() time.Time

	mu     sync.Mutex
	active *session
}

type session struct {
	id     string
	mode   Mode
	cancel context.CancelFunc
}

// New creates a Scanner over an ordered candidate list.
func New(checker pulse.Checker, store URLStore, candidates []string, cfg Config, logger *zap.Logger, opts ...Option) *Scanner {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	s := &Scanner{
		checker:    checker,
		store:      store,
		candidates: append([]string(nil), candidates...),
		batchSize:  cfg.BatchSize,
		logger:     logger,
		bus:        event.Discard,
		now:        time.Now,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Candidates returns a copy of the candidate list.
func (s *Scanner) Candidates() []string {
	return append([]string(nil), s.candidates...)
}

// Scan runs a fast or deep session.
func (s *Scanner) Scan(ctx context.Context, mode Mode) (*Outcome, error) {
	switch mode {
	case ModeFast:
		return s.Fast(ctx)
	case ModeDeep:
		return s.Deep(ctx)
	}
	return nil, fmt.Errorf("unknown scan mode %q", mode)
}

// Fast probes candidates in concurrent batches. Batches run one after
// another; the first batch with any reachable candidate ends the scan,
// and within it the earliest candidate in list order wins.
func (s *Scanner) Fast(ctx context.Context) (*Outcome, error) {
	return s.run(ctx, ModeFast, s.candidates, s.fast)
}

// Deep probes candidates one at a time in order and stops at the first
// reachable one.
func (s *Scanner) Deep(ctx context.Context) (*Outcome, error) {
	return s.run(ctx, ModeDeep, s.candidates, s.deep)
}

// Connect validates a user-entered address, probes it once and stores it
// when it answers. Surrounding whitespace and one trailing slash are
// removed first.
func (s *Scanner) Connect(ctx context.Context, raw string) (*Outcome, error) {
	clean := NormalizeManualURL(raw)
	if clean == "" || !(strings.HasPrefix(clean, "http://") || strings.HasPrefix(clean, "https://")) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	out, err := s.run(ctx, ModeManual, []string{clean}, s.deep)
	if err != nil {
		return out, err
	}
	if out.Status == StatusNotFound {
		return out, fmt.Errorf("%w: %s", ErrUnreachable, clean)
	}
	return out, nil
}

// NormalizeManualURL trims whitespace and one trailing slash.
func NormalizeManualURL(raw string) string {
	return strings.TrimSuffix(strings.TrimSpace(raw), "/")
}

// Cancel stops the active session, if any, and reports whether there was
// one.
func (s *Scanner) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return false
	}
	s.active.cancel()
	s.active = nil
	return true
}

// Active returns the id and mode of the running session.
func (s *Scanner) Active() (id string, mode Mode, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", "", false
	}
	return s.active.id, s.active.mode, true
}

// probeFunc walks candidates and returns the winning URL ("" for none)
// and the number of probes issued.
type probeFunc func(ctx context.Context, sess *session, candidates []string) (found string, probed int)

// TryStart begins a fast or deep scan in the background unless one is
// already running, in which case it returns ErrScanActive. The check and
// the claim happen under one lock. done, if non-nil, receives the result.
func (s *Scanner) TryStart(parent context.Context, mode Mode, done func(*Outcome, error)) (string, error) {
	probe, err := s.probeFor(mode)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if s.active != nil {
		id := s.active.id
		s.mu.Unlock()
		cancel()
		return "", fmt.Errorf("%w: %s", ErrScanActive, id)
	}
	sess := &session{id: uuid.New().String(), mode: mode, cancel: cancel}
	s.active = sess
	s.mu.Unlock()

	go func() {
		defer cancel()
		out, err := s.execute(parent, ctx, sess, s.candidates, probe)
		if done != nil {
			done(out, err)
		}
	}()
	return sess.id, nil
}

func (s *Scanner) probeFor(mode Mode) (probeFunc, error) {
	switch mode {
	case ModeFast:
		return s.fast, nil
	case ModeDeep:
		return s.deep, nil
	}
	return nil, fmt.Errorf("unknown scan mode %q", mode)
}

// run claims the active slot, cancelling any previous session, and
// probes candidates.
func (s *Scanner) run(parent context.Context, mode Mode, candidates []string, probe probeFunc) (*Outcome, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sess := &session{id: uuid.New().String(), mode: mode, cancel: cancel}
	s.mu.Lock()
	if s.active != nil {
		s.logger.Info("cancelling previous scan", zap.String("session", s.active.id))
		s.active.cancel()
	}
	s.active = sess
	s.mu.Unlock()

	return s.execute(parent, ctx, sess, candidates, probe)
}

func (s *Scanner) execute(parent, ctx context.Context, sess *session, candidates []string, probe probeFunc) (*Outcome, error) {
	mode := sess.mode
	start := s.now()
	out := &Outcome{SessionID: sess.id, Mode: mode, Total: len(candidates)}
	record := &models.ScanSession{
		ID:        sess.id,
		Mode:      string(mode),
		Status:    "running",
		Total:     len(candidates),
		StartedAt: start.UTC().Format(time.RFC3339Nano),
	}
	if s.history != nil {
		if err := s.history.Create(ctx, record); err != nil {
			s.logger.Warn("record scan start", zap.Error(err))
		}
	}

	s.logger.Info("scan started",
		zap.String("session", sess.id),
		zap.String("mode", string(mode)),
		zap.Int("candidates", len(candidates)),
	)
	s.bus.PublishAsync(ctx, event.Event{
		Topic:  TopicScanStarted,
		Source: "recon",
		Payload: ScanStartedEvent{
			SessionID: sess.id, Mode: mode, Total: len(candidates), StartedAt: start.UTC(),
		},
	})

	found, probed := probe(ctx, sess, candidates)
	out.Probed = probed

	var runErr error
	switch {
	case ctx.Err() != nil:
		out.Status = StatusCancelled
	case found == "":
		out.Status = StatusNotFound
	default:
		out.FoundURL = found
		out.Status, runErr = s.persist(ctx, sess, found)
	}
	out.Duration = s.now().Sub(start)

	s.finish(parent, sess, out, record, runErr)
	return out, runErr
}

// persist stores found unless the session was cancelled or superseded.
// The check and the write happen under s.mu so Cancel cannot interleave.
func (s *Scanner) persist(ctx context.Context, sess *session, found string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil || s.active != sess {
		return StatusCancelled, nil
	}
	if err := s.store.SetBaseURL(ctx, found); err != nil {
		return StatusFailed, fmt.Errorf("save base url: %w", err)
	}
	return StatusConnected, nil
}

func (s *Scanner) finish(parent context.Context, sess *session, out *Outcome, record *models.ScanSession, runErr error) {
	s.mu.Lock()
	if s.active == sess {
		s.active = nil
	}
	s.mu.Unlock()

	if out.Status == StatusCancelled {
		out.FoundURL = ""
	}

	bg := context.WithoutCancel(parent)
	if s.history != nil {
		record.Status = string(out.Status)
		record.FoundURL = out.FoundURL
		record.Probed = out.Probed
		record.EndedAt = s.now().UTC().Format(time.RFC3339Nano)
		if runErr != nil {
			record.Error = runErr.Error()
		}
		if err := s.history.Finish(bg, record); err != nil {
			s.logger.Warn("record scan result", zap.Error(err))
		}
	}

	s.metrics.ObserveScan(string(out.Mode), string(out.Status), out.Duration)
	s.logger.Info("scan finished",
		zap.String("session", sess.id),
		zap.String("status", string(out.Status)),
		zap.String("found", out.FoundURL),
		zap.Int("probed", out.Probed),
		zap.Duration("elapsed", out.Duration),
	)
	s.bus.PublishAsync(bg, event.Event{Topic: TopicScanCompleted, Source: "recon", Payload: *out})
}

func (s *Scanner) fast(ctx context.Context, sess *session, candidates []string) (string, int) {
	total := len(candidates)
	probed := 0
	for start := 0; start < total; start += s.batchSize {
		if ctx.Err() != nil {
			return "", probed
		}
		end := min(start+s.batchSize, total)
		batch := candidates[start:end]

		hits := make([]bool, len(batch))
		var g errgroup.Group
		for i, c := range batch {
			g.Go(func() error {
				if err := s.wait(ctx); err != nil {
					return nil
				}
				hits[i] = s.checker.Check(ctx, c).Reachable
				return nil
			})
		}
		_ = g.Wait()
		probed += len(batch)

		s.progress(ctx, sess, batch[0], end, total)
		if ctx.Err() != nil {
			return "", probed
		}
		for i, ok := range hits {
			if ok {
				return batch[i], probed
			}
		}
	}
	return "", probed
}

func (s *Scanner) deep(ctx context.Context, sess *session, candidates []string) (string, int) {
	total := len(candidates)
	for i, c := range candidates {
		if ctx.Err() != nil {
			return "", i
		}
		if err := s.wait(ctx); err != nil {
			return "", i
		}
		reachable := s.checker.Check(ctx, c).Reachable
		s.progress(ctx, sess, c, i+1, total)
		if reachable && ctx.Err() == nil {
			return c, i + 1
		}
	}
	return "", total
}

func (s *Scanner) wait(ctx context.Context) error {
	if s.limiter == nil {
		return ctx.Err()
	}
	// Reserve instead of Wait: Wait fails early when the delay outlasts the
	// deadline, which would end the scan before ctx reports it.
	r := s.limiter.Reserve()
	d := r.Delay()
	if d == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Scanner) progress(ctx context.Context, sess *session, current string, done, total int) {
	s.logger.Debug("scan progress",
		zap.String("session", sess.id),
		zap.String("current", current),
		zap.Int("done", done),
		zap.Int("total", total),
	)
	// Synchronous so subscribers see Done in order and before the scan returns.
	_ = s.bus.Publish(ctx, event.Event{
		Topic:  TopicScanProgress,
		Source: "recon",
		Payload: Progress{
			SessionID: sess.id, Mode: sess.mode, Current: current, Done: done, Total: total,
		},
	})
}
