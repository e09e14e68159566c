package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/delvicier/fixagent/internal/api"
	"github.com/delvicier/fixagent/internal/config"
	"github.com/delvicier/fixagent/internal/event"
	"github.com/delvicier/fixagent/internal/metrics"
	"github.com/delvicier/fixagent/internal/pulse"
	"github.com/delvicier/fixagent/internal/recon"
	"github.com/delvicier/fixagent/internal/services"
	"github.com/delvicier/fixagent/internal/session"
	"github.com/delvicier/fixagent/internal/settings"
	"github.com/delvicier/fixagent/internal/store"
	"github.com/delvicier/fixagent/internal/transport"
	"github.com/delvicier/fixagent/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// app holds every wired component for one CLI invocation.
type app struct {
	cfg      *config.Settings
	logger   *zap.Logger
	db       *store.SQLiteStore
	bus      *event.Bus
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	settings *settings.Store
	history  *services.SQLiteScanRepository
	checker  *pulse.HTTPChecker
	scanner  *recon.Scanner
	client   *api.Client
	session  *session.Service
}

// loadSettings reads the configuration named by --config.
func loadSettings() (*config.Settings, error) {
	return config.Load(configPath)
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log, debugFlag)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, db: db}

	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	settingsRepo, err := services.NewSQLiteSettingsRepository(ctx, a.db)
	if err != nil {
		return err
	}
	a.history, err = services.NewSQLiteScanRepository(ctx, a.db)
	if err != nil {
		return err
	}

	a.bus = event.NewBus(a.logger)
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)

	a.settings, err = settings.Open(ctx, settingsRepo, a.logger, settings.WithPublisher(a.bus))
	if err != nil {
		return err
	}

	d := a.cfg.Discovery
	a.checker = pulse.NewHTTPChecker(d.ProbeTimeout, d.HealthPath,
		pulse.WithMetrics(a.metrics),
		pulse.WithUserAgent(version.UserAgent()),
	)
	candidates, err := recon.Candidates(recon.CandidateConfig{
		Scheme:       d.Scheme,
		Port:         d.Port,
		EmulatorHost: d.EmulatorHost,
		Subnets:      d.Subnets,
	})
	if err != nil {
		return err
	}
	a.scanner = recon.New(a.checker, a.settings, candidates,
		recon.Config{BatchSize: d.BatchSize, RateLimit: d.RateLimit},
		a.logger,
		recon.WithHistory(a.history),
		recon.WithEventBus(a.bus),
		recon.WithMetrics(a.metrics),
	)

	httpClient := transport.NewClient(a.settings, a.logger, transport.Options{Timeout: a.cfg.HTTP.Timeout})
	a.client = api.New(httpClient, a.settings, a.logger,
		api.WithUserAgent(version.UserAgent()),
		api.WithMetrics(a.metrics),
	)
	a.session = session.New(a.settings, a.client, a.logger)
	return nil
}

// Close releases the database and flushes the logger.
func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// result turns a non-2xx answer into a *session.StatusError.
func result[T any](res *api.Result[T], err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, &session.StatusError{Code: res.StatusCode, Problem: res.Problem}
	}
	if res.Body == nil {
		return nil, errors.New("empty response body")
	}
	return res.Body, nil
}
