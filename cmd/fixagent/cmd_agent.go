package main

import (
	"context"
	"time"

	"github.com/delvicier/fixagent/internal/event"
	"github.com/delvicier/fixagent/internal/pulse"
	"github.com/delvicier/fixagent/internal/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the connectivity monitor and the local HTTP API",
	Long: `agent keeps probing the stored backend address. After repeated failures
it runs a fast scan to find the backend again. The local API on agent.addr
exposes status, scan control and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		logger := a.logger

		opts := []pulse.MonitorOption{
			pulse.WithEventBus(a.bus),
			pulse.WithMonitorMetrics(a.metrics),
		}
		if a.cfg.Monitor.Rescan {
			opts = append(opts, pulse.WithRescan(func(ctx context.Context) error {
				_, err := a.scanner.Fast(ctx)
				return err
			}))
		}
		monitor := pulse.NewMonitor(a.settings, a.checker, pulse.MonitorConfig{
			Interval:         a.cfg.Monitor.Interval,
			FailureThreshold: a.cfg.Monitor.FailureThreshold,
		}, logger, opts...)

		unsub := a.bus.SubscribeAll(func(_ context.Context, e event.Event) {
			logger.Debug("event", zap.String("topic", e.Topic), zap.String("source", e.Source))
		})
		defer unsub()

		srv := server.New(a.cfg.Agent.Addr, server.Deps{
			Scanner:  a.scanner,
			Settings: a.settings,
			Monitor:  monitor,
			History:  a.history,
			Metrics:  promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		}, logger)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()
		go monitor.Run(ctx)

		logger.Info("fixagent agent ready", zap.String("addr", a.cfg.Agent.Addr))

		select {
		case <-ctx.Done():
			logger.Info("received shutdown signal")
		case err := <-errCh:
			if err != nil {
				return err
			}
		}

		a.scanner.Cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		logger.Info("fixagent agent stopped")
		return nil
	},
}
