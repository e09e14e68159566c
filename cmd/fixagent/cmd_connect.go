package main

import (
	"context"
	"fmt"

	"github.com/delvicier/fixagent/internal/event"
	"github.com/delvicier/fixagent/internal/recon"
	"github.com/delvicier/fixagent/internal/session"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored connection and probe the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		snap := a.settings.Snapshot()
		out := map[string]any{
			"connection": snap.Redacted(),
			"configured": snap.Configured(),
		}
		if snap.Configured() {
			out["probe"] = a.checker.Check(ctx, snap.BaseURL)
		}
		return printJSON(cmd, out)
	},
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Print the screen a client would open on startup",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		route, err := a.session.Route(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), route)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), session.Message(err))
		}
		return nil
	},
}

var scanDeep bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Search the local network for the backend",
	Long: `scan probes the emulator host and every host of the configured subnets.
The default fast mode probes in concurrent batches; --deep probes one
candidate at a time. Ctrl-C cancels without changing the stored address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		unsub := a.bus.Subscribe(recon.TopicScanProgress, func(_ context.Context, e event.Event) {
			if p, ok := e.Payload.(recon.Progress); ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "\r[%d/%d] %-40s", p.Done, p.Total, p.Current)
			}
		})
		defer unsub()

		mode := recon.ModeFast
		if scanDeep {
			mode = recon.ModeDeep
		}
		out, err := a.scanner.Scan(ctx, mode)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		switch out.Status {
		case recon.StatusConnected:
			fmt.Fprintf(cmd.OutOrStdout(), "connected: %s\n", out.FoundURL)
		case recon.StatusNotFound:
			return fmt.Errorf("no server found after %d probes; try 'fixagent connect <url>'", out.Probed)
		case recon.StatusCancelled:
			fmt.Fprintln(cmd.OutOrStdout(), "scan cancelled")
		}
		return nil
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect <url>",
	Short: "Probe an address and store it when the backend answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.scanner.Connect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "connected: %s\n", out.FoundURL)
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanDeep, "deep", false, "probe candidates one at a time")
}
