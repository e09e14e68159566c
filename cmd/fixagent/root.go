package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/delvicier/fixagent/internal/session"
	"github.com/delvicier/fixagent/internal/version"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:     "fixagent",
	Short:   "Client agent for the FixAgent repair-shop backend",
	Version: version.Short(),
	Long: `fixagent finds the FixAgent backend on the local network, keeps the
connection settings, and signs API requests with the stored token.`,
	Example: `  fixagent scan
  fixagent scan --deep
  fixagent connect http://192.168.1.20:4000
  fixagent login --user admin
  fixagent orders list
  fixagent agent`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to configuration file (YAML)")
	pf.BoolVar(&debugFlag, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		versionCmd,
		statusCmd,
		routeCmd,
		scanCmd,
		scansCmd,
		connectCmd,
		loginCmd,
		logoutCmd,
		setupCmd,
		recoverCmd,
		profileCmd,
		uploadCmd,
		agentCmd,
		backupCmd,
		restoreCmd,
	)
	for _, rc := range resourceCommands() {
		rootCmd.AddCommand(rc)
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", session.Message(err))
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	},
}
