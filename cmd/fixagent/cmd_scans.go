package main

import (
	"fmt"

	"github.com/delvicier/fixagent/internal/recon"
	"github.com/delvicier/fixagent/internal/services"
	"github.com/spf13/cobra"
)

var (
	scansLimit  int
	scansFormat string
)

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "Show discovery scan history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scansFormat != "json" && scansFormat != "csv" {
			return fmt.Errorf("--format must be json or csv")
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.history.List(cmd.Context(), services.ListOptions{Limit: scansLimit})
		if err != nil {
			return err
		}
		if scansFormat == "csv" {
			return recon.WriteHistoryCSV(cmd.OutOrStdout(), res.Items)
		}
		return printJSON(cmd, res)
	},
}

func init() {
	scansCmd.Flags().IntVarP(&scansLimit, "limit", "n", 20, "number of sessions to show")
	scansCmd.Flags().StringVar(&scansFormat, "format", "json", "output format: json, csv")
}
