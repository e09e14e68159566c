package main

import (
	"fmt"
	"time"

	"github.com/delvicier/fixagent/internal/backup"
	"github.com/spf13/cobra"
)

var backupOutput string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive the database and config file as tar.gz",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		if backupOutput == "" {
			backupOutput = fmt.Sprintf("fixagent-backup-%s.tar.gz", time.Now().Format("20060102-150405"))
		}
		if err := backup.Backup(cmd.Context(), cfg.DatabasePath(), configPath, backupOutput); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %s\n", backupOutput)
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "output file path (default: fixagent-backup-{timestamp}.tar.gz)")
}
