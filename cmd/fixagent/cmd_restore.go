package main

import (
	"fmt"

	"github.com/delvicier/fixagent/internal/backup"
	"github.com/spf13/cobra"
)

var (
	restoreInput   string
	restoreDataDir string
	restoreForce   bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore files from a backup archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		if restoreDataDir == "" {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}
			restoreDataDir = cfg.DataDir
		}
		files, err := backup.Restore(cmd.Context(), restoreInput, restoreDataDir, restoreForce)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", f)
		}
		return nil
	},
}

func init() {
	f := restoreCmd.Flags()
	f.StringVarP(&restoreInput, "input", "i", "", "backup archive to restore (required)")
	f.StringVar(&restoreDataDir, "data-dir", "", "target directory (default: data_dir from config)")
	f.BoolVar(&restoreForce, "force", false, "overwrite existing files")
	_ = restoreCmd.MarkFlagRequired("input")
}
