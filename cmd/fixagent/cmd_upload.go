package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an image, re-encoded as JPEG when needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		up, err := result(a.client.UploadImage(cmd.Context(), filepath.Base(args[0]), f))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.client.ImageURL(up.Path))
		return nil
	},
}
