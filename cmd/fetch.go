package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborview-health/intake-cli/internal/inbox"
)

var fetchDir string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pull new transcripts from the FTP inbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		dest := fetchDir
		if dest == "" {
			dest = cfg.Inbox.LocalDir
		}
		if dest == "" {
			dest = "transcripts"
		}

		fetched, err := inbox.Fetch(ctx, cfg.Inbox, dest)
		if err != nil {
			return err
		}

		if len(fetched) == 0 {
			fmt.Fprintln(os.Stderr, "No new transcripts.")
			return nil
		}

		for _, path := range fetched {
			fmt.Println(path)
		}
		zap.L().Info("fetch complete",
			zap.Int("downloaded", len(fetched)),
			zap.String("dest", dest),
		)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchDir, "dir", "", "local destination directory (default from config)")
	rootCmd.AddCommand(fetchCmd)
}
