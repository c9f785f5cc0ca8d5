package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/swdee/go-vidcount"
	"github.com/swdee/go-vidcount/config"
)

// newDownloadCommand creates the command fetching the model file ahead of
// running the other commands
func newDownloadCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download the model file when it is missing",
		Long: "Download the model file from --model-url or --model-repo when it is missing. " +
			"Without either the public YOLOv8 nano release locations are tried.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			urls := cfg.ModelURLs()

			if len(urls) == 0 {
				urls = vidcount.DefaultModelURLs
			}

			return ensureModel(ctx, cfg, newLogger(cfg), urls)
		},
	}
}
