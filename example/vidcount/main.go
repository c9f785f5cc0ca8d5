package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/swdee/go-vidcount"
	"github.com/swdee/go-vidcount/config"
	"github.com/swdee/go-vidcount/logging"
)

func main() {

	cmd := newRootCommand()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand creates the vidcount command with its sub commands.  Settings
// are read from .env and the environment first so flags take precedence.
func newRootCommand() *cobra.Command {

	cfg := config.Default()
	envErr := cfg.LoadEnv(".env")

	cmd := &cobra.Command{
		Use:           "vidcount",
		Short:         "Count unique objects in videos with YOLOv8 and centroid tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			return cfg.Validate()
		},
	}

	cfg.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(newCountCommand(&cfg))
	cmd.AddCommand(newServerCommand(&cfg))
	cmd.AddCommand(newDownloadCommand(&cfg))

	return cmd
}

// newLogger returns the logger for the configured level, falling back to info
func newLogger(cfg *config.Config) *slog.Logger {

	log, err := logging.New(cfg.LogLevel, os.Stderr)

	if err != nil {
		log, _ = logging.New("info", os.Stderr)
		log.Warn("Invalid log level, using info", slog.String("level", cfg.LogLevel))
	}

	return log
}

// ensureModel downloads the model file from the configured source when it is
// missing
func ensureModel(ctx context.Context, cfg *config.Config, log *slog.Logger, urls []string) error {

	downloaded, err := vidcount.EnsureModel(ctx, cfg.ModelFile, vidcount.ModelSource{
		URLs:  urls,
		Token: cfg.ModelToken,
	})

	if err != nil {
		log.Error("Error ensuring model is present", slog.String("model", cfg.ModelFile), logging.Err(err))
		return err
	}

	if downloaded {
		log.Info("Model downloaded", slog.String("model", cfg.ModelFile))
	}

	return nil
}

// detectorConfig builds the detector settings from the config
func detectorConfig(cfg *config.Config) (vidcount.DetectorConfig, error) {

	dc := vidcount.DefaultDetectorConfig()
	dc.ModelFile = cfg.ModelFile
	dc.ModelName = cfg.ModelName
	dc.InputSize = cfg.InputSize
	dc.ConfThreshold = float32(cfg.ConfThreshold)
	dc.NMSThreshold = float32(cfg.NMSThreshold)

	if cfg.LabelsFile != "" {
		labels, err := vidcount.LoadLabels(cfg.LabelsFile)

		if err != nil {
			return dc, fmt.Errorf("error loading labels: %w", err)
		}

		dc.Labels = labels
	}

	return dc, nil
}
