package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/swdee/go-vidcount"
	"github.com/swdee/go-vidcount/capture"
	"github.com/swdee/go-vidcount/config"
	"github.com/swdee/go-vidcount/logging"
	"github.com/swdee/go-vidcount/render"
	"github.com/swdee/go-vidcount/sampler"
	"github.com/swdee/go-vidcount/session"
	"github.com/swdee/go-vidcount/store"
	"github.com/swdee/go-vidcount/tracker"
	"gocv.io/x/gocv"
)

// countOptions are the flags of the count command
type countOptions struct {
	// outDir receives annotated JPEGs of each sampled frame when set
	outDir string
	// save stores the report in the database
	save   bool
	pretty bool
}

func newCountCommand(cfg *config.Config) *cobra.Command {

	o := &countOptions{}

	cmd := &cobra.Command{
		Use:   "count <video file or URL>",
		Short: "Process one video and print the JSON report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd.Context(), cfg, o, args[0])
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&o.outDir, "out", "o", "", "Directory to write annotated frames to")
	fs.BoolVar(&o.save, "save", false, "Store the report in the database")
	fs.BoolVar(&o.pretty, "pretty", false, "Indent the JSON report")

	return cmd
}

func runCount(ctx context.Context, cfg *config.Config, o *countOptions, source string) error {

	log := newLogger(cfg)

	if ctx == nil {
		ctx = context.Background()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := ensureModel(ctx, cfg, log, cfg.ModelURLs()); err != nil {
		return err
	}

	dc, err := detectorConfig(cfg)

	if err != nil {
		return err
	}

	det, err := vidcount.NewDetector(dc)

	if err != nil {
		log.Error("Error loading model", logging.Err(err))
		return err
	}

	defer det.Close()

	opts := cfg.SessionOptions()
	opts.Logger = log

	if o.outDir != "" {
		if err := os.MkdirAll(o.outDir, 0o755); err != nil {
			return fmt.Errorf("error creating output directory: %w", err)
		}

		opts.Observer = annotateFrames(o.outDir)
	}

	proc, err := session.NewProcessor(opts)

	if err != nil {
		return err
	}

	rep, err := proc.Process(ctx, source, capture.Opener(source), det)

	if err != nil {
		log.Error("Error processing video", slog.String("source", source), logging.Err(err))
		return err
	}

	if o.save && cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)

		if err != nil {
			return err
		}

		defer st.Close()

		rec, err := st.Save(ctx, source, rep)

		if err != nil {
			return err
		}

		log.Info("Report saved", slog.String("id", rec.ID))
	}

	enc := json.NewEncoder(os.Stdout)

	if o.pretty {
		enc.SetIndent("", "  ")
	}

	return enc.Encode(rep)
}

// annotateFrames returns an observer writing each sampled frame with the
// tracked objects drawn on it to dir
func annotateFrames(dir string) session.Observer {

	ann := render.NewAnnotator(90)

	return func(smp sampler.Sample, dets []tracker.Detection, objs []tracker.TrackedObject) error {

		img, err := capture.Mat(smp.Frame)

		if err != nil {
			return err
		}

		// draw on a copy as the frame belongs to the capture
		out := img.Clone()
		defer out.Close()

		ann.Draw(&out, objs)

		file := filepath.Join(dir, fmt.Sprintf("frame-%06d.jpg", smp.Index))

		if ok := gocv.IMWrite(file, out); !ok {
			return fmt.Errorf("error writing %s", file)
		}

		return nil
	}
}
