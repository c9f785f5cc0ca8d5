package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/swdee/go-vidcount"
	"github.com/swdee/go-vidcount/config"
	"github.com/swdee/go-vidcount/logging"
	"github.com/swdee/go-vidcount/metrics"
	"github.com/swdee/go-vidcount/server"
	"github.com/swdee/go-vidcount/store"
)

func newServerCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the detection HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cfg)
		},
	}
}

func runServer(cfg *config.Config) error {

	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureModel(ctx, cfg, log, cfg.ModelURLs()); err != nil {
		return err
	}

	dc, err := detectorConfig(cfg)

	if err != nil {
		return err
	}

	// create new pool
	pool, err := vidcount.NewPool(cfg.PoolSize, dc)

	if err != nil {
		log.Error("Error creating detector pool", logging.Err(err))
		return err
	}

	defer pool.Close()

	counters := metrics.NewCounters()

	opts := cfg.SessionOptions()
	opts.Logger = log
	opts.Metrics = counters

	svc, err := vidcount.NewService(pool, opts)

	if err != nil {
		return err
	}

	srvOpts := []server.Option{
		server.WithLogger(log),
		server.WithCounters(counters),
	}

	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)

		if err != nil {
			log.Error("Error opening report database", slog.String("path", cfg.DBPath), logging.Err(err))
			return err
		}

		defer st.Close()

		srvOpts = append(srvOpts, server.WithReports(st))
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.New(svc, srvOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info("Server listening",
			slog.String("addr", httpSrv.Addr),
			slog.String("model", svc.Model()),
			slog.Int("pool", pool.Size()),
		)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", logging.Err(err))
			return err
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return httpSrv.Shutdown(shutdownCtx)
}
