package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"mangrobe.dev/streamsource/config"
	"mangrobe.dev/streamsource/connectors/print"
	"mangrobe.dev/streamsource/runner"
	"mangrobe.dev/streamsource/source"
	"mangrobe.dev/streamsource/storage/locations"
	"mangrobe.dev/streamsource/util/httpu"
)

func run(ctx context.Context, cfg *config.Config, metricsAddr string, out io.Writer) error {
	var location locations.StorageLocation
	if cfg.CheckpointsEnabled() {
		var err error
		location, err = locations.New(ctx, cfg.CheckpointLocation, cfg.S3.Options())
		if err != nil {
			return fmt.Errorf("checkpoint location: %w", err)
		}
	}

	r := runner.New(runner.Params{
		Source: source.New(source.Params{
			Addr:              cfg.Addr,
			Table:             cfg.TableID(),
			DiscoveryInterval: time.Duration(cfg.DiscoveryInterval),
			IdleBackoff:       time.Duration(cfg.IdleBackoff),
			QuarantineBackoff: time.Duration(cfg.QuarantineBackoff),
			RequestTimeout:    time.Duration(cfg.RequestTimeout),
			PageSize:          cfg.PageSize,
			MaxAttempts:       cfg.MaxAttempts,
		}),
		ReaderCount:         cfg.ReaderCount,
		Output:              print.NewSink(out),
		Location:            location,
		CheckpointInterval:  time.Duration(cfg.CheckpointInterval),
		CheckpointRetention: cfg.CheckpointRetention,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		listener, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		slog.Info("serving metrics", "addr", listener.Addr().String())
		server := httpu.NewServer(promhttp.Handler())
		g.Go(func() error {
			if err := server.Serve(gctx, listener); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server stopped: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		// The metrics server stops along with the runner
		defer cancel()
		return r.Run(gctx)
	})

	return g.Wait()
}
