package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/orbitscreen/internal/alerts"
	"github.com/star/orbitscreen/internal/api"
	"github.com/star/orbitscreen/internal/auth"
	"github.com/star/orbitscreen/internal/cache"
	"github.com/star/orbitscreen/internal/config"
	"github.com/star/orbitscreen/internal/metrics"
	"github.com/star/orbitscreen/internal/propagation"
	"github.com/star/orbitscreen/internal/stream"
	"github.com/star/orbitscreen/internal/tle"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the screening service",
	Long: "serve keeps the TLE catalog fresh, screens it for close approaches on a schedule, " +
		"publishes alerts and exposes the HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(true)
		if err != nil {
			return err
		}
		return serve(cfg, logger)
	},
}

func serve(cfg config.Config, logger *slog.Logger) error {
	store := tle.NewStore()
	var fetcher *tle.Fetcher
	if cfg.Catalog.Fetch && cfg.Catalog.File == "" {
		fetcher = tle.NewFetcher(cfg.Catalog.SourceURL, logger, cfg.Catalog.ExtraURLs...)
	}
	loader := tle.NewLoader(store, tle.NewCache(cfg.Catalog.CacheDir, cfg.Catalog.CacheMaxFiles), fetcher, cfg.Catalog.MaxAge(), logger)

	// A configured file wins; otherwise start from the disk cache and let the
	// refresh loop replace it.
	if cfg.Catalog.File != "" {
		if _, err := loader.LoadFile(cfg.Catalog.File); err != nil {
			return fmt.Errorf("loading catalog file: %w", err)
		}
	} else if _, err := loader.LoadCached(); err != nil {
		logger.Info("no TLE cache found, starting without TLE data", "error", err)
	}

	metrics.RegisterGaugeFunc("orbitscreen_catalog_age_seconds", "Age of the current TLE catalog.", store.AgeSeconds)
	metrics.RegisterGaugeFunc("orbitscreen_catalog_entries", "Entries in the current TLE catalog.", func() float64 {
		if c := store.Get(); c != nil {
			return float64(c.Len())
		}
		return 0
	})

	broker := stream.NewBroker(stream.Config{
		MaxConcurrentPerIP: cfg.Server.StreamMaxPerIP,
		KeepaliveInterval:  time.Duration(cfg.Server.StreamKeepaliveSeconds) * time.Second,
		TrustProxy:         cfg.Server.TrustProxy,
	}, logger)

	var sink alerts.Publisher = alerts.NewLogPublisher(logger)
	if cfg.Alerts.NATSURL != "" {
		nc, err := alerts.ConnectNATS(alerts.NATSConfig{
			URL:            cfg.Alerts.NATSURL,
			SubjectPrefix:  cfg.Alerts.Subject,
			Name:           "orbitscreen",
			ReconnectWait:  2 * time.Second,
			MaxReconnects:  -1,
			ConnectTimeout: 5 * time.Second,
		}, logger)
		if err != nil {
			return err
		}
		sink = nc
	}
	pub := alerts.Multi{sink, broker}
	defer pub.Close()

	pool := propagation.NewWorkerPool(cfg.Propagation.Workers, logger)
	screener := cache.NewScreener(cache.Config{
		Threshold: cfg.Screening.ThresholdKm,
		Horizon:   cfg.Screening.Horizon(),
		Interval:  cfg.Screening.Interval(),
	}, store, cache.NewReportCache(cfg.Screening.ReportCacheSize, logger), pool, pub, logger)
	defer screener.Close()

	srv := api.NewServer(api.Config{
		Addr: cfg.Server.Addr,
		Auth: auth.Config{
			Enabled: cfg.Server.AuthEnabled,
			Token:   cfg.Server.AuthToken,
		},
		TrustProxy:       cfg.Server.TrustProxy,
		DefaultThreshold: cfg.Screening.ThresholdKm,
	}, api.Deps{
		Store:    store,
		Screener: screener,
		Broker:   broker,
		Pool:     pool,
	}, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if fetcher != nil {
		go loader.Run(ctx, time.Minute)
	}
	go screener.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "auth_enabled", cfg.Server.AuthEnabled, "tle_fetch_enabled", fetcher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	logger.Info("shutting down server...")

	// Streams end first so Shutdown does not wait on them.
	broker.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
