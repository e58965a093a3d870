package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/star/orbitscreen/internal/config"
	"github.com/star/orbitscreen/internal/logging"
	"github.com/star/orbitscreen/internal/propagation"
	"github.com/star/orbitscreen/internal/tle"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "orbitscreen",
	Short: "Satellite close-approach screening and orbit determination",
	Long: "orbitscreen propagates TLE catalogs, screens them for close approaches, " +
		"predicts ground-site visibility and fits orbits to observations.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(screenCmd)
	rootCmd.AddCommand(statesCmd)
	rootCmd.AddCommand(odCmd)
	rootCmd.AddCommand(diagCmd)
}

// setup loads configuration, builds the logger and initializes propagation.
// One-shot commands log to stderr so their output stays clean.
func setup(logToStdout bool) (config.Config, *slog.Logger, error) {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg, err := config.Load(configPath, bootstrap)
	if err != nil {
		return cfg, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	out := os.Stderr
	if logToStdout {
		out = os.Stdout
	}
	logger, err := logging.New(out, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return cfg, nil, err
	}

	if err := propagation.Init(propagation.Config{Gravity: cfg.Propagation.Gravity, Workers: cfg.Propagation.Workers}); err != nil {
		return cfg, nil, fmt.Errorf("initializing propagation: %w", err)
	}
	return cfg, logger, nil
}

// loadCatalog reads a TLE file, falling back to the configured catalog file.
func loadCatalog(path string, cfg config.Config, logger *slog.Logger) (*tle.Catalog, error) {
	if path == "" {
		path = cfg.Catalog.File
	}
	if path == "" {
		return nil, fmt.Errorf("no catalog file given (--catalog or catalog.file)")
	}
	store := tle.NewStore()
	if _, err := tle.NewLoader(store, nil, nil, 0, logger).LoadFile(path); err != nil {
		return nil, err
	}
	return store.Get(), nil
}
