package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/polisai/errorflow/pkg/catalog"
	"github.com/polisai/errorflow/pkg/config"
	"github.com/polisai/errorflow/pkg/disclosure"
	"github.com/polisai/errorflow/pkg/generator"
	"github.com/polisai/errorflow/pkg/history"
	"github.com/polisai/errorflow/pkg/logging"
	"github.com/polisai/errorflow/pkg/server"
	"github.com/polisai/errorflow/pkg/telemetry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the errorflow HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML)")
	cmd.Flags().StringP("listen", "l", "", "Listen address, overrides server.listen_addr")
	cmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().String("environment", "", "Deployment environment (development, staging, production)")
	cmd.Flags().Duration("latency", 0, "Simulated latency before each error is generated")
	cmd.Flags().Int("rate-limit", 0, "Error generations allowed per second (0 disables)")

	return cmd
}

// loadServeConfig loads the configuration file and applies flag overrides.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Server.ListenAddr, _ = flags.GetString("listen")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("environment") {
		cfg.Environment, _ = flags.GetString("environment")
	}
	if flags.Changed("latency") {
		cfg.Server.SimulatedLatency, _ = flags.GetDuration("latency")
	}
	if flags.Changed("rate-limit") {
		cfg.Server.RateLimit.RequestsPerSecond, _ = flags.GetInt("rate-limit")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadCatalog returns the built-in catalog or the one at path.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(path)
}

// loadPolicy returns the built-in disclosure policy or the one at path.
func loadPolicy(ctx context.Context, path string) (*disclosure.Policy, error) {
	if path == "" {
		return disclosure.NewPolicy(ctx, disclosure.Options{})
	}
	return disclosure.LoadPolicyFile(ctx, path)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := telemetry.SetupProvider(ctx, cfg.Telemetry, cfg.Environment)
	if err != nil {
		logger.Error("Failed to set up tracing", "error", err)
		return err
	}
	if tracing.Enabled() {
		logger.Info("Exporting traces", "endpoint", cfg.Telemetry.OTLPEndpoint, "sample_ratio", cfg.Telemetry.SampleRatio)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tracing.Shutdown(flushCtx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		logger.Error("Failed to load catalog", "error", err)
		return err
	}
	gen, err := generator.New(cat)
	if err != nil {
		return err
	}

	policy, err := loadPolicy(ctx, cfg.Disclosure.PolicyPath)
	if err != nil {
		logger.Error("Failed to load disclosure policy", "error", err)
		return err
	}

	srv, err := server.New(server.Options{
		Generator:        gen,
		History:          history.New(cfg.History.Capacity),
		Policy:           policy,
		Logger:           logger,
		TracerProvider:   tracing.TracerProvider(),
		Environment:      cfg.Environment,
		SimulatedLatency: cfg.Server.SimulatedLatency,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		RateLimit:        cfg.Server.RateLimit,
		TLS:              cfg.Server.TLS,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", "error", err)
		}
		<-errCh
	}

	logger.Info("Server stopped")
	return nil
}
