package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vbonduro/showroom/internal/companion"
	"github.com/vbonduro/showroom/internal/config"
	"github.com/vbonduro/showroom/internal/db"
	"github.com/vbonduro/showroom/internal/logging"
	"github.com/vbonduro/showroom/internal/service"
	"github.com/vbonduro/showroom/internal/tracing"
	"github.com/vbonduro/showroom/internal/web"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "showroom",
	Short:        "Dealership inventory cache and media service",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		shutdownTracing, err := tracing.Setup(ctx, "showroom", a.cfg.OTelEndpoint)
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				a.logger.Error("failed to flush traces", "error", err)
			}
		}()

		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		showroom := service.NewShowroomService(a.syncer, a.mediaStore, a.blobs, a.metrics, a.logger)
		uploads := companion.NewService(a.cache, a.blobs, a.metrics, a.logger)
		metricsHandler := promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})

		server := web.NewServer(showroom, uploads, a.blobs, metricsHandler, a.logger)
		if err := server.ListenAndServe(ctx, a.cfg.ListenAddr); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the inventory cache from the feed once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.syncer.Refresh(cmd.Context())
		if err != nil {
			return fmt.Errorf("refreshing inventory: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d vehicles, %d custom media\n", len(snap.Vehicles), len(snap.CustomMedia))
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger, cleanup, err := logging.New("showroom", cfg.LogLevel, cfg.LogFile)
		if err != nil {
			log.Printf("failed to initialize logger: %v", err)
			return err
		}
		defer cleanup()

		// Open applies the migrations.
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("migrating %s: %w", cfg.DBPath, err)
		}
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
		logger.Info("migrations applied", "db_path", cfg.DBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, syncCmd, migrateCmd)
}
