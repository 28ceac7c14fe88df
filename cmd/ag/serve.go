package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/alfredjeanlab/agreements/internal/config"
	"github.com/alfredjeanlab/agreements/internal/events"
	"github.com/alfredjeanlab/agreements/internal/server"
	"github.com/alfredjeanlab/agreements/internal/session"
	"github.com/alfredjeanlab/agreements/internal/store"
	"github.com/alfredjeanlab/agreements/internal/store/local"
	"github.com/alfredjeanlab/agreements/internal/store/postgres"
	agsync "github.com/alfredjeanlab/agreements/internal/sync"
)

// reaperInterval is how often idle sessions and expired unlock flags are swept.
const reaperInterval = time.Minute

// openBackend selects Postgres when configured and the local JSON store
// otherwise. The flag store follows the backend.
func openBackend(cfg *config.Config, logger *slog.Logger) (store.Store, store.FlagStore, error) {
	if cfg.Demo() {
		s, err := local.New(cfg.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Warn("demo mode: AGREEMENTS_DATABASE_URL not set, submissions are stored locally", "path", s.Path())
		return s, local.NewFlags(), nil
	}

	pg, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg, nil
}

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the agreements HTTP and gRPC servers",
	GroupID: "system",
	// No client connection is needed to serve.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		sections, err := config.LoadSections(cfg.SectionsFile)
		if err != nil {
			return err
		}

		backend, flags, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				backend.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (AGREEMENTS_NATS_URL not set)")
		}

		registry := session.New(session.Config{
			Sections:      sections,
			Backend:       backend,
			Flags:         flags,
			Publisher:     publisher,
			SessionTTL:    cfg.SessionTTL,
			FrameInterval: cfg.FrameInterval,
			MaxAttempts:   cfg.MaxAttempts,
			Logger:        logger,
		})
		registry.StartReaper(reaperInterval)

		agreementServer := server.NewAgreementServer(registry, backend, cfg.IPSalt)
		grpcServer, healthServer := agreementServer.NewGRPCServer(cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			registry.Stop()
			publisher.Close()
			backend.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           agreementServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var scheduler *agsync.Scheduler
		if cfg.SyncInterval > 0 && cfg.SyncS3Bucket != "" {
			dest, err := agsync.NewS3Destination(
				context.Background(),
				cfg.SyncS3Bucket,
				cfg.SyncS3Key,
				cfg.SyncS3Region,
				cfg.SyncS3Endpoint,
				cfg.SyncS3Snapshots,
			)
			if err != nil {
				logger.Error("failed to create S3 sync destination", "err", err)
			} else {
				scheduler = agsync.NewScheduler(backend, []agsync.Destination{dest}, cfg.SyncInterval, logger)
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval, "destination", dest.String())
			}
		}

		logger.Info("agreements server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"sections", len(sections),
			"demo", cfg.Demo(),
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		registry.Stop()
		if scheduler != nil {
			// Final upload so the backup includes the last submissions.
			if _, err := scheduler.SyncOnce(shutdownCtx); err != nil {
				logger.Error("final sync failed", "err", err)
			}
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := backend.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
