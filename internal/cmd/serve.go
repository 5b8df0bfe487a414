package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/shelfgate/shelfgate/internal/errors"
	"github.com/shelfgate/shelfgate/internal/observability"
	"github.com/shelfgate/shelfgate/internal/server"
	"github.com/shelfgate/shelfgate/internal/server/handlers"
	"github.com/shelfgate/shelfgate/internal/upstream"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	Long: `Start the HTTP gateway with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (placeholder - restart recommended)

Shutdown drains in-flight budget settlements, stops the HTTP server,
closes the state store and flushes logs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig

		observability.InitServerLogger("shelfgate", cfg.Logging.Level)
		logger := observability.ServerLogger

		if err := cfg.ValidateUpstream(); err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Upstream configuration incomplete", err)
		}

		host := serverHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := serverPort
		if port == 0 {
			port = cfg.Server.Port
		}

		logger.Info("Initializing gateway",
			zap.String("version", versionInfo.Version),
			zap.String("state_driver", cfg.State.Driver),
			zap.String("host", host),
			zap.Int("port", port))

		comps, err := buildComponents(cmd.Context(), cfg, logger)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "state store initialization failed")
		}

		querier := &upstream.Client{
			URL:         cfg.Upstream.URL,
			AccessToken: cfg.Upstream.AccessToken,
			HTTPClient:  &http.Client{Timeout: cfg.Upstream.Timeout},
		}
		orchestrator := comps.buildOrchestrator(cfg, querier, logger)

		health := handlers.NewHealthManager(versionInfo.Version)
		health.RegisterChecker("state_store", handlers.CheckerFunc(comps.store.Ping))

		srv := server.New(host, port, server.Dependencies{
			Orchestrator: orchestrator,
			Health:       health,
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		// Handler 2: Close state store
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Closing state store...")
			if err := comps.store.Close(); err != nil {
				logger.Warn("State store close returned error", zap.Error(err))
			}
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: config reload requires a restart to take effect")
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server...",
				zap.String("host", host),
				zap.Int("port", port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides config)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "server port (overrides config)")
}
