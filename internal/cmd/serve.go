package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/flowpump/flowpump/internal/config"
	"github.com/flowpump/flowpump/internal/core/pump"
	errwrap "github.com/flowpump/flowpump/internal/errors"
	"github.com/flowpump/flowpump/internal/observability"
	"github.com/flowpump/flowpump/internal/relay"
	"github.com/flowpump/flowpump/internal/server"
	"github.com/flowpump/flowpump/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// pumpHealthChecker reports unhealthy once the coordinator stops.
type pumpHealthChecker struct {
	pump *pump.Pump
}

func (c pumpHealthChecker) CheckHealth(ctx context.Context) error {
	if c.pump == nil || !c.pump.Stats().Running {
		return errwrap.NewServiceUnavailableError("pump coordinator is not running")
	}
	return nil
}

// buildSender picks the send operation: the configured upstream relay,
// or the loopback simulator when no upstream is set.
func buildSender(cfg *config.Config) pump.SendFunc {
	if cfg.Upstream.URL == "" {
		observability.ServerLogger.Warn("No upstream configured; payloads are echoed by the loopback simulator")
		sim := &relay.Simulator{}
		return sim.Send
	}

	r := &relay.Relay{
		URL:         cfg.Upstream.URL,
		Method:      cfg.Upstream.Method,
		ContentType: cfg.Upstream.ContentType,
		Client:      &http.Client{Timeout: cfg.Upstream.Timeout},
	}
	return r.Send
}

func pumpLimit(cfg *config.Config) pump.Limit {
	if cfg.Pump.SizePerPeriod == 0 {
		return pump.Adaptive()
	}
	return pump.Fixed(cfg.Pump.SizePerPeriod)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the pump and its HTTP API with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown (drains in-flight sends)
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (placeholder - restart recommended)

Shutdown stops the HTTP server, flushes the pump's queued backlog, waits
out in-flight sends, and flushes logs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logLevel := viper.GetString("logging.level")
		observability.InitServerLogger("flowpump", logLevel)

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration is invalid")
		}

		metricsPort := cfg.Metrics.Port
		if metricsPort == 0 {
			metricsPort = 9090
		}
		if err := observability.InitMetrics("flowpump", metricsPort); err != nil {
			observability.ServerLogger.Error("Failed to initialize metrics",
				zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", "flowpump"),
			zap.String("version", versionInfo.Version),
			zap.String("host", serverHost),
			zap.Int("port", serverPort),
			zap.Int("metrics_port", metricsPort),
			zap.Int64("size_per_period", cfg.Pump.SizePerPeriod),
			zap.Duration("period", cfg.Pump.Period))

		// Build and start the pump before accepting requests.
		p := pump.New(buildSender(cfg), pump.Config{
			Limit:        pumpLimit(cfg),
			Period:       cfg.Pump.Period,
			Workers:      cfg.Pump.Workers,
			PollInterval: cfg.Pump.PollInterval,
			Logger:       observability.ServerLogger,
		})
		if err := p.Start(); err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "pump startup failed")
		}
		handlers.SetPump(p)

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		hm.RegisterChecker("pump", pumpHealthChecker{pump: p})

		// Create server
		srv := server.New(serverHost, serverPort)

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Graceful shutdown handlers run in LIFO order: HTTP server first,
		// then the pump drain, then the log flush.
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Draining pump...")
			p.Stop()
			stats := p.Stats()
			observability.ServerLogger.Info("Pump drained",
				zap.Int64("completed_items", stats.CompletedItems),
				zap.Int64("failed_items", stats.FailedItems))
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					observability.ServerLogger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				observability.ServerLogger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			observability.ServerLogger.Info("Configuration reloaded successfully",
				zap.String("file", viper.ConfigFileUsed()))

			// Pump pacing parameters are fixed at startup; a restart is
			// required to apply new pump settings.

			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", serverHost),
				zap.Int("port", serverPort))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
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

	serveCmd.Flags().StringVar(&serverHost, "host", "127.0.0.1", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
