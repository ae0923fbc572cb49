package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"atlas-gw/atlas/pkg/activity"
	"atlas-gw/atlas/pkg/cli"
	"atlas-gw/atlas/pkg/config"
	"atlas-gw/atlas/pkg/console"
	"atlas-gw/atlas/pkg/events"
	"atlas-gw/atlas/pkg/health"
	"atlas-gw/atlas/pkg/health/probe"
	"atlas-gw/atlas/pkg/limits/ratelimit"
	"atlas-gw/atlas/pkg/optimize"
	"atlas-gw/atlas/pkg/quota"
	"atlas-gw/atlas/pkg/registry"
	"atlas-gw/atlas/pkg/routing"
	"atlas-gw/atlas/pkg/server"
	"atlas-gw/atlas/pkg/storage"
	"atlas-gw/atlas/pkg/telemetry/logging"
	"atlas-gw/atlas/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Atlas routing engine",
	Long: `Start the routing engine with the specified configuration.

The engine loads the endpoint registry, begins health tracking, and
serves the management console on the configured address.

Examples:
  # Start with default config
  atlas run

  # Start with custom config
  atlas run --config /etc/atlas/atlas.yaml

  # Override listen address
  atlas run --listen 0.0.0.0:8181

  # Validate config without starting
  atlas run --dry-run`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the engine")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger := logging.New(cfg.Telemetry.Logging, nil)
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Atlas v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	// Endpoint registry.
	reg, err := registry.NewFromConfig(cfg.Endpoints, logger)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	fmt.Printf("✓ Registry loaded (%d endpoints)\n", reg.Len())

	// Metrics. The collector is handed to every component that produces
	// a measurement; the handler is mounted by the server below.
	var collector *metrics.Collector
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Telemetry.Metrics, nil)
		metricsHandler = collector.Handler()
	}

	// Health monitor.
	monitor := health.NewMonitor(cfg.Monitor, logger)
	if collector != nil {
		monitor.SetMetrics(collector)
	}

	// Quota persistence and tracking.
	backend, err := newStorageBackend(cfg.Storage)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer backend.Close()

	quotaTracker := quota.NewTracker(backend, logger)
	quotaTracker.Configure(reg.All())
	if err := quotaTracker.Restore(ctx); err != nil {
		logger.Warn("failed to restore quota usage", "error", err)
	}
	quotaTracker.Start(cfg.Storage.FlushInterval)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		quotaTracker.Stop(stopCtx)
	}()

	// Rate limiting and selection.
	limiter := ratelimit.NewLimiter(cfg.RateLimit, logger)
	selector := routing.NewSelector(cfg.Routing, reg, monitor, quotaTracker, limiter, logger)
	defer selector.Close()
	if collector != nil {
		selector.SetMetrics(collector)
	}

	// Batch optimizer.
	probeTimeout := cfg.Optimizer.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = cfg.Monitor.ProbeTimeout
	}
	dispatcher := probe.NewDispatcher(probeTimeout)
	optimizer := optimize.New(cfg.Optimizer, reg, monitor, dispatcher, selector, logger)
	if collector != nil {
		optimizer.SetMetrics(collector)
	}

	// Activity tracking and the console event feed.
	bus := events.NewBus()
	defer bus.Close()
	tracker := activity.NewTracker(cfg.Monitor.RecentHistorySize, cfg.Monitor.ThroughputWindow, monitor, quotaTracker, bus, logger)
	if collector != nil {
		tracker.SetMetrics(collector)
	}

	// Configuration hot reload.
	if cfg.Reload.Enabled {
		watcher, err := config.NewWatcher(cfgFile, cfg.Reload.Debounce, logger)
		if err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		} else {
			go func() {
				_ = watcher.Watch(ctx, func() error {
					fresh, err := config.LoadConfigWithEnvOverrides(cfgFile)
					if err != nil {
						return err
					}
					if err := reg.ReplaceFromConfig(fresh.Endpoints); err != nil {
						return err
					}
					quotaTracker.Configure(reg.All())
					logger.Info("endpoint registry reloaded", "endpoints", reg.Len())
					return nil
				})
			}()
			defer watcher.Stop()
		}
	}

	// Console and HTTP server.
	con := console.New(reg, monitor, tracker, optimizer, bus, logger)
	srv := server.New(cfg.Server, con, cfg.Telemetry.Metrics.Path, metricsHandler, logger)

	fmt.Printf("✓ Console listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if metricsHandler != nil {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Println("✓ Engine stopped")
	return nil
}

// newStorageBackend builds the quota persistence backend.
func newStorageBackend(cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "sqlite":
		return storage.NewSQLiteBackend(storage.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
	case "", "memory":
		return storage.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
