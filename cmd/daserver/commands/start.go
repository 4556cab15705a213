package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/daserver/internal/logger"
	"github.com/marmos91/daserver/internal/telemetry"
	"github.com/marmos91/daserver/pkg/config"
	"github.com/marmos91/daserver/pkg/lifecycle"
	"github.com/marmos91/daserver/pkg/metrics"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the data server",
	Long: `Start the data server in the foreground.

Population of the address space and the refresh engine start together. The
server reports ready once population completes. SIGINT or SIGTERM stops both
tasks within the configured grace periods.

Without a configuration file the built-in defaults are used, overridden by
DASERVER_* environment variables.

Examples:
  # Start with the default config location
  daserver start

  # Start with a custom config
  daserver start --config /etc/daserver/config.yaml

  # Override settings from the environment
  DASERVER_LOGGING_LEVEL=DEBUG DASERVER_REFRESH_PERIOD=500ms daserver start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	configFile := resolveConfigFile(GetConfigFile())

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.TracingConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(cfg.ProfilerConfig(Version))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Starting daserver", "version", Version, "commit", Commit)
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(configFile))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// Metrics go first so that the components built below see
	// metrics.IsEnabled() and get their collectors.
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		metricsServer, err = metrics.NewServer(cfg.MetricsServerConfig())
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv, err := buildServer(cfg, func(reason string) {
		logger.Warn("Stopping on client shutdown request", "reason", reason)
		cancel()
	})
	if err != nil {
		return err
	}
	defer srv.close()

	if err := srv.addAuxiliaryServers(metricsServer); err != nil {
		return err
	}

	srv.dispatcher.Start(context.Background())

	if configFile != "" {
		go func() {
			if err := config.WatchLogging(ctx, configFile); err != nil {
				logger.Warn("Configuration watcher stopped", logger.Err(err))
			}
		}()
	}

	logger.Info("Server is running. Press Ctrl+C to stop.",
		"refresh_period", cfg.Refresh.Period.String(), "control_item", cfg.Control.Item)

	report, err := srv.controller.Serve(ctx)
	logShutdownReport(report)
	if err != nil {
		return err
	}
	if srv.core.State() == lifecycle.StateFailed {
		return errors.New("population failed, see the log for the failing step")
	}
	logger.Info("Server stopped")
	return nil
}

func logShutdownReport(r lifecycle.ShutdownReport) {
	for _, t := range []lifecycle.TaskReport{r.Population, r.Refresh} {
		if t.Forced {
			logger.Warn("Task terminated forcibly", logger.Task(t.Task), logger.DurationMs(t.Waited))
			continue
		}
		fields := []any{logger.Task(t.Task), logger.DurationMs(t.Waited)}
		if t.Err != nil && !errors.Is(t.Err, context.Canceled) {
			fields = append(fields, logger.Err(t.Err))
		}
		logger.Info("Task stopped", fields...)
	}
	logger.Info("Shutdown complete", "forced", r.Forced(), logger.DurationMs(r.Elapsed))
}

// resolveConfigFile returns the explicit path, or the default path when a
// file exists there, or "" to run on defaults.
func resolveConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return ""
}

func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	return "defaults"
}
