package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/firstsee/servicehost/internal/logger"
	"github.com/firstsee/servicehost/internal/telemetry"
	"github.com/firstsee/servicehost/pkg/api"
	"github.com/firstsee/servicehost/pkg/config"
	"github.com/firstsee/servicehost/pkg/dispatch"
	"github.com/firstsee/servicehost/pkg/host"
	"github.com/firstsee/servicehost/pkg/host/runtime"
	"github.com/firstsee/servicehost/pkg/metrics"
	"github.com/firstsee/servicehost/pkg/metrics/prometheus"
	"github.com/spf13/cobra"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ServiceHost daemon",
	Long: `Start the ServiceHost daemon with the specified configuration.

By default, the daemon runs in the background. Use --foreground to run in
the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/servicehost/config.yaml.

Examples:
  # Start in background (default)
  servicehost start

  # Start in foreground
  servicehost start --foreground

  # Start with custom config file
  servicehost start --config /etc/servicehost/config.yaml

  # Start with environment variable overrides
  SERVICEHOST_LOGGING_LEVEL=DEBUG servicehost start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/servicehost/servicehost.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/servicehost/servicehost.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "servicehost",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "servicehost",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("ServiceHost - Lifecycle-managed network listener")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// Initialize metrics (if enabled)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled")
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Create the listener host with the built-in echo dispatcher
	h := host.New(dispatch.NewEcho(), host.Config{
		MaxInFlight: cfg.Listener.MaxInFlight,
	})
	h.Metrics = prometheus.NewHostMetrics()

	// Initialize the runtime container and hand it to the host
	rt := runtime.New()
	rt.Operations = []string{"echo", "ping"}
	rt.SetProvider("config", cfg)

	if err := h.Initialize(rt); err != nil {
		return fmt.Errorf("failed to initialize host: %w", err)
	}

	if err := h.Start(cfg.Listener.Bind); err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	logger.Info("Listener started", "bind", cfg.Listener.Bind, "addr", h.Addr())

	// Surface accept-loop errors that have no request context
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-h.AcceptErrors():
				logger.Warn("Accept error", "error", err)
			}
		}
	}()

	// Start the auxiliary API server (if enabled)
	apiDone := make(chan error, 1)
	if cfg.API.Enabled {
		var aux runtime.AuxiliaryServer = api.NewServer(cfg.API, h)
		rt.SetProvider("api", aux)
		go func() {
			apiDone <- aux.Start(ctx)
		}()
		logger.Info("API server configured", "port", aux.Port())
	}

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	<-sigChan
	signal.Stop(sigChan)
	logger.Info("Shutdown signal received, initiating graceful shutdown")

	return shutdown(ctx, cancel, cfg, h, apiDone)
}

// shutdown stops the listener, waits for in-flight requests to drain, then
// disposes the host and stops the API server.
func shutdown(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, h *host.Host, apiDone chan error) error {
	if err := h.Stop(); err != nil {
		logger.Error("Listener stop error", "error", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Listener.DrainTimeout)
	defer drainCancel()
	if err := h.Drain(drainCtx); err != nil {
		logger.Warn("Drain timed out, abandoning in-flight requests", "error", err)
	}

	if err := h.Dispose(); err != nil {
		logger.Error("Host dispose error", "error", err)
	}

	// Cancelling the context stops the API server
	cancel()
	if cfg.API.Enabled {
		if err := <-apiDone; err != nil {
			logger.Error("API server error", "error", err)
			return err
		}
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
