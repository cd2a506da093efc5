package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alertops/alertops/internal/ai"
	"github.com/alertops/alertops/internal/config"
	"github.com/alertops/alertops/internal/history"
	"github.com/alertops/alertops/internal/httpapi"
	"github.com/alertops/alertops/internal/logs"
	"github.com/alertops/alertops/internal/mcp"
	"github.com/alertops/alertops/internal/metrics"
	"github.com/alertops/alertops/internal/plugins"
)

var (
	configFile string
	dataDir    string
	listen     string
	logLevel   string
	logToFile  bool
	logDir     string

	version = "v0.1.0" // injected by -ldflags during build
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "alertops",
		Short:   "AlertOps - Alertmanager webhook receiver with pluggable alert handlers",
		Version: version,
		RunE:    runServer,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory path (default: ~/.alertops)")
	rootCmd.PersistentFlags().StringVarP(&listen, "listen", "l", "", "Listen address (default: :8080)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-to-file", false, "Enable logging to file in standard OS location")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Custom log directory path (overrides standard OS location)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logs.SetupLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting alertops",
		zap.String("version", version),
		zap.String("listen", cfg.Server.Listen),
		zap.Int("mcp_servers", len(cfg.MCPServers)),
		zap.Strings("plugins", cfg.Plugins.Enabled))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	// Tool invocation engine over the configured servers
	registry, err := mcp.NewRegistryFromConfig(cfg.MCPServers)
	if err != nil {
		return fmt.Errorf("failed to build server registry: %w", err)
	}
	engine := mcp.NewEngine(registry, mcp.NewStreamableHTTPTransport(logger), logger,
		mcp.WithMetrics(m))

	// Best-effort startup: failures stay pending for lazy connect
	engine.ConnectAll(ctx)

	var provider ai.Provider
	if pluginEnabled(cfg, "jira") {
		provider, err = ai.New(cfg.AI, engine, logger)
		if err != nil {
			logger.Warn("AI provider unavailable, jira plugin will use template summaries",
				zap.Error(err))
		}
	}

	var store *history.Store
	if pluginEnabled(cfg, "recall") {
		store, err = history.New(cfg.DataDir, logger.Sugar())
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		defer func() { _ = store.Close() }()
	}

	loaded, err := plugins.Load(cfg, plugins.Deps{
		Logger:  logger,
		AI:      provider,
		Tools:   engine,
		History: store,
	})
	if err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}

	apiServer := httpapi.NewServer(loaded, registry, logger, m, promRegistry, version)
	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Listen))
		serveErr <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			engine.Shutdown()
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	engine.Shutdown()
	logger.Info("Shutdown complete")
	return nil
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	// Command line flags override file and environment
	if listen != "" {
		cfg.Server.Listen = listen
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
		}
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
		cfg.Logging.Level = logLevel
	}
	if logToFile {
		cfg.Logging.EnableFile = true
	}
	if logDir != "" {
		cfg.Logging.LogDir = logDir
	}

	return cfg, nil
}

func pluginEnabled(cfg *config.Config, name string) bool {
	for _, enabled := range cfg.Plugins.Enabled {
		if enabled == name {
			return true
		}
	}
	return false
}
