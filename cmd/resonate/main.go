package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/resonatelabs/resonate/internal/config"
	"github.com/resonatelabs/resonate/internal/control"
	"github.com/resonatelabs/resonate/internal/device"
	"github.com/resonatelabs/resonate/internal/engine"
	"github.com/resonatelabs/resonate/internal/metrics"
	"github.com/resonatelabs/resonate/internal/model"
	"github.com/resonatelabs/resonate/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "resonate"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	listDevices := flag.Bool("list-devices", false, "List audio devices and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	if *listDevices {
		printDevices(logger)
		return
	}

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("frame_size", cfg.Audio.FrameSize),
		slog.Duration("frame_duration", cfg.Audio.FrameDuration()),
		slog.Int("history_depth", cfg.History.Depth),
		slog.String("model_endpoint", cfg.Model.Endpoint),
		slog.Float64("update_interval", cfg.Model.UpdateInterval),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Shared control state, seeded from configuration
	levels := control.NewLevels(control.Snapshot{
		Mic:        cfg.Levels.Mic,
		Feedback:   cfg.Levels.Feedback,
		Prediction: cfg.Levels.Prediction,
		Quantum:    cfg.Levels.Quantum,
		Model:      cfg.Levels.Model,
	})
	for _, name := range control.Names() {
		value, _ := levels.Adjust(name, 0)
		appMetrics.SetLevel(name, value)
	}

	// Model collaborator client; the engine runs without one when no API
	// key is configured
	var collaborator engine.Collaborator
	if cfg.Model.APIKey != "" {
		client, err := model.NewClient(model.Config{
			Endpoint:         cfg.Model.Endpoint,
			APIKey:           cfg.Model.APIKey,
			Timeout:          cfg.Model.GetTimeoutDuration(),
			SynthesisTimeout: cfg.Model.GetSynthesisTimeoutDuration(),
			MaxRetries:       cfg.Model.MaxRetries,
			MaxConcurrent:    cfg.Model.MaxConcurrent,
			ContextWindow:    cfg.Model.ContextWindow,
			MaxContinuation:  cfg.Model.MaxContinuation,
		})
		if err != nil {
			logger.Error("Failed to create model client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		collaborator = client
		logger.Info("Model client initialized",
			slog.String("endpoint", cfg.Model.Endpoint),
		)
	} else {
		logger.Warn("No model API key configured, running without collaborator")
	}

	// Interactive key control is only available on a terminal
	var keys engine.KeySource
	keyReader, err := control.NewKeyReader()
	if err != nil {
		if errors.Is(err, control.ErrNotTerminal) {
			logger.Warn("Stdin is not a terminal, key control disabled")
		} else {
			logger.Error("Failed to initialize key control", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		keys = keyReader
	}

	// Create the engine; the device session is opened inside Run with
	// bounded retries
	eng, err := engine.New(cfg, engine.Options{
		Open: func() (engine.Device, error) {
			return device.Open(device.Config{
				SampleRate:   cfg.Audio.SampleRate,
				FrameSize:    cfg.Audio.FrameSize,
				InputDevice:  cfg.Device.InputDevice,
				OutputDevice: cfg.Device.OutputDevice,
				MaxAttempts:  cfg.Device.MaxAttempts,
			}, logger)
		},
		Collaborator: collaborator,
		Keys:         keys,
		Levels:       levels,
		Metrics:      appMetrics,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("Failed to create engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, eng, levels, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		eng.Stop()
		cancel()
	}()

	// Run blocks until shutdown; a device open failure is fatal
	runErr := eng.Run(ctx)

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	if runErr != nil {
		logger.Error("Engine failed", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	status := eng.GetStatus()
	logger.Info("Final engine statistics",
		slog.Uint64("iterations", status.Iterations),
		slog.Uint64("contract_violations", status.Violations),
		slog.Int("pending_text", status.TextQueue),
	)

	logger.Info("Service stopped")
}

// printDevices lists the audio devices visible to the process.
func printDevices(logger *slog.Logger) {
	devices, err := device.Enumerate()
	if err != nil {
		logger.Error("Failed to enumerate devices", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, d := range devices {
		fmt.Printf("[%d] %s (in: %d, out: %d, default rate: %.0f Hz)\n",
			d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination. Logs default to stderr so stdout stays
	// free for device listings and key help.
	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
