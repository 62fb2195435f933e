package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goodtune/endolog/internal/auth"
	"github.com/goodtune/endolog/internal/config"
	"github.com/goodtune/endolog/internal/device"
	"github.com/goodtune/endolog/internal/events"
	"github.com/goodtune/endolog/internal/framer"
	"github.com/goodtune/endolog/internal/metrics"
	"github.com/goodtune/endolog/internal/naming"
	"github.com/goodtune/endolog/internal/readings"
	"github.com/goodtune/endolog/internal/recorder"
	"github.com/goodtune/endolog/internal/storage"
	"github.com/goodtune/endolog/internal/storage/bolt"
	"github.com/goodtune/endolog/internal/storage/redis"
	"github.com/goodtune/endolog/internal/systemd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	runUsername  string
	runPassword  string
	runRecord    bool
	runOverwrite bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the acquisition daemon",
	Long: `Start the Endolog daemon: connect to the serial device, frame incoming
lines, and optionally begin recording to CSV under the configured session.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().StringVar(&runUsername, "username", "", "Account to log in as at startup")
	runCmd.Flags().StringVar(&runPassword, "password", "", "Password for the startup login")
	runCmd.Flags().BoolVar(&runRecord, "record", false, "Begin recording immediately after startup (requires login)")
	runCmd.Flags().BoolVar(&runOverwrite, "force-overwrite", false, "Overwrite an existing destination file without asking")
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Endolog")

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Msg("Storage initialized")

	// Seed the bootstrap accounts on first run
	if err := auth.EnsureDefaultAccounts(ctx, store.Accounts(), logger); err != nil {
		return fmt.Errorf("failed to seed default accounts: %w", err)
	}

	// Notification fanout: state changes flow to every registered listener
	fanout := events.NewFanout()
	fanout.Register(&logListener{logger: logger.With().Str("component", "events").Logger()})

	// Initialize Session Authority
	authority := auth.New(store.Accounts(), auth.Config{
		SessionTimeout: cfg.SessionTimeout(),
	}, fanout, logger)

	logger.Info().
		Dur("session_timeout", cfg.SessionTimeout()).
		Msg("Session authority initialized")

	// Initialize Naming Spec from configured defaults
	namingSpec := naming.New(cfg.Naming.OutputFolder, [naming.FieldCount]string{
		cfg.Naming.ExperimentType,
		cfg.Naming.ModelType,
		cfg.Naming.Year,
		cfg.Naming.Experience,
		cfg.Naming.Subject,
		cfg.Naming.Trial,
	})

	logger.Info().
		Str("folder", namingSpec.OutputFolder()).
		Str("filename", namingSpec.Filename()).
		Msg("Naming spec initialized")

	// Initialize Line Framer
	lineFramer := framer.New(cfg.Framer.Terminator, cfg.Framer.Separator, logger)

	// Initialize Readings Buffer
	buffer, err := readings.NewBuffer(cfg.Readings.BufferSize, cfg.Framer.Separator, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize readings buffer: %w", err)
	}
	lineFramer.Subscribe(buffer)

	// Initialize Recorder
	var confirm func(string) bool
	if runOverwrite {
		confirm = func(string) bool { return true }
	}
	rec := recorder.New(authority, namingSpec, store.Runs(), recorder.Config{
		ConfirmOverwrite: confirm,
	}, fanout, logger)
	lineFramer.Subscribe(rec)

	logger.Info().Msg("Recorder initialized")

	// Initialize Device Manager
	deviceManager := device.NewManager(device.FromConfig(cfg.Device), lineFramer, logger)

	ports, err := deviceManager.Detect()
	if err != nil {
		logger.Warn().Err(err).Msg("No serial device detected at startup")
	} else {
		if err := deviceManager.Connect(ports[0]); err != nil {
			logger.Warn().Err(err).Str("port", ports[0]).Msg("Failed to open device")
		}
	}

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port)
		metricsServer = metrics.NewServer(metricsAddr, logger)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		logger.Info().Str("addr", metricsAddr).Msg("Metrics server started")
	}

	// Startup login and optional immediate recording
	if runUsername != "" {
		if !authority.Login(ctx, runUsername, runPassword) {
			return fmt.Errorf("startup login failed for %q", runUsername)
		}
		logger.Info().
			Str("username", runUsername).
			Str("role", authority.CurrentRole().String()).
			Msg("Startup login succeeded")

		if runRecord {
			if err := rec.Start(ctx); err != nil {
				return fmt.Errorf("failed to start recording: %w", err)
			}
		}
	} else if runRecord {
		return fmt.Errorf("--record requires --username and --password")
	}

	logger.Info().Msg("Endolog startup complete")

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// An active session must be closed before the process exits so the
	// trailing rows are flushed and the run is recorded.
	rec.Shutdown()
	deviceManager.Disconnect()

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("Endolog stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "bolt", "":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be bolt or redis)", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// logListener mirrors core state changes into the daemon log. In the desktop
// shell these callbacks drive the display instead.
type logListener struct {
	logger zerolog.Logger
}

func (l *logListener) RoleChanged(username, role string) {
	l.logger.Info().Str("username", username).Str("role", role).Msg("Role changed")
}

func (l *logListener) SessionExpired(username string) {
	l.logger.Info().Str("username", username).Msg("Session expired")
}

func (l *logListener) LoggingStarted(path string) {
	l.logger.Info().Str("path", path).Msg("Recording started")
}

func (l *logListener) LoggingStopped(records uint64, reason string) {
	l.logger.Info().Uint64("records", records).Str("reason", reason).Msg("Recording stopped")
}

func (l *logListener) LoggingFaulted(err error) {
	l.logger.Error().Err(err).Msg("Recording faulted")
}

func (l *logListener) RecordCount(n uint64) {
	if n%1000 == 0 {
		l.logger.Debug().Uint64("records", n).Msg("Record count")
	}
}

func (l *logListener) ConnectionChanged(connected bool) {
	l.logger.Info().Bool("connected", connected).Msg("Device link changed")
}
