package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/brianly1003/wahub/internal/app"
	"github.com/brianly1003/wahub/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	host        string
	port        int
	externalURL string
	bridgeURL   string
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the wahub server",
	Long: `Start the wahub server to accept bridge notifications and stream
events to subscribers.

The WhatsApp bridge should POST each incoming message to
/api/message-notification. Live clients subscribe at /sse/events
(or /ws when WebSocket streaming is enabled).

Example:
  wahub start
  wahub start --port 8766
  wahub start --bridge-url http://localhost:8080
  wahub start --external-url https://your-tunnel.example.com`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&host, "host", "", "bind address (default: 127.0.0.1)")
	startCmd.Flags().IntVar(&port, "port", 0, "server port (default: 8766)")
	startCmd.Flags().StringVar(&externalURL, "external-url", "", "public URL advertised in the pairing QR code")
	startCmd.Flags().StringVar(&bridgeURL, "bridge-url", "", "base URL of the WhatsApp bridge REST API")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if externalURL != "" {
		cfg.Server.ExternalURL = externalURL
	}
	if bridgeURL != "" {
		cfg.Bridge.URL = bridgeURL
	}

	// Re-validate after overrides
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Setup logging
	closer := setupLogging(cfg)
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	log.Info().
		Str("version", version).
		Str("config", config.UsedFile(cfgFile)).
		Str("addr", cfg.Server.Addr()).
		Str("dispatch_mode", cfg.Hub.DispatchMode).
		Str("bridge", cfg.Bridge.URL).
		Msg("starting wahub")

	// Create application
	application, err := app.New(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	// Start the application
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	log.Info().Msg("wahub stopped")
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// setupLogging configures the global zerolog logger. When a log file is
// configured the returned closer owns the rotating file.
func setupLogging(cfg *config.Config) io.Closer {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Add verbose logging if flag is set
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	w, closer := logWriter(cfg, os.Stderr)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return closer
}

// logWriter builds the log output: console or JSON on out, plus a rotating
// JSON file when logging.file is set.
func logWriter(cfg *config.Config, out io.Writer) (io.Writer, io.Closer) {
	var primary io.Writer = out
	if cfg.Logging.Format == "console" || verbose {
		primary = zerolog.ConsoleWriter{Out: out}
	}

	if cfg.Logging.File == "" {
		return primary, nil
	}

	file := &lumberjack.Logger{
		Filename:   cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
		Compress:   true,
	}
	return zerolog.MultiLevelWriter(primary, file), file
}
