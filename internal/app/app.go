// Package app orchestrates all components of wahub.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brianly1003/wahub/internal/adapters/bridge"
	"github.com/brianly1003/wahub/internal/adapters/history"
	"github.com/brianly1003/wahub/internal/adapters/responder"
	"github.com/brianly1003/wahub/internal/config"
	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/handlers"
	"github.com/brianly1003/wahub/internal/hub"
	"github.com/brianly1003/wahub/internal/pairing"
	"github.com/brianly1003/wahub/internal/security"
	httpserver "github.com/brianly1003/wahub/internal/server/http"
	"github.com/brianly1003/wahub/internal/server/http/middleware"
	"github.com/brianly1003/wahub/internal/server/sse"
	"github.com/brianly1003/wahub/internal/server/websocket"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// LogTapID is the subscriber ID of the debug log tap.
const LogTapID = "internal-logger"

// App is the main application struct that orchestrates all components.
type App struct {
	cfg     *config.Config
	version string

	// Core components
	hub         *hub.Hub
	sender      ports.Sender
	store       *history.Store
	rules       *responder.RulesResponder
	responder   ports.Responder
	recorder    *handlers.Recorder
	keywords    *handlers.KeywordHandler
	autoReply   *handlers.AutoReplyHandler
	sseHandler  *sse.Handler
	wsHandler   *websocket.Handler
	httpServer  *httpserver.Server
	qrGenerator *pairing.QRGenerator
	scheduler   *cron.Cron

	meterProvider *sdkmetric.MeterProvider

	// Instance info
	instanceID string
	startTime  time.Time

	// Lifecycle
	mu      sync.RWMutex
	running bool
}

// New creates a new App instance.
func New(cfg *config.Config, version string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	app := &App{
		cfg:        cfg,
		version:    version,
		instanceID: uuid.New().String(),
	}

	hubOpts := []hub.Option{
		hub.WithDispatchMode(hub.DispatchMode(cfg.Hub.DispatchMode)),
		hub.WithDeliveryTimeout(cfg.Hub.DeliveryTimeout()),
	}
	if cfg.Metrics.Enabled {
		mp, err := initMeter(context.Background(), cfg.Metrics, version)
		if err != nil {
			return nil, fmt.Errorf("failed to init metrics: %w", err)
		}
		metrics, err := hub.NewMetrics(mp.Meter(meterName))
		if err != nil {
			_ = mp.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to create hub metrics: %w", err)
		}
		app.meterProvider = mp
		hubOpts = append(hubOpts, hub.WithMetrics(metrics))
	}
	app.hub = hub.New(hubOpts...)

	return app, nil
}

// Start starts the application and blocks until context is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.startTime = time.Now()
	a.mu.Unlock()

	if err := a.setup(ctx); err != nil {
		a.cleanup()
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		return err
	}

	if err := a.httpServer.Start(); err != nil {
		a.cleanup()
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	a.startStatsJob()

	log.Info().
		Str("instance_id", a.instanceID).
		Str("addr", a.httpServer.Addr()).
		Strs("subscribers", a.hub.SubscriberIDs()).
		Msg("wahub started")

	a.printConnectionInfo()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn().Err(err).Msg("sd_notify READY failed")
	} else if ok {
		log.Debug().Msg("notified systemd of readiness")
	}

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	return a.shutdown()
}

// setup builds every component and registers the subscribers with the hub.
// Nothing listens on the network yet.
func (a *App) setup(ctx context.Context) error {
	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	// Outbound sender
	if a.sender == nil {
		sender, err := bridge.New(bridge.Config{
			URL:        a.cfg.Bridge.URL,
			Mode:       a.cfg.Bridge.Mode,
			Timeout:    time.Duration(a.cfg.Bridge.TimeoutSecs) * time.Second,
			RatePerSec: a.cfg.Bridge.RatePerSec,
			Burst:      a.cfg.Bridge.Burst,
		})
		if err != nil {
			return fmt.Errorf("failed to create bridge sender: %w", err)
		}
		a.sender = sender
	}

	// History store
	if a.cfg.History.Enabled {
		store, err := history.Open(a.cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		a.store = store
		log.Info().Str("path", store.Path()).Msg("message history enabled")
	}

	// Recorder first so later subscribers see the message in history.
	if a.store != nil {
		a.recorder = handlers.NewRecorder(a.store)
		a.hub.Subscribe(a.recorder.Subscriber())
	}

	if a.cfg.Handlers.Keywords.Enabled {
		rules, err := responder.NewRulesResponder(a.cfg.Handlers.Keywords.RulesFile)
		if err != nil {
			return fmt.Errorf("failed to load keyword rules: %w", err)
		}
		if err := rules.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to watch keyword rules file")
		}
		a.rules = rules

		a.keywords = handlers.NewKeywordHandler(rules, a.sender, handlers.KeywordConfig{
			Blocked:   a.cfg.Handlers.Keywords.Blocked,
			Important: a.cfg.Handlers.Keywords.Important,
			ForwardTo: a.cfg.Handlers.Keywords.ForwardTo,
		})
		a.hub.Subscribe(a.keywords.Subscriber())
	}

	if a.cfg.Handlers.AutoReply.Enabled {
		if a.keywords != nil {
			log.Warn().Msg("keyword bot and auto-reply are both enabled; messages may get two replies")
		}
		if err := a.setupAutoReply(ctx); err != nil {
			return err
		}
	}

	if a.cfg.Handlers.LogTap {
		a.hub.Subscribe(hub.NewLogSubscriber(LogTapID, func(event events.Event) {
			log.Trace().
				Str("event_id", event.ID()).
				Str("event_type", string(event.Type())).
				Time("timestamp", event.Timestamp()).
				Msg("event broadcast")
		}))
	}

	origins := security.NewOriginChecker(a.cfg.Server.AllowedOrigins)
	trusted, err := security.ParseTrustedProxies(a.cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	// Streams
	a.sseHandler = sse.NewHandler(a.hub, sse.Options{
		QueueSize: a.cfg.SSE.QueueSize,
		KeepAlive: a.cfg.SSE.KeepAlive(),
	})
	if a.cfg.WebSocket.Enabled {
		a.wsHandler = websocket.NewHandler(a.hub, a.cfg.WebSocket.BufferSize)
		a.wsHandler.SetCheckOrigin(origins.CheckOrigin)
		a.wsHandler.Start()
	}

	// Pairing
	a.qrGenerator = pairing.NewQRGenerator(a.cfg.Server.BaseURL(), a.instanceID)
	a.qrGenerator.SetWebSocket(a.cfg.WebSocket.Enabled)

	// HTTP server
	a.httpServer = httpserver.New(
		a.cfg.Server.Host,
		a.cfg.Server.Port,
		a.version,
		a.hub,
		a.getStatus,
	)
	a.httpServer.SetOriginChecker(origins)
	a.httpServer.SetSSEHandler(a.sseHandler)
	if a.wsHandler != nil {
		a.httpServer.SetWebSocketHandler(a.wsHandler)
	}
	a.httpServer.SetSender(a.sender)
	if a.store != nil {
		a.httpServer.SetMessageStore(a.store)
	}
	a.httpServer.SetPairing(a.qrGenerator)
	if a.cfg.Server.RateLimitPerSec > 0 {
		a.httpServer.SetRateLimiter(middleware.NewRateLimiter(
			middleware.WithRate(a.cfg.Server.RateLimitPerSec),
			middleware.WithBurst(a.cfg.Server.RateLimitBurst),
		))
		a.httpServer.SetRateLimitKey(middleware.ClientIPKeyExtractor(trusted))
	}
	if a.cfg.Server.Debug {
		a.httpServer.SetDebugHandler(httpserver.NewDebugHandler(true))
	}

	return nil
}

// setupAutoReply creates the configured responder and subscribes the
// auto-reply handler.
func (a *App) setupAutoReply(ctx context.Context) error {
	rc := a.cfg.Responder
	resp, err := responder.New(ctx, responder.Config{
		Provider:  rc.Provider,
		RulesFile: rc.RulesFile,
		Gemini: responder.GeminiConfig{
			APIKey:      rc.APIKey,
			Model:       rc.Model,
			Temperature: float32(rc.Temperature),
			MaxTokens:   int32(rc.MaxTokens),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create responder: %w", err)
	}
	if rr, ok := resp.(*responder.RulesResponder); ok {
		if err := rr.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to watch responder rules file")
		}
	}
	a.responder = resp

	var store ports.MessageStore
	if a.store != nil {
		store = a.store
	}
	a.autoReply = handlers.NewAutoReplyHandler(resp, a.sender, store, a.cfg.Handlers.AutoReply.HistoryLimit)
	a.hub.Subscribe(a.autoReply.Subscriber())

	log.Info().Str("provider", resp.Name()).Msg("auto-reply enabled")
	return nil
}

// shutdown performs graceful shutdown of all components.
func (a *App) shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	a.running = false

	log.Info().Msg("shutting down...")

	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Debug().Err(err).Msg("sd_notify STOPPING failed")
	}

	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
	}

	timeout := time.Duration(a.cfg.Server.ShutdownTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var shutdownErr error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("error stopping HTTP server")
			shutdownErr = err
		}
	}

	a.cleanup()

	// Last, so the final export includes shutdown deliveries.
	if err := a.shutdownMeter(ctx); err != nil {
		log.Warn().Err(err).Msg("error flushing metrics")
	}

	log.Info().Msg("shutdown complete")
	return shutdownErr
}

// cleanup stops the stream handlers and hub and releases the stores.
func (a *App) cleanup() {
	if a.wsHandler != nil {
		a.wsHandler.Stop()
	}

	// Closes every subscriber, including open SSE channels.
	if err := a.hub.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping event hub")
	}

	if a.rules != nil {
		_ = a.rules.Close()
	}
	if rr, ok := a.responder.(*responder.RulesResponder); ok {
		_ = rr.Close()
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Error().Err(err).Msg("error closing history store")
		}
	}
}

// getStatus returns the current status for API responses.
func (a *App) getStatus() map[string]interface{} {
	sseClients := 0
	if a.sseHandler != nil {
		sseClients = a.sseHandler.Clients()
	}
	wsClients := 0
	if a.wsHandler != nil {
		wsClients = a.wsHandler.ClientCount()
	}

	status := map[string]interface{}{
		"status":         "running",
		"instance_id":    a.instanceID,
		"version":        a.version,
		"uptime_seconds": a.UptimeSeconds(),
		"dispatch_mode":  string(a.hub.Mode()),
		"subscribers":    a.hub.SubscriberIDs(),
		"hub":            a.hub.Stats(),
		"sse_clients":    sseClients,
		"ws_clients":     wsClients,
	}

	handlerStats := map[string]interface{}{}
	if a.recorder != nil {
		handlerStats[handlers.RecorderID] = map[string]int64{"recorded": a.recorder.Recorded()}
	}
	if a.keywords != nil {
		handlerStats[handlers.KeywordID] = a.keywords.Stats()
	}
	if a.autoReply != nil {
		handlerStats[handlers.AutoReplyID] = a.autoReply.Stats()
	}
	status["handlers"] = handlerStats

	if a.responder != nil {
		status["responder"] = a.responder.Name()
	}
	return status
}

// printConnectionInfo prints connection information to the console.
func (a *App) printConnectionInfo() {
	info := a.qrGenerator.GetStreamInfo()

	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════════════════╗")
	fmt.Println("║                     wahub ready                            ║")
	fmt.Println("╠════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Instance:   %-46s ║\n", a.instanceID[:8]+"...")
	fmt.Printf("║  Notify:     %-46s ║\n", truncateString(info.Notify, 46))
	fmt.Printf("║  SSE:        %-46s ║\n", truncateString(info.SSE, 46))
	if info.WebSocket != "" {
		fmt.Printf("║  WebSocket:  %-46s ║\n", truncateString(info.WebSocket, 46))
	}
	fmt.Println("╠════════════════════════════════════════════════════════════╣")
	fmt.Println("║  Run 'wahub qr' to show the pairing QR code                ║")
	fmt.Println("╚════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// GetInstanceID returns the ID generated for this process.
func (a *App) GetInstanceID() string {
	return a.instanceID
}

// GetHub returns the event hub.
func (a *App) GetHub() *hub.Hub {
	return a.hub
}

// GetConfig returns the configuration.
func (a *App) GetConfig() *config.Config {
	return a.cfg
}

// UptimeSeconds returns how long the app has been running.
func (a *App) UptimeSeconds() int64 {
	if a.startTime.IsZero() {
		return 0
	}
	return int64(time.Since(a.startTime).Seconds())
}

// truncateString truncates a string to maxLen characters.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
