package config

import "github.com/spf13/viper"

// Default values shared by setDefaults and Default.
const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8766
	DefaultBridgeURL     = "http://localhost:8080"
	DefaultStatsSchedule = "@every 30s"
	DefaultHistoryPath   = "~/.wahub/history.db"
	DefaultOTLPEndpoint  = "localhost:4318"
)

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.external_url", "")
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("server.rate_limit_per_sec", 0)
	v.SetDefault("server.rate_limit_burst", 0)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.debug", false)

	// Hub defaults
	v.SetDefault("hub.dispatch_mode", "sequential")
	v.SetDefault("hub.delivery_timeout_ms", 10000)

	// Stream defaults
	v.SetDefault("sse.queue_size", 64)
	v.SetDefault("sse.keepalive_interval_secs", 30)
	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.buffer_size", 256)

	// Bridge defaults
	v.SetDefault("bridge.mode", "http")
	v.SetDefault("bridge.url", DefaultBridgeURL)
	v.SetDefault("bridge.timeout_secs", 10)
	v.SetDefault("bridge.rate_per_sec", 1.0)
	v.SetDefault("bridge.burst", 3)

	// Responder defaults
	v.SetDefault("responder.provider", "mock")
	v.SetDefault("responder.rules_file", "")
	v.SetDefault("responder.api_key", "")
	v.SetDefault("responder.model", "gemini-2.0-flash")
	v.SetDefault("responder.temperature", 0.7)
	v.SetDefault("responder.max_tokens", 200)

	// Handler defaults
	v.SetDefault("handlers.keywords.enabled", true)
	v.SetDefault("handlers.keywords.rules_file", "")
	v.SetDefault("handlers.keywords.blocked", []string{})
	v.SetDefault("handlers.keywords.important", []string{})
	v.SetDefault("handlers.keywords.forward_to", "")
	v.SetDefault("handlers.auto_reply.enabled", false)
	v.SetDefault("handlers.auto_reply.history_limit", 5)
	v.SetDefault("handlers.log_tap", true)

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", DefaultHistoryPath)

	// Stats defaults
	v.SetDefault("stats.enabled", true)
	v.SetDefault("stats.schedule", DefaultStatsSchedule)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.endpoint", DefaultOTLPEndpoint)
	v.SetDefault("metrics.insecure", true)
	v.SetDefault("metrics.interval_secs", 15)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// Default returns the default configuration, as written by `wahub config init`.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}
