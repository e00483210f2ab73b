// Package config handles configuration management for wahub.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. WAHUB_SERVER_PORT.
const EnvPrefix = "WAHUB"

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Hub       HubConfig       `mapstructure:"hub" yaml:"hub"`
	SSE       SSEConfig       `mapstructure:"sse" yaml:"sse"`
	WebSocket WebSocketConfig `mapstructure:"websocket" yaml:"websocket"`
	Bridge    BridgeConfig    `mapstructure:"bridge" yaml:"bridge"`
	Responder ResponderConfig `mapstructure:"responder" yaml:"responder"`
	Handlers  HandlersConfig  `mapstructure:"handlers" yaml:"handlers"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Stats     StatsConfig     `mapstructure:"stats" yaml:"stats"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host                string `mapstructure:"host" yaml:"host" validate:"required"`
	Port                int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	ExternalURL         string `mapstructure:"external_url" yaml:"external_url" validate:"omitempty,url"` // Optional: public URL shown in the pairing QR
	ShutdownTimeoutSecs int    `mapstructure:"shutdown_timeout_secs" yaml:"shutdown_timeout_secs" validate:"min=1"`

	// Ingestion rate limit per client IP. 0 disables it.
	RateLimitPerSec float64 `mapstructure:"rate_limit_per_sec" yaml:"rate_limit_per_sec" validate:"min=0"`
	RateLimitBurst  int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst" validate:"min=0"`

	// Browser origins allowed besides localhost, e.g. https://dash.example.com,
	// *.example.com or "*".
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	// Proxies whose X-Forwarded-For is trusted for the rate limit key.
	TrustedProxies []string `mapstructure:"trusted_proxies" yaml:"trusted_proxies"`

	// Debug exposes /debug/runtime and pprof.
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// HubConfig holds delivery engine configuration.
type HubConfig struct {
	DispatchMode      string `mapstructure:"dispatch_mode" yaml:"dispatch_mode" validate:"oneof=sequential concurrent"`
	DeliveryTimeoutMS int    `mapstructure:"delivery_timeout_ms" yaml:"delivery_timeout_ms" validate:"min=1"`
}

// SSEConfig holds SSE stream configuration.
type SSEConfig struct {
	QueueSize         int `mapstructure:"queue_size" yaml:"queue_size" validate:"min=1"`
	KeepAliveInterval int `mapstructure:"keepalive_interval_secs" yaml:"keepalive_interval_secs" validate:"min=1"`
}

// WebSocketConfig holds WebSocket stream configuration.
type WebSocketConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	BufferSize int  `mapstructure:"buffer_size" yaml:"buffer_size" validate:"min=1"`
}

// BridgeConfig holds the outbound WhatsApp bridge configuration.
type BridgeConfig struct {
	Mode        string  `mapstructure:"mode" yaml:"mode" validate:"oneof=http log"`
	URL         string  `mapstructure:"url" yaml:"url" validate:"omitempty,url"`
	TimeoutSecs int     `mapstructure:"timeout_secs" yaml:"timeout_secs" validate:"min=1"`
	RatePerSec  float64 `mapstructure:"rate_per_sec" yaml:"rate_per_sec" validate:"min=0"`
	Burst       int     `mapstructure:"burst" yaml:"burst" validate:"min=0"`
}

// ResponderConfig selects the reply strategy of the auto-reply handler.
type ResponderConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider" validate:"oneof=rules mock gemini"`
	RulesFile   string  `mapstructure:"rules_file" yaml:"rules_file"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	Model       string  `mapstructure:"model" yaml:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens" validate:"min=0"`
}

// HandlersConfig enables the built-in subscribers.
type HandlersConfig struct {
	Keywords  KeywordsConfig  `mapstructure:"keywords" yaml:"keywords"`
	AutoReply AutoReplyConfig `mapstructure:"auto_reply" yaml:"auto_reply"`
	LogTap    bool            `mapstructure:"log_tap" yaml:"log_tap"`
}

// KeywordsConfig configures the keyword bot.
type KeywordsConfig struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
	RulesFile string   `mapstructure:"rules_file" yaml:"rules_file"`
	Blocked   []string `mapstructure:"blocked" yaml:"blocked"`
	Important []string `mapstructure:"important" yaml:"important"`
	ForwardTo string   `mapstructure:"forward_to" yaml:"forward_to"`
}

// AutoReplyConfig configures the AI auto-reply handler.
type AutoReplyConfig struct {
	Enabled      bool `mapstructure:"enabled" yaml:"enabled"`
	HistoryLimit int  `mapstructure:"history_limit" yaml:"history_limit" validate:"min=0"`
}

// HistoryConfig configures the message history store.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// StatsConfig configures the periodic stats log.
type StatsConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// MetricsConfig configures OTLP/HTTP export of the hub counters.
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"` // host:port of the collector
	Insecure     bool   `mapstructure:"insecure" yaml:"insecure"`
	IntervalSecs int    `mapstructure:"interval_secs" yaml:"interval_secs" validate:"min=1"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Format     string `mapstructure:"format" yaml:"format" validate:"oneof=console json"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"min=0"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL returns the URL clients should use to reach the server.
func (s ServerConfig) BaseURL() string {
	if s.ExternalURL != "" {
		return strings.TrimRight(s.ExternalURL, "/")
	}
	host := s.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

// DeliveryTimeout returns the per-subscriber timeout.
func (h HubConfig) DeliveryTimeout() time.Duration {
	return time.Duration(h.DeliveryTimeoutMS) * time.Millisecond
}

// KeepAlive returns the SSE idle keepalive interval.
func (s SSEConfig) KeepAlive() time.Duration {
	return time.Duration(s.KeepAliveInterval) * time.Second
}

// Interval returns the export interval.
func (m MetricsConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSecs) * time.Second
}

// Load loads configuration from files and environment. A .env file in the
// working directory is read first so its values act as environment overrides.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.wahub")
		v.AddConfigPath("/etc/wahub")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// UsedFile returns the config file viper would load, or "" when none exists.
func UsedFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.wahub")
	v.AddConfigPath("/etc/wahub")
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetConfigDir returns the per-user config directory, ~/.wahub.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".wahub"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// postProcess applies post-processing to configuration.
func postProcess(cfg *Config) error {
	cfg.Hub.DispatchMode = strings.ToLower(cfg.Hub.DispatchMode)
	cfg.Bridge.Mode = strings.ToLower(cfg.Bridge.Mode)
	cfg.Responder.Provider = strings.ToLower(cfg.Responder.Provider)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	if cfg.Responder.APIKey == "" {
		cfg.Responder.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	// Both handlers share the rules file unless told otherwise.
	if cfg.Responder.RulesFile == "" {
		cfg.Responder.RulesFile = cfg.Handlers.Keywords.RulesFile
	}

	if cfg.History.Path != "" {
		p, err := expandHome(cfg.History.Path)
		if err != nil {
			return err
		}
		cfg.History.Path = p
	}
	if cfg.Logging.File != "" {
		p, err := expandHome(cfg.Logging.File)
		if err != nil {
			return err
		}
		cfg.Logging.File = p
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
