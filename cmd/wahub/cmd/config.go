package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brianly1003/wahub/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configInitLocal bool
	configInitForce bool
)

// configCmd displays or manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display and manage configuration",
	Long: `Display and manage wahub configuration.

Without subcommands, shows the current effective configuration.

Examples:
  wahub config              # Show current config
  wahub config init         # Create config file with defaults
  wahub config path         # Show config file location
  wahub config get <key>    # Get a config value
  wahub config set <key> <value>  # Set a config value`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		printConfig(cfg)
		return nil
	},
}

// configInitCmd creates a config file with defaults.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Long: `Create a config file with default settings and documentation.

By default, creates ~/.wahub/config.yaml.
Use --local to create ./config.yaml in the current directory.

Examples:
  wahub config init          # Create ~/.wahub/config.yaml
  wahub config init --local  # Create ./config.yaml
  wahub config init --force  # Overwrite existing file`,
	RunE: runConfigInit,
}

// configPathCmd shows config file location.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file location",
	RunE:  runConfigPath,
}

// configGetCmd gets a config value.
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by key.

Keys use dot notation to access nested values.

Examples:
  wahub config get server.port
  wahub config get hub.dispatch_mode
  wahub config get handlers.keywords.enabled`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a config value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value by key in ~/.wahub/config.yaml.

Creates the config file if it doesn't exist.

Examples:
  wahub config set server.port 9000
  wahub config set handlers.auto_reply.enabled true
  wahub config set responder.provider gemini`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create config in current directory instead of ~/.wahub/")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var configPath string

	if configInitLocal {
		configPath = "config.yaml"
	} else {
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
	}

	if err := writeDefaultConfig(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("Edit this file to customize wahub behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config dir: %w", err)
	}

	locations := []string{
		"./config.yaml",
		filepath.Join(configDir, "config.yaml"),
		"/etc/wahub/config.yaml",
	}

	fmt.Println("Config search paths (in order):")
	for i, loc := range locations {
		exists := "not found"
		if _, err := os.Stat(loc); err == nil {
			exists = "exists"
		}
		fmt.Printf("  %d. %s (%s)\n", i+1, loc, exists)
	}

	if used := config.UsedFile(cfgFile); used != "" {
		fmt.Printf("\nActive config: %s\n", used)
	} else {
		fmt.Println("\nActive config: (defaults)")
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}

	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	configPath := cfgFile
	if configPath == "" {
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	// Reject unknown keys before touching the file.
	if _, err := getConfigValue(config.Default(), key); err != nil {
		return err
	}

	var data map[string]interface{}
	if content, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(content, &data); err != nil {
			return fmt.Errorf("failed to parse existing config: %w", err)
		}
	}
	if data == nil {
		data = make(map[string]interface{})
	}

	if err := setNestedValue(data, key, value); err != nil {
		return err
	}

	content, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, configPath)
	return nil
}

// getConfigValue looks up a dot-separated key in the YAML form of cfg.
func getConfigValue(cfg *config.Config, key string) (interface{}, error) {
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}

	var current interface{} = data
	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unknown config key: %s", key)
		}
		current, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("unknown config key: %s", key)
		}
	}
	if _, ok := current.(map[string]interface{}); ok {
		return nil, fmt.Errorf("%s is a section, not a value", key)
	}
	return current, nil
}

func setNestedValue(data map[string]interface{}, key string, value string) error {
	parts := strings.Split(key, ".")

	current := data
	for i := 0; i < len(parts)-1; i++ {
		if _, ok := current[parts[i]]; !ok {
			current[parts[i]] = make(map[string]interface{})
		}
		nested, ok := current[parts[i]].(map[string]interface{})
		if !ok {
			return fmt.Errorf("cannot set nested value: %s is not a map", parts[i])
		}
		current = nested
	}

	current[parts[len(parts)-1]] = parseValue(value)
	return nil
}

// parseValue converts a command line value to a YAML scalar.
func parseValue(value string) interface{} {
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func printConfig(cfg *config.Config) {
	apiKey := "(not set)"
	if cfg.Responder.APIKey != "" {
		apiKey = "(set)"
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("Listen:          %s\n", cfg.Server.Addr())
	fmt.Printf("Public URL:      %s\n", cfg.Server.BaseURL())
	fmt.Printf("Dispatch Mode:   %s\n", cfg.Hub.DispatchMode)
	fmt.Printf("Bridge:          %s (%s)\n", cfg.Bridge.URL, cfg.Bridge.Mode)
	fmt.Printf("Keyword Bot:     %t\n", cfg.Handlers.Keywords.Enabled)
	fmt.Printf("Auto-Reply:      %t (%s)\n", cfg.Handlers.AutoReply.Enabled, cfg.Responder.Provider)
	fmt.Printf("API Key:         %s\n", apiKey)
	fmt.Printf("History:         %t %s\n", cfg.History.Enabled, cfg.History.Path)
	fmt.Printf("WebSocket:       %t\n", cfg.WebSocket.Enabled)
	fmt.Printf("Log Level:       %s\n", cfg.Logging.Level)
	fmt.Printf("Log Format:      %s\n", cfg.Logging.Format)
}

func writeDefaultConfig(path string) error {
	content := `# wahub Configuration
# Copy this file to ~/.wahub/config.yaml and modify as needed.
# Every key can be overridden with an environment variable, e.g.
# WAHUB_SERVER_PORT=9000 or WAHUB_HUB_DISPATCH_MODE=concurrent.

# Server settings
server:
  host: "127.0.0.1"
  port: 8766

  # Public URL advertised in the pairing QR code (tunnels, reverse proxies)
  # external_url: "https://your-tunnel.example.com"

  shutdown_timeout_secs: 10

  # Per-IP limit on the ingestion endpoints (0 disables)
  rate_limit_per_sec: 0
  rate_limit_burst: 0

  # Browser origins allowed besides localhost ("*" allows all)
  allowed_origins: []

  # Reverse proxies whose X-Forwarded-For is trusted (IPs or CIDRs)
  trusted_proxies: []

  # Expose /debug/runtime and pprof
  debug: false

# Delivery engine
hub:
  # sequential: one subscriber after another in registration order
  # concurrent: all subscribers at once, started in registration order
  dispatch_mode: "sequential"

  # Bound on a single blocking subscriber invocation
  delivery_timeout_ms: 10000

# Server-Sent Events stream at /sse/events
sse:
  # Events queued per client before the oldest is dropped
  queue_size: 64
  keepalive_interval_secs: 30

# WebSocket stream at /ws
websocket:
  enabled: true
  buffer_size: 256

# WhatsApp bridge REST API used for replies
bridge:
  # http: POST to <url>/api/send; log: only log outbound messages
  mode: "http"
  url: "http://localhost:8080"
  timeout_secs: 10

  # Per-recipient send limit
  rate_per_sec: 1.0
  burst: 3

# Reply strategy of the auto-reply handler: rules, mock or gemini
responder:
  provider: "mock"
  # rules_file: "~/.wahub/rules.yaml"
  # api_key is read from GEMINI_API_KEY when empty
  model: "gemini-2.0-flash"
  temperature: 0.7
  max_tokens: 200

# Built-in subscribers
handlers:
  keywords:
    enabled: true
    # rules_file: "~/.wahub/rules.yaml"
    blocked: []
    important: []
    # Urgent messages are forwarded here
    # forward_to: "15551234567@s.whatsapp.net"
  auto_reply:
    enabled: false
    # Previous messages of the chat included in the prompt
    history_limit: 5
  # Trace-log every event
  log_tap: true

# Message history (SQLite)
history:
  enabled: true
  path: "~/.wahub/history.db"

# Periodic stats log (cron syntax or @every)
stats:
  enabled: true
  schedule: "@every 30s"

# OpenTelemetry export of the hub counters (OTLP over HTTP)
metrics:
  enabled: false
  endpoint: "localhost:4318"
  insecure: true
  interval_secs: 15

# Logging settings
logging:
  # trace, debug, info, warn, error
  level: "info"
  # console (human-readable) or json
  format: "console"
  # Optional rotating log file
  # file: "~/.wahub/wahub.log"
  max_size_mb: 50
  max_backups: 3
  max_age_days: 28
`

	return os.WriteFile(path, []byte(content), 0644)
}
