package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/brianly1003/wahub/internal/security"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their config key.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate validates the configuration. Struct tags cover ranges and enums;
// the rest are cross-field checks.
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateBridge(&cfg.Bridge); err != nil {
		return err
	}
	if err := validateResponder(&cfg.Responder); err != nil {
		return err
	}
	if err := validateHistory(cfg); err != nil {
		return err
	}
	if err := validateStats(&cfg.Stats); err != nil {
		return err
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Endpoint == "" {
		return fmt.Errorf("metrics.endpoint is required when metrics are enabled")
	}
	return nil
}

func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		// Namespace is Config.server.port; drop the root.
		field := e.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		msgs = append(msgs, fmt.Sprintf("%s %s", field, describe(e)))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}

func validateServer(cfg *ServerConfig) error {
	if _, err := security.ParseTrustedProxies(cfg.TrustedProxies); err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}
	return nil
}

func validateBridge(cfg *BridgeConfig) error {
	if cfg.Mode != "http" {
		return nil
	}
	if cfg.URL == "" {
		return fmt.Errorf("bridge.url is required when bridge.mode is http")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("bridge.url must be an http or https URL, got %q", cfg.URL)
	}
	return nil
}

func validateResponder(cfg *ResponderConfig) error {
	if cfg.Provider == "gemini" && cfg.APIKey == "" {
		return fmt.Errorf("responder.api_key (or GEMINI_API_KEY) is required for the gemini provider")
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Enabled && cfg.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	return nil
}

func validateStats(cfg *StatsConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return fmt.Errorf("stats.schedule %q is invalid: %w", cfg.Schedule, err)
	}
	return nil
}
