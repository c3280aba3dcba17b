package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Service   ServiceConfig   `koanf:"service"`
	Server    ServerConfig    `koanf:"server"`
	Auth      AuthConfig      `koanf:"auth"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Alert     AlertConfig     `koanf:"alert"`
	Execution ExecutionConfig `koanf:"execution"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServiceConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
	Debug   bool   `koanf:"debug"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	ShutdownGrace  time.Duration `koanf:"shutdown_grace"` // Bounded wait for in-flight operations
}

// AuthConfig configures the inbound gate.
type AuthConfig struct {
	Token       string   `koanf:"token"`
	PublicPaths []string `koanf:"public_paths"` // Explicit allow-list, exact path match
}

// WebhookConfig configures outbound result delivery.
type WebhookConfig struct {
	AuthToken            string        `koanf:"auth_token"` // Distinct from the inbound token
	AttemptTimeout       time.Duration `koanf:"attempt_timeout"`
	MaxAttempts          int           `koanf:"max_attempts"`
	InitialBackoff       time.Duration `koanf:"initial_backoff"`
	MaxBackoff           time.Duration `koanf:"max_backoff"`
	Multiplier           float64       `koanf:"multiplier"`
	RetryBudget          time.Duration `koanf:"retry_budget"` // Total wall-clock cap across attempts
	BlockPrivateNetworks bool          `koanf:"block_private_networks"`
}

// AlertConfig configures the operator notification channel. Alerts are
// skipped when URL or APIKey is empty.
type AlertConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

type ExecutionConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // DEBUG, INFO, WARNING, ERROR, CRITICAL
	Format string `koanf:"format"` // json or console
}

type TelemetryConfig struct {
	Tracing bool `koanf:"tracing"`
	// Metrics exports operation, delivery and alert instruments to stdout
	// every MetricsInterval.
	Metrics         bool          `koanf:"metrics"`
	MetricsInterval time.Duration `koanf:"metrics_interval"`
}

// Configured reports whether alerts can be sent.
func (a AlertConfig) Configured() bool {
	return a.URL != "" && a.APIKey != ""
}

// LoadOptions controls where configuration is read from. Empty paths fall
// back to the defaults; missing files are not an error.
type LoadOptions struct {
	ConfigFile string
	EnvFile    string
}

const (
	DefaultConfigFile = "config.yaml"
	DefaultEnvFile    = ".env"
	envPrefix         = "STEP_"
)

var defaults = map[string]any{
	"service.name":                   "my-service",
	"service.version":                "1.0.0",
	"server.port":                    8080,
	"server.request_timeout":         30 * time.Second,
	"server.shutdown_grace":          30 * time.Second,
	"auth.public_paths":              []string{"/health"},
	"webhook.attempt_timeout":        5 * time.Second,
	"webhook.max_attempts":           3,
	"webhook.initial_backoff":        500 * time.Millisecond,
	"webhook.max_backoff":            5 * time.Second,
	"webhook.multiplier":             2.0,
	"webhook.retry_budget":           30 * time.Second,
	"alert.timeout":                  5 * time.Second,
	"execution.timeout":              60 * time.Second,
	"log.level":                      "INFO",
	"log.format":                     "json",
	"telemetry.tracing":              false,
	"telemetry.metrics":              false,
	"telemetry.metrics_interval":     60 * time.Second,
	"webhook.block_private_networks": false,
}

// legacyEnv maps the flat variable names used by earlier deployments of the
// service onto config keys.
var legacyEnv = map[string]string{
	"SERVICE_NAME":       "service.name",
	"SERVICE_VERSION":    "service.version",
	"DEBUG":              "service.debug",
	"PORT":               "server.port",
	"AUTH_TOKEN":         "auth.token",
	"WEBHOOK_AUTH_TOKEN": "webhook.auth_token",
	"ALERT_WEBHOOK_URL":  "alert.url",
	"ALERT_API_KEY":      "alert.api_key",
	"LOG_LEVEL":          "log.level",
	"LOG_FORMAT":         "log.format",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from the .env file, config file and environment,
// in increasing order of precedence, then applies defaults. It does not
// validate; call Validate before use.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	// godotenv never overrides variables already present in the environment.
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	k := koanf.New(".")

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, err
	}

	// Prefixed variables win over the flat legacy names.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("set default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Auth.Token = strings.TrimSpace(substituteEnvVars(cfg.Auth.Token))
	cfg.Webhook.AuthToken = strings.TrimSpace(substituteEnvVars(cfg.Webhook.AuthToken))
	cfg.Alert.APIKey = strings.TrimSpace(substituteEnvVars(cfg.Alert.APIKey))
	cfg.Alert.URL = strings.TrimSpace(substituteEnvVars(cfg.Alert.URL))
	cfg.Log.Level = strings.ToUpper(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	return &cfg, nil
}

var (
	validLogLevels  = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}
	validLogFormats = []string{"json", "console"}
)

// Validate checks required values and ranges. All problems are reported
// together so a deployment can be fixed in one pass.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.Token == "" {
		errs = append(errs, errors.New("auth.token cannot be empty"))
	}
	if c.Webhook.AuthToken == "" {
		errs = append(errs, errors.New("webhook.auth_token cannot be empty"))
	}
	if !contains(validLogLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of %v", validLogLevels))
	}
	if !contains(validLogFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of %v", validLogFormats))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	for name, d := range map[string]time.Duration{
		"server.request_timeout":  c.Server.RequestTimeout,
		"server.shutdown_grace":   c.Server.ShutdownGrace,
		"webhook.attempt_timeout": c.Webhook.AttemptTimeout,
		"webhook.retry_budget":    c.Webhook.RetryBudget,
		"alert.timeout":           c.Alert.Timeout,
		"execution.timeout":       c.Execution.Timeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Webhook.MaxAttempts < 1 {
		errs = append(errs, errors.New("webhook.max_attempts must be at least 1"))
	}
	if c.Webhook.InitialBackoff < 0 || c.Webhook.MaxBackoff < 0 {
		errs = append(errs, errors.New("webhook backoff durations cannot be negative"))
	}
	if c.Webhook.Multiplier < 1 {
		errs = append(errs, errors.New("webhook.multiplier must be >= 1"))
	}
	if c.Alert.URL != "" {
		u, err := url.Parse(c.Alert.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("alert.url %q is not an absolute http(s) URL", c.Alert.URL))
		}
	}

	return errors.Join(errs...)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
