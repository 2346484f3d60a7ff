// Package config provides configuration structures and loading logic for the
// errorflow service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environments accepted by the disclosure policy.
const (
	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"
)

const (
	defaultListenAddr       = ":8080"
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultSimulatedLatency = 300 * time.Millisecond
	defaultHistoryCapacity  = 10
	defaultServiceName      = "errorflow"

	maxSimulatedLatency = 30 * time.Second
)

// Config holds the global configuration for the service.
type Config struct {
	Server      ServerConfig     `yaml:"server"`
	Environment string           `yaml:"environment"`
	History     HistoryConfig    `yaml:"history"`
	Logging     LoggingConfig    `yaml:"logging"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Catalog     CatalogConfig    `yaml:"catalog"`
	Disclosure  DisclosureConfig `yaml:"disclosure"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	ListenAddr       string          `yaml:"listen_addr"`
	ReadTimeout      time.Duration   `yaml:"read_timeout"`
	WriteTimeout     time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout  time.Duration   `yaml:"shutdown_timeout"`
	SimulatedLatency time.Duration   `yaml:"simulated_latency"`
	RateLimit        RateLimitConfig `yaml:"rate_limit"`
	TLS              *TLSConfig      `yaml:"tls,omitempty"`
}

// RateLimitConfig limits error generation requests. A zero rate disables it.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// HistoryConfig bounds the in-memory error history.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
// An empty endpoint disables span export.
type TelemetryConfig struct {
	ServiceName  string            `yaml:"service_name"`
	OTLPEndpoint string            `yaml:"otlp_endpoint"`
	Insecure     bool              `yaml:"insecure"`
	Headers      map[string]string `yaml:"headers,omitempty"`

	// SampleRatio applies to root spans. Zero samples everything.
	SampleRatio        float64           `yaml:"sample_ratio"`
	ResourceAttributes map[string]string `yaml:"resource_attributes,omitempty"`
}

// CatalogConfig points at an optional catalog file replacing the built-in one.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// DisclosureConfig points at an optional Rego module replacing the built-in policy.
type DisclosureConfig struct {
	PolicyPath string `yaml:"policy_path"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:       defaultListenAddr,
			ReadTimeout:      defaultReadTimeout,
			WriteTimeout:     defaultWriteTimeout,
			ShutdownTimeout:  defaultShutdownTimeout,
			SimulatedLatency: defaultSimulatedLatency,
		},
		Environment: EnvironmentDevelopment,
		History: HistoryConfig{
			Capacity: defaultHistoryCapacity,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName: defaultServiceName,
		},
	}
}

// Load reads configuration from a file and applies environment variable overrides.
// An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by admin/operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("ERRORFLOW_LISTEN_ADDR"); val != "" {
		cfg.Server.ListenAddr = val
	}
	if val := os.Getenv("ERRORFLOW_SIMULATED_LATENCY"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return NewConfigValidationError("ERRORFLOW_SIMULATED_LATENCY", val, err.Error())
		}
		cfg.Server.SimulatedLatency = d
	}

	if val := os.Getenv("ERRORFLOW_RATE_LIMIT_RPS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return NewConfigValidationError("ERRORFLOW_RATE_LIMIT_RPS", val, "must be an integer")
		}
		cfg.Server.RateLimit.RequestsPerSecond = n
	}

	if val := os.Getenv("ERRORFLOW_ENVIRONMENT"); val != "" {
		cfg.Environment = val
	}

	if val := os.Getenv("ERRORFLOW_HISTORY_CAPACITY"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return NewConfigValidationError("ERRORFLOW_HISTORY_CAPACITY", val, "must be an integer")
		}
		cfg.History.Capacity = n
	}

	if val := os.Getenv("ERRORFLOW_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("ERRORFLOW_LOG_PRETTY"); val == "true" {
		cfg.Logging.Pretty = true
	}

	if val := os.Getenv("ERRORFLOW_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("ERRORFLOW_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("ERRORFLOW_TRACE_SAMPLE_RATIO"); val != "" {
		ratio, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return NewConfigValidationError("ERRORFLOW_TRACE_SAMPLE_RATIO", val, "must be a number between 0 and 1")
		}
		cfg.Telemetry.SampleRatio = ratio
	}

	if val := os.Getenv("ERRORFLOW_CATALOG_PATH"); val != "" {
		cfg.Catalog.Path = val
	}
	if val := os.Getenv("ERRORFLOW_DISCLOSURE_POLICY"); val != "" {
		cfg.Disclosure.PolicyPath = val
	}

	if val := os.Getenv("ERRORFLOW_TLS_CERT_FILE"); val != "" {
		if cfg.Server.TLS == nil {
			cfg.Server.TLS = &TLSConfig{}
		}
		cfg.Server.TLS.Enabled = true
		cfg.Server.TLS.CertFile = val
	}
	if val := os.Getenv("ERRORFLOW_TLS_KEY_FILE"); val != "" {
		if cfg.Server.TLS == nil {
			cfg.Server.TLS = &TLSConfig{}
		}
		cfg.Server.TLS.KeyFile = val
	}

	return nil
}

// Validate performs validation of the entire configuration, filling defaults
// for zero values and normalising enumerations.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration: %w", err)
	}

	env, err := NormalizeEnvironment(c.Environment)
	if err != nil {
		return err
	}
	c.Environment = env

	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history configuration: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry configuration: %w", err)
	}

	return nil
}

// NormalizeEnvironment lowercases env and checks it against the supported
// environments. Empty means development.
func NormalizeEnvironment(env string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(env))
	switch normalized {
	case "":
		return EnvironmentDevelopment, nil
	case EnvironmentDevelopment, EnvironmentStaging, EnvironmentProduction:
		return normalized, nil
	default:
		return "", NewConfigValidationError("environment", env, "unsupported environment").
			WithSuggestion("Use one of: development, staging, production")
	}
}

// Validate performs validation of server configuration
func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}

	for field, d := range map[string]time.Duration{
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if d < 0 {
			return NewConfigValidationError(field, d, "must not be negative")
		}
	}

	if c.SimulatedLatency < 0 || c.SimulatedLatency > maxSimulatedLatency {
		return NewConfigValidationError("simulated_latency", c.SimulatedLatency,
			fmt.Sprintf("must be between 0 and %s", maxSimulatedLatency))
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		return NewConfigValidationError("rate_limit.requests_per_second", c.RateLimit.RequestsPerSecond, "must not be negative")
	}
	if c.RateLimit.Burst < 0 {
		return NewConfigValidationError("rate_limit.burst", c.RateLimit.Burst, "must not be negative")
	}

	if c.TLS != nil {
		if err := c.TLS.Validate(); err != nil {
			return fmt.Errorf("TLS configuration: %w", err)
		}
	}

	return nil
}

// Validate performs validation of history configuration
func (c *HistoryConfig) Validate() error {
	if c.Capacity == 0 {
		c.Capacity = defaultHistoryCapacity
	}
	if c.Capacity < 0 {
		return NewConfigValidationError("capacity", c.Capacity, "must be positive")
	}
	return nil
}

// Validate performs validation of logging configuration
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
		return nil
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Level)
	}
}

// Validate performs validation of telemetry configuration
func (c *TelemetryConfig) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = defaultServiceName
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return NewConfigValidationError("sample_ratio", c.SampleRatio, "must be between 0 and 1")
	}
	if strings.Contains(c.OTLPEndpoint, "://") {
		return NewConfigValidationError("otlp_endpoint", c.OTLPEndpoint, "expected host:port without a scheme").
			WithSuggestion("Use the gRPC collector address, for example localhost:4317")
	}
	return nil
}
