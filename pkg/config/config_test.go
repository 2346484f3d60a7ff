package config

import (
	"crypto/tls"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 300*time.Millisecond, cfg.Server.SimulatedLatency)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
	assert.Equal(t, 10, cfg.History.Capacity)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "errorflow", cfg.Telemetry.ServiceName)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
	assert.Nil(t, cfg.Server.TLS)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9000"
  read_timeout: 5s
  simulated_latency: 50ms
  rate_limit:
    requests_per_second: 5
    burst: 10
environment: Production
history:
  capacity: 25
logging:
  level: DEBUG
  pretty: true
telemetry:
  service_name: errorflow-demo
  otlp_endpoint: "localhost:4317"
  insecure: true
  sample_ratio: 0.5
  resource_attributes:
    team: ux
catalog:
  path: /etc/errorflow/catalog.yaml
disclosure:
  policy_path: /etc/errorflow/disclosure.rego
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "unset fields keep defaults")
	assert.Equal(t, 50*time.Millisecond, cfg.Server.SimulatedLatency)
	assert.Equal(t, RateLimitConfig{RequestsPerSecond: 5, Burst: 10}, cfg.Server.RateLimit)
	assert.Equal(t, EnvironmentProduction, cfg.Environment)
	assert.Equal(t, 25, cfg.History.Capacity)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
	assert.Equal(t, "errorflow-demo", cfg.Telemetry.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.True(t, cfg.Telemetry.Insecure)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRatio)
	assert.Equal(t, map[string]string{"team": "ux"}, cfg.Telemetry.ResourceAttributes)
	assert.Equal(t, "/etc/errorflow/catalog.yaml", cfg.Catalog.Path)
	assert.Equal(t, "/etc/errorflow/disclosure.rego", cfg.Disclosure.PolicyPath)
}

func TestZeroLatencyIsAllowed(t *testing.T) {
	path := writeConfig(t, "server:\n  simulated_latency: 0s\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Server.SimulatedLatency)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ERRORFLOW_LISTEN_ADDR", ":7000")
	t.Setenv("ERRORFLOW_SIMULATED_LATENCY", "1s")
	t.Setenv("ERRORFLOW_ENVIRONMENT", "staging")
	t.Setenv("ERRORFLOW_HISTORY_CAPACITY", "3")
	t.Setenv("ERRORFLOW_RATE_LIMIT_RPS", "20")
	t.Setenv("ERRORFLOW_LOG_LEVEL", "warn")
	t.Setenv("ERRORFLOW_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("ERRORFLOW_CATALOG_PATH", "/tmp/catalog.yaml")
	t.Setenv("ERRORFLOW_DISCLOSURE_POLICY", "/tmp/policy.rego")

	path := writeConfig(t, "server:\n  listen_addr: \":9000\"\nenvironment: production\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.ListenAddr)
	assert.Equal(t, time.Second, cfg.Server.SimulatedLatency)
	assert.Equal(t, EnvironmentStaging, cfg.Environment)
	assert.Equal(t, 3, cfg.History.Capacity)
	assert.Equal(t, 20, cfg.Server.RateLimit.RequestsPerSecond)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "/tmp/catalog.yaml", cfg.Catalog.Path)
	assert.Equal(t, "/tmp/policy.rego", cfg.Disclosure.PolicyPath)
}

func TestEnvOverrideErrors(t *testing.T) {
	t.Run("latency", func(t *testing.T) {
		t.Setenv("ERRORFLOW_SIMULATED_LATENCY", "soon")
		_, err := Load("")
		var cfgErr *ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "ERRORFLOW_SIMULATED_LATENCY", cfgErr.Field)
	})
	t.Run("rate limit", func(t *testing.T) {
		t.Setenv("ERRORFLOW_RATE_LIMIT_RPS", "fast")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("capacity", func(t *testing.T) {
		t.Setenv("ERRORFLOW_HISTORY_CAPACITY", "ten")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown environment", func(c *Config) { c.Environment = "qa" }},
		{"negative history", func(c *Config) { c.History.Capacity = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"negative latency", func(c *Config) { c.Server.SimulatedLatency = -time.Millisecond }},
		{"excessive latency", func(c *Config) { c.Server.SimulatedLatency = time.Minute }},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit.RequestsPerSecond = -1 }},
		{"negative burst", func(c *Config) { c.Server.RateLimit.Burst = -1 }},
		{"negative timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }},
		{"sample ratio above one", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }},
		{"endpoint with scheme", func(c *Config) { c.Telemetry.OTLPEndpoint = "http://localhost:4317" }},
		{"tls without cert", func(c *Config) { c.Server.TLS = &TLSConfig{Enabled: true, KeyFile: "key.pem"} }},
		{"tls without key", func(c *Config) { c.Server.TLS = &TLSConfig{Enabled: true, CertFile: "cert.pem"} }},
		{"tls old version", func(c *Config) {
			c.Server.TLS = &TLSConfig{Enabled: true, CertFile: "cert.pem", KeyFile: "key.pem", MinVersion: "1.0"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
	assert.Equal(t, 10, cfg.History.Capacity)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "errorflow", cfg.Telemetry.ServiceName)
}

func TestTLSConfig(t *testing.T) {
	t.Setenv("ERRORFLOW_TLS_CERT_FILE", "/certs/server.pem")
	t.Setenv("ERRORFLOW_TLS_KEY_FILE", "/certs/server-key.pem")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg.Server.TLS)
	assert.True(t, cfg.Server.TLS.Enabled)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.Server.TLS.ServerTLS().MinVersion)

	cfg.Server.TLS.MinVersion = "1.3"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.Server.TLS.ServerTLS().MinVersion)

	disabled := &TLSConfig{}
	assert.NoError(t, disabled.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "server: [unterminated\n")
	_, err := Load(path)
	assert.Error(t, err)
}
