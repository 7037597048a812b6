// Package config loads the CLI-facing configuration that selects which
// blob-storage backend, audit sink, metrics bind address, and rate-limiter
// address a given encode/decode/restore invocation uses. It never covers
// the frozen wire-format constants (chunk size, PBKDF2 iterations, AES key
// size): those stay compile-time constants so a config knob can never
// silently break compatibility with existing container files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BackendConfig selects and configures a blob-storage backend.
type BackendConfig struct {
	// Type is "local" or "s3".
	Type string `yaml:"type"`

	// LocalDir is the filesystem root for the "local" backend.
	LocalDir string `yaml:"localDir,omitempty"`

	// The remaining fields configure the "s3" backend.
	Provider  string `yaml:"provider,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"accessKey,omitempty"`
	SecretKey string `yaml:"secretKey,omitempty"`
}

// SinkConfig configures one audit sink.
type SinkConfig struct {
	// Type is "stdout", "file", or "http"; "" selects "stdout". Whether
	// auditing runs at all is controlled by AuditConfig.Enabled.
	Type string `yaml:"type"`

	// Path is the target file for the "file" sink.
	Path string `yaml:"path,omitempty"`

	// Endpoint is the target URL for the "http" sink.
	Endpoint string `yaml:"endpoint,omitempty"`

	// BatchSize and FlushIntervalSeconds configure batching when Type is
	// wrapped in a BatchSink; zero means "write every event immediately".
	BatchSize           int `yaml:"batchSize,omitempty"`
	FlushIntervalSeconds int `yaml:"flushIntervalSeconds,omitempty"`
}

// AuditConfig controls whether and how operations are audit-logged.
type AuditConfig struct {
	Enabled    bool       `yaml:"enabled"`
	MaxEvents  int        `yaml:"maxEvents,omitempty"`
	RedactKeys []string   `yaml:"redactKeys,omitempty"`
	Sink       SinkConfig `yaml:"sink"`
}

// RateLimitConfig configures the Redis-backed password-attempt limiter
// guarding the decode and validate commands.
type RateLimitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RedisAddr   string `yaml:"redisAddr,omitempty"`
	MaxAttempts int    `yaml:"maxAttempts,omitempty"`
	WindowSeconds int  `yaml:"windowSeconds,omitempty"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BindAddr   string `yaml:"bindAddr,omitempty"`
}

// TelemetryConfig configures OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"serviceName,omitempty"`
	OTLPEndpoint   string `yaml:"otlpEndpoint,omitempty"`
	UseStdout      bool   `yaml:"useStdout,omitempty"`
}

// Config is the top-level configuration document loaded from YAML.
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Audit     AuditConfig     `yaml:"audit"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Default returns a Config with sensible defaults: a local blob-storage
// backend rooted at "./blobs", audit logging to stdout, no rate limiting,
// and metrics disabled.
func Default() Config {
	return Config{
		Backend: BackendConfig{Type: "local", LocalDir: "./blobs"},
		Audit: AuditConfig{
			Enabled: true,
			Sink:    SinkConfig{Type: "stdout"},
		},
		Metrics: MetricsConfig{Enabled: false, BindAddr: ":9090"},
	}
}

// Load reads and parses a YAML config file at path. A missing file is not
// an error; Default() is returned instead, so a bare CLI invocation with
// no --config flag still works.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return cfg, nil
}
