// Package config provides configuration loading for dispatchd.
//
// Configuration is assembled from hardcoded defaults, an optional YAML file
// and DISPATCHD_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete dispatchd configuration.
type Config struct {
	Dispatch  DispatchConfig  `koanf:"dispatch"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Auth      AuthConfig      `koanf:"auth"`
}

// DispatchConfig holds request processing settings.
type DispatchConfig struct {
	// CatchAll turns unexpected service failures into GenericInternalError
	// responses instead of failing the run.
	CatchAll        bool  `koanf:"catch_all"`
	MaxRequestBytes int64 `koanf:"max_request_bytes"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	Sampling bool   `koanf:"sampling"`
	// File enables rotated file output in addition to stderr.
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool     `koanf:"enabled"`
	Endpoint    string   `koanf:"endpoint"`
	Protocol    string   `koanf:"protocol"` // grpc or http/protobuf
	Insecure    bool     `koanf:"insecure"`
	ServiceName string   `koanf:"service_name"`
	SampleRate  float64  `koanf:"sample_rate"`
	Shutdown    Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig holds Prometheus textfile export settings.
type MetricsConfig struct {
	// TextfilePath, when set, receives a Prometheus text exposition after
	// every run (node_exporter textfile collector format).
	TextfilePath string `koanf:"textfile_path"`
}

// AuthConfig holds the credentials of the sample auth registry.
type AuthConfig struct {
	// Tokens maps user name to that user's bearer token.
	Tokens map[string]Secret `koanf:"tokens"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Dispatch.MaxRequestBytes == 0 {
		cfg.Dispatch.MaxRequestBytes = 1 << 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.File != "" {
		if cfg.Logging.MaxSizeMB == 0 {
			cfg.Logging.MaxSizeMB = 100
		}
		if cfg.Logging.MaxBackups == 0 {
			cfg.Logging.MaxBackups = 3
		}
		if cfg.Logging.MaxAgeDays == 0 {
			cfg.Logging.MaxAgeDays = 28
		}
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "dispatchd"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.Shutdown == 0 {
		cfg.Telemetry.Shutdown = Duration(5 * time.Second)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Dispatch.MaxRequestBytes < 0 {
		return fmt.Errorf("dispatch.max_request_bytes must be >= 0, got %d", c.Dispatch.MaxRequestBytes)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return errors.New("logging rotation limits must be >= 0")
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return fmt.Errorf("telemetry.protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
		}
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
	}

	for user, token := range c.Auth.Tokens {
		if user == "" {
			return errors.New("auth.tokens: user name cannot be empty")
		}
		if !token.IsSet() {
			return fmt.Errorf("auth.tokens: token for %q is empty", user)
		}
	}
	return nil
}
