// Package config provides typed configuration for the flowpump service,
// loaded from a YAML file via viper with environment overrides
// (FLOWPUMP_ prefix).
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Pump     PumpConfig     `mapstructure:"pump"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
	Debug    DebugConfig    `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PumpConfig contains the admission pacing configuration.
type PumpConfig struct {
	// SizePerPeriod caps the total work-item size admitted per period.
	// 0 selects adaptive mode, where the cap is discovered from
	// observed throughput.
	SizePerPeriod int64 `mapstructure:"size_per_period"`

	// Period is the length of one rate window.
	Period time.Duration `mapstructure:"period"`

	// Workers bounds concurrent in-flight sends.
	Workers int `mapstructure:"workers"`

	// PollInterval is how long the coordinator dozes when idle.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// UpstreamConfig describes the endpoint the pump relays payloads to.
type UpstreamConfig struct {
	URL         string        `mapstructure:"url"`
	Method      string        `mapstructure:"method"`
	ContentType string        `mapstructure:"content_type"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
