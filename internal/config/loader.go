package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// Default values applied when a key is absent from the config file
// and the environment.
const (
	DefaultSizePerPeriod = 1024000
	DefaultPeriod        = time.Second
	DefaultWorkers       = 128
	DefaultPollInterval  = 125 * time.Millisecond
)

// SetDefaults registers every known key with its default value so that
// environment overrides (FLOWPUMP_*) bind even without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("pump.size_per_period", DefaultSizePerPeriod)
	v.SetDefault("pump.period", DefaultPeriod.String())
	v.SetDefault("pump.workers", DefaultWorkers)
	v.SetDefault("pump.poll_interval", DefaultPollInterval.String())

	v.SetDefault("upstream.url", "")
	v.SetDefault("upstream.method", "POST")
	v.SetDefault("upstream.content_type", "application/json")
	v.SetDefault("upstream.timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

// Load decodes the viper state into a validated Config and stores it as
// the current application configuration.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	Set(&cfg)
	return &cfg, nil
}

// Validate checks invariants that would otherwise surface as runtime
// failures deep inside the pump or server.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	if c.Pump.SizePerPeriod < 0 {
		return fmt.Errorf("pump.size_per_period must not be negative (0 selects adaptive mode)")
	}
	if c.Pump.Period <= 0 {
		return fmt.Errorf("pump.period must be positive, got %s", c.Pump.Period)
	}
	if c.Pump.Workers <= 0 {
		return fmt.Errorf("pump.workers must be positive, got %d", c.Pump.Workers)
	}
	if c.Pump.PollInterval <= 0 {
		return fmt.Errorf("pump.poll_interval must be positive, got %s", c.Pump.PollInterval)
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d is out of range", c.Metrics.Port)
	}

	return nil
}

// Get returns the current application configuration, or nil before Load.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// Set replaces the current application configuration.
func Set(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}
