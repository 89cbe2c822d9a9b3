package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/icarus-itcs/lazyflutter/internal/logging"
)

// Config represents the complete lazyflutter configuration
type Config struct {
	Devices DevicesConfig `mapstructure:"devices"`
	Launch  LaunchConfig  `mapstructure:"launch"`
	Logging LoggingConfig `mapstructure:"logging"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// DevicesConfig controls device selection
type DevicesConfig struct {
	// SelectOnConnect makes every newly connected device the active one
	SelectOnConnect bool `mapstructure:"select_on_connect"`
}

// LaunchConfig controls emulator launch waiting
type LaunchConfig struct {
	// Timeout bounds the wait for a launched emulator to connect
	Timeout time.Duration `mapstructure:"timeout"`
	// PollInterval is how often the active device is checked while waiting
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// GracePeriod is slept after a successful connect
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

// LoggingConfig controls the debug log file
type LoggingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level"`
}

// DaemonConfig selects the device event source
type DaemonConfig struct {
	// Scenario is a simulator scenario file; empty uses the built-in demo
	Scenario string `mapstructure:"scenario"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address, e.g. ":9316". Empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Devices: DevicesConfig{SelectOnConnect: false},
		Launch: LaunchConfig{
			Timeout:      60 * time.Second,
			PollInterval: 500 * time.Millisecond,
			GracePeriod:  time.Second,
		},
		Logging: LoggingConfig{Enabled: true, Level: logging.LevelInfo},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	d := Default()
	viper.SetDefault("devices.select_on_connect", d.Devices.SelectOnConnect)
	viper.SetDefault("launch.timeout", d.Launch.Timeout)
	viper.SetDefault("launch.poll_interval", d.Launch.PollInterval)
	viper.SetDefault("launch.grace_period", d.Launch.GracePeriod)
	viper.SetDefault("logging.enabled", d.Logging.Enabled)
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("daemon.scenario", d.Daemon.Scenario)
	viper.SetDefault("metrics.addr", d.Metrics.Addr)
}

// selectOnConnect mirrors devices.select_on_connect from the last good Load.
// Device adds read it from daemon goroutines while the watcher rewrites
// viper's state, so it never goes through viper.
var selectOnConnect atomic.Bool

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	selectOnConnect.Store(cfg.Devices.SelectOnConnect)
	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var problems []string
	if c.Launch.Timeout <= 0 {
		problems = append(problems, "launch.timeout must be positive")
	}
	if c.Launch.PollInterval <= 0 {
		problems = append(problems, "launch.poll_interval must be positive")
	} else if c.Launch.Timeout > 0 && c.Launch.PollInterval > c.Launch.Timeout {
		problems = append(problems, "launch.poll_interval must not exceed launch.timeout")
	}
	if c.Launch.GracePeriod < 0 {
		problems = append(problems, "launch.grace_period must not be negative")
	}
	if !isValidLevel(c.Logging.Level) {
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of %s",
			c.Logging.Level, strings.Join(logging.ValidLevels(), ", ")))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func isValidLevel(level string) bool {
	for _, l := range logging.ValidLevels() {
		if strings.EqualFold(l, level) {
			return true
		}
	}
	return false
}

// SelectOnConnect returns devices.select_on_connect as of the last Load or
// reload. It is read at every device add so config edits apply without
// restart, and is safe to call from any goroutine.
func SelectOnConnect() bool {
	return selectOnConnect.Load()
}

// Watch reloads the config file on change and calls onChange with the new
// config. Invalid edits are reported through onError and ignored, keeping
// the previous values. Callers must not read viper directly once watching.
func Watch(onChange func(*Config), onError func(error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := Load()
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		if onChange != nil {
			onChange(cfg)
		}
	})
	viper.WatchConfig()
}

// ConfigDir returns the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lazyflutter")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lazyflutter"
	}
	return filepath.Join(home, ".config", "lazyflutter")
}

// ConfigFile returns the default config file path
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
