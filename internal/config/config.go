// Package config loads portscout's optional YAML configuration file
// and applies defaults. Command-line flags always win over file
// values; the file only reshapes the baseline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/portscout/internal/errors"
)

// FileName is the config file portscout searches for when --config is
// not given.
const FileName = "portscout.yaml"

const (
	defaultWorkers       = 100
	defaultTimeout       = Duration(time.Second)
	defaultBannerTimeout = Duration(2 * time.Second)
	minTimeout           = 100 * time.Millisecond
)

// Duration wraps time.Duration so config files can write values like
// "500ms" or "2s". Bare numbers are read as seconds, matching the
// scan command's original timeout semantics.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", raw)
	}
	*d = Duration(time.Duration(seconds * float64(time.Second)))
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the complete portscout configuration.
type Config struct {
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Store    StoreConfig    `yaml:"store" json:"store"`
}

// ScanningConfig holds scan defaults applied when flags are absent.
type ScanningConfig struct {
	// Port specification: list, ranges, or a profile name.
	Ports string `yaml:"ports" json:"ports" validate:"omitempty,max=1000"`

	// Number of concurrent probe workers.
	Workers int `yaml:"workers" json:"workers" validate:"min=1,max=1000"`

	// Per-connection timeout.
	Timeout Duration `yaml:"timeout" json:"timeout"`

	// Capture banners from open ports.
	Banner bool `yaml:"banner" json:"banner"`

	// Per-phase banner read timeout.
	BannerTimeout Duration `yaml:"banner_timeout" json:"banner_timeout"`

	// Show closed ports in table output.
	ShowClosed bool `yaml:"show_closed" json:"show_closed"`
}

// OutputConfig holds rendering settings.
type OutputConfig struct {
	// Output format (table, json, csv).
	Format string `yaml:"format" json:"format" validate:"oneof=table json csv"`

	// Colorize table output.
	Color bool `yaml:"color" json:"color"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json).
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`
}

// MetricsConfig holds ops listener settings.
type MetricsConfig struct {
	// Serve /metrics and /healthz while scanning.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Listen address for the ops listener.
	Address string `yaml:"address" json:"address" validate:"omitempty,hostname_port"`
}

// StoreConfig holds scan history settings.
type StoreConfig struct {
	// History database file. Empty means ~/.portscout/history.db.
	Path string `yaml:"path" json:"path"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scanning: ScanningConfig{
			Ports:         "1-1024",
			Workers:       defaultWorkers,
			Timeout:       defaultTimeout,
			Banner:        false,
			BannerTimeout: defaultBannerTimeout,
			ShowClosed:    false,
		},
		Output: OutputConfig{
			Format: "table",
			Color:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9313",
		},
		Store: StoreConfig{
			Path: "",
		},
	}
}

// Load reads the config file at path into a default configuration.
// An empty path searches the usual locations and silently falls back
// to defaults when nothing is found; an explicit path must exist.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		path = Discover()
		if path == "" {
			return config, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Discover returns the first config file found in the search path:
// the current directory, then ~/.portscout/.
func Discover() string {
	candidates := []string{FileName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".portscout", FileName))
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.WrapConfigError(errors.CodeConfiguration,
			"invalid configuration", err)
	}

	if c.Scanning.Timeout.Std() < minTimeout {
		return errors.NewConfigFieldError(errors.CodeConfiguration,
			fmt.Sprintf("scan timeout must be at least %s", minTimeout),
			"scanning.timeout", c.Scanning.Timeout.Std().String())
	}
	if c.Scanning.Banner && c.Scanning.BannerTimeout.Std() <= 0 {
		return errors.NewConfigFieldError(errors.CodeConfiguration,
			"banner timeout must be positive when banner capture is enabled",
			"scanning.banner_timeout", c.Scanning.BannerTimeout.Std().String())
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return errors.NewConfigFieldError(errors.CodeConfiguration,
			"metrics address is required when metrics are enabled",
			"metrics.address", "")
	}
	return nil
}
