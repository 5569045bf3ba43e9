// Package config loads CAAT settings from defaults, an optional config file,
// a .env file and CAAT_* environment variables. Values bound from command-line
// flags take precedence over all of them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/pivoten/caat/internal/common"
	"github.com/pivoten/caat/internal/financials/audit"
)

// EnvPrefix is the prefix of environment overrides, e.g. CAAT_UNUSUAL_K
const EnvPrefix = "CAAT"

// Config holds every tunable setting
type Config struct {
	Settings       Settings       `mapstructure:"settings"`
	Unusual        Unusual        `mapstructure:"unusual"`
	Reconciliation Reconciliation `mapstructure:"reconciliation"`
	Benford        Benford        `mapstructure:"benford"`
}

// Settings are the general application settings
type Settings struct {
	OutputDir   string `mapstructure:"output_dir"`
	Locale      string `mapstructure:"locale"`
	LogLevel    string `mapstructure:"log_level"`
	LogDir      string `mapstructure:"log_dir"`
	KeepLogDays int    `mapstructure:"keep_log_days"`
}

// Unusual holds the unusual-amount defaults
type Unusual struct {
	Method         string  `mapstructure:"method"`
	FixedThreshold float64 `mapstructure:"fixed_threshold"`
	K              int     `mapstructure:"k"`
}

// Reconciliation holds the reconciliation defaults
type Reconciliation struct {
	Tolerance float64 `mapstructure:"tolerance"`
}

// Benford holds the Benford defaults
type Benford struct {
	MinValue                float64 `mapstructure:"min_value"`
	DeviationThresholdPP    float64 `mapstructure:"deviation_threshold_pp"`
	MinObservationsAdvisory int     `mapstructure:"min_observations_advisory"`
}

// SetDefaults registers the built-in defaults on v
func SetDefaults(v *viper.Viper) {
	unusual := audit.DefaultUnusualOptions()
	benford := audit.DefaultBenfordOptions()

	v.SetDefault("settings.output_dir", ".")
	v.SetDefault("settings.locale", "es")
	v.SetDefault("settings.log_level", "info")
	v.SetDefault("settings.log_dir", "")
	v.SetDefault("settings.keep_log_days", 30)
	v.SetDefault("unusual.method", string(unusual.Method))
	v.SetDefault("unusual.fixed_threshold", unusual.FixedThreshold)
	v.SetDefault("unusual.k", unusual.K)
	v.SetDefault("reconciliation.tolerance", 0.0)
	v.SetDefault("benford.min_value", benford.MinValue)
	v.SetDefault("benford.deviation_threshold_pp", benford.DeviationThresholdPP)
	v.SetDefault("benford.min_observations_advisory", benford.MinObservationsAdvisory)
}

// Default returns the configuration with only built-in defaults applied
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load builds the configuration on v. An empty path falls back to the
// per-user config file, which may be absent.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil || explicit {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every setting is in range
func (c *Config) Validate() error {
	switch c.Settings.Locale {
	case "en", "es":
	default:
		return common.ValidationError{Field: "settings.locale", Message: fmt.Sprintf("unsupported locale %q", c.Settings.Locale)}
	}
	if _, err := zapcore.ParseLevel(c.Settings.LogLevel); err != nil {
		return common.ValidationError{Field: "settings.log_level", Message: err.Error()}
	}
	if c.Settings.KeepLogDays < 0 {
		return common.ValidationError{Field: "settings.keep_log_days", Message: "must be >= 0"}
	}
	if err := c.UnusualOptions().Validate(); err != nil {
		var ve common.ValidationError
		if errors.As(err, &ve) {
			ve.Field = "unusual." + ve.Field
			return ve
		}
		return err
	}
	// k is range-checked even when the fixed method is the default
	if c.Unusual.K < audit.MinK || c.Unusual.K > audit.MaxK {
		return common.ValidationError{Field: "unusual.k", Message: fmt.Sprintf("must be between %d and %d", audit.MinK, audit.MaxK)}
	}
	if c.Unusual.FixedThreshold < 0 {
		return common.ValidationError{Field: "unusual.fixed_threshold", Message: "must be >= 0"}
	}
	if err := c.ReconcileOptions().Validate(); err != nil {
		return common.ValidationError{Field: "reconciliation.tolerance", Message: "must be >= 0"}
	}
	if err := c.BenfordOptions().Validate(); err != nil {
		var ve common.ValidationError
		if errors.As(err, &ve) {
			ve.Field = "benford." + ve.Field
			return ve
		}
		return err
	}
	return nil
}

// UnusualOptions returns detector options prefilled from the configuration
func (c *Config) UnusualOptions() audit.UnusualOptions {
	return audit.UnusualOptions{
		Method:         audit.Method(c.Unusual.Method),
		FixedThreshold: c.Unusual.FixedThreshold,
		K:              c.Unusual.K,
	}
}

// ReconcileOptions returns reconciliation options prefilled from the configuration
func (c *Config) ReconcileOptions() audit.ReconcileOptions {
	return audit.ReconcileOptions{Tolerance: c.Reconciliation.Tolerance}
}

// BenfordOptions returns analyzer options prefilled from the configuration
func (c *Config) BenfordOptions() audit.BenfordOptions {
	return audit.BenfordOptions{
		MinValue:                c.Benford.MinValue,
		DeviationThresholdPP:    c.Benford.DeviationThresholdPP,
		MinObservationsAdvisory: c.Benford.MinObservationsAdvisory,
	}
}

// Save writes the configuration as YAML (or JSON, by extension)
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("settings.output_dir", cfg.Settings.OutputDir)
	v.Set("settings.locale", cfg.Settings.Locale)
	v.Set("settings.log_level", cfg.Settings.LogLevel)
	v.Set("settings.log_dir", cfg.Settings.LogDir)
	v.Set("settings.keep_log_days", cfg.Settings.KeepLogDays)
	v.Set("unusual.method", cfg.Unusual.Method)
	v.Set("unusual.fixed_threshold", cfg.Unusual.FixedThreshold)
	v.Set("unusual.k", cfg.Unusual.K)
	v.Set("reconciliation.tolerance", cfg.Reconciliation.Tolerance)
	v.Set("benford.min_value", cfg.Benford.MinValue)
	v.Set("benford.deviation_threshold_pp", cfg.Benford.DeviationThresholdPP)
	v.Set("benford.min_observations_advisory", cfg.Benford.MinObservationsAdvisory)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultPath returns the per-user config file location
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "CAAT", "config.yaml"), nil
}

// DefaultLogDir returns the per-user log directory
func DefaultLogDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "CAAT", "logs"), nil
}
