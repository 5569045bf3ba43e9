package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivoten/caat/internal/common"
	"github.com/pivoten/caat/internal/financials/audit"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ".", cfg.Settings.OutputDir)
	assert.Equal(t, "es", cfg.Settings.Locale)
	assert.Equal(t, "info", cfg.Settings.LogLevel)
	assert.Equal(t, "fixed", cfg.Unusual.Method)
	assert.Equal(t, 10000.0, cfg.Unusual.FixedThreshold)
	assert.Equal(t, 2, cfg.Unusual.K)
	assert.Equal(t, 0.0, cfg.Reconciliation.Tolerance)
	assert.Equal(t, 0.0, cfg.Benford.MinValue)
	assert.Equal(t, 2.0, cfg.Benford.DeviationThresholdPP)
	assert.Equal(t, 100, cfg.Benford.MinObservationsAdvisory)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutUserFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "caat.yaml", `
settings:
  locale: en
unusual:
  method: statistical
  k: 3
benford:
  deviation_threshold_pp: 1.5
`)
	t.Setenv("CAAT_BENFORD_MIN_OBSERVATIONS_ADVISORY", "50")
	t.Setenv("CAAT_RECONCILIATION_TOLERANCE", "0.01")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Settings.Locale)
	assert.Equal(t, 3, cfg.Unusual.K)
	assert.Equal(t, 1.5, cfg.Benford.DeviationThresholdPP)
	assert.Equal(t, 50, cfg.Benford.MinObservationsAdvisory)
	assert.Equal(t, 0.01, cfg.Reconciliation.Tolerance)

	opts := cfg.UnusualOptions()
	assert.Equal(t, audit.MethodStatistical, opts.Method)
	assert.Equal(t, 3, opts.K)
	assert.Equal(t, 0.01, cfg.ReconcileOptions().Tolerance)
	assert.Equal(t, 50, cfg.BenfordOptions().MinObservationsAdvisory)
}

func TestFlagsOverrideEverything(t *testing.T) {
	path := writeFile(t, "caat.yaml", "unusual:\n  k: 3\n")
	t.Setenv("CAAT_UNUSUAL_K", "4")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("k", 2, "")
	require.NoError(t, flags.Parse([]string{"--k=5"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag("unusual.k", flags.Lookup("k")))
	cfg, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Unusual.K)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"k too large", "unusual:\n  k: 9\n", "unusual.k"},
		{"negative tolerance", "reconciliation:\n  tolerance: -1\n", "reconciliation.tolerance"},
		{"unknown locale", "settings:\n  locale: fr\n", "settings.locale"},
		{"unknown method", "unusual:\n  method: median\n", "unusual.method"},
		{"negative deviation", "benford:\n  deviation_threshold_pp: -2\n", "benford.deviation_threshold_pp"},
		{"bad log level", "settings:\n  log_level: loud\n", "settings.log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(viper.New(), writeFile(t, "c.yaml", tt.yaml))
			var ve common.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Settings.Locale = "en"
	cfg.Benford.MinValue = 10

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDefaultPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "CAAT", "config.yaml"), path)
}
