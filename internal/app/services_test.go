package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivoten/caat/internal/config"
)

func TestNewServicesUsesConfiguredLocale(t *testing.T) {
	cfg := config.Default()
	cfg.Settings.Locale = "en"

	s, err := NewServices(cfg)
	require.NoError(t, err)
	assert.Equal(t, "en", s.GetLocale())
	assert.Equal(t, "Unusual amounts", s.Audit.T("unusual_amounts.title"))
	assert.NotNil(t, s.Ingest)
	assert.NotNil(t, s.Reports)
	assert.Same(t, cfg, s.Config)
}

func TestNewServicesDefaults(t *testing.T) {
	s, err := NewServices(nil)
	require.NoError(t, err)
	assert.Equal(t, "es", s.GetLocale())
	assert.Equal(t, []string{"en", "es"}, s.GetAvailableLocales())
}
