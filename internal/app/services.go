// Package app wires the CAAT services together
package app

import (
	"fmt"

	"github.com/pivoten/caat/internal/common"
	"github.com/pivoten/caat/internal/config"
	"github.com/pivoten/caat/internal/financials/audit"
	"github.com/pivoten/caat/internal/ingest"
	"github.com/pivoten/caat/internal/reports"
)

// Services contains all application services
type Services struct {
	*common.I18n // Embedded for direct method access
	Config       *config.Config

	Ingest  *ingest.Service
	Audit   *audit.Service
	Reports *reports.Service
}

// NewServices creates and initializes all services for the configured locale
func NewServices(cfg *config.Config) (*Services, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	i18n, err := common.NewDefaultI18n(cfg.Settings.Locale)
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}

	return &Services{
		I18n:    i18n,
		Config:  cfg,
		Ingest:  ingest.NewService(),
		Audit:   audit.NewService(audit.WithTranslator(i18n)),
		Reports: reports.NewService(i18n),
	}, nil
}
