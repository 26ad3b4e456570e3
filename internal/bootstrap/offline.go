package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kirillkom/tariff-engine/internal/config"
	"github.com/kirillkom/tariff-engine/internal/core/tariff"
	"github.com/kirillkom/tariff-engine/internal/core/usecase"
	"github.com/kirillkom/tariff-engine/internal/infrastructure/parser/xlsx"
	"github.com/kirillkom/tariff-engine/internal/infrastructure/repository/memory"
)

// NewOffline answers quotes from spreadsheets held in memory. schedules maps
// a jurisdiction (code or any alias) to an .xlsx path. No database, cache or
// queue is touched, so only the query facade is populated.
func NewOffline(ctx context.Context, cfg config.Config, schedules map[string]string) (*App, error) {
	rules, err := tariff.LoadRules(cfg.TariffRulesPath)
	if err != nil {
		return nil, fmt.Errorf("load tariff rules: %w", err)
	}

	catalog := memory.NewCatalog()
	parser := xlsx.New(cfg.XLSXSheet)
	for jurisdiction, path := range schedules {
		if !rules.IsSupported(jurisdiction) {
			return nil, fmt.Errorf("unsupported jurisdiction %q", jurisdiction)
		}
		code := rules.ResolveJurisdiction(jurisdiction).Code

		n, err := loadScheduleFile(ctx, parser, catalog, code, path)
		if err != nil {
			return nil, err
		}
		slog.Debug("offline_schedule_loaded", "jurisdiction", code, "path", path, "rows", n)
	}

	return &App{
		Config:  cfg,
		Rules:   rules,
		QueryUC: usecase.NewTariffQueryUseCase(catalog, rules),
	}, nil
}

func loadScheduleFile(ctx context.Context, parser *xlsx.Parser, catalog *memory.Catalog, code, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open schedule %s: %w", path, err)
	}
	defer f.Close()

	rows, err := parser.Parse(ctx, code, f)
	if err != nil {
		return 0, fmt.Errorf("parse schedule %s: %w", path, err)
	}
	return catalog.ReplaceSchedule(ctx, code, rows)
}
