package ports

import (
	"context"
	"io"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
)

// TariffQuoter is the inbound contract for duty quotes and schedule lookups.
type TariffQuoter interface {
	CalculateTariff(ctx context.Context, req domain.DutyQuoteRequest) (*domain.DutyQuoteResult, error)
	GetTariffInfo(ctx context.Context, hts8, arrivalCountry string) (*domain.ScheduleMetadata, error)
	SearchTariffs(ctx context.Context, term string) ([]domain.ScheduleMetadata, error)
}

// ScheduleImporter accepts an uploaded schedule file for asynchronous loading.
type ScheduleImporter interface {
	Upload(ctx context.Context, jurisdiction, filename string, body io.Reader) (*domain.ImportJob, error)
}

// ImportReader is the inbound read model for import job state.
type ImportReader interface {
	GetByID(ctx context.Context, id string) (*domain.ImportJob, error)
}

// ImportProcessor loads a previously uploaded schedule file.
type ImportProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}
