package ports

import (
	"context"
	"io"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
)

// ScheduleTable is one jurisdiction's read-only duty table.
// FindByCode reports a miss as domain.ErrTariffNotFound.
type ScheduleTable interface {
	FindByCode(ctx context.Context, hts8 string) (*domain.DutyScheduleRow, error)
	Search(ctx context.Context, term string) ([]domain.DutyScheduleRow, error)
}

// ScheduleCatalog hands out the table for a jurisdiction code.
type ScheduleCatalog interface {
	Table(jurisdiction string) ScheduleTable
}

// ScheduleWriter bulk-replaces a jurisdiction's rows.
type ScheduleWriter interface {
	ReplaceSchedule(ctx context.Context, jurisdiction string, rows []domain.DutyScheduleRow) (int, error)
}

// ScheduleCache drops cached rows after a jurisdiction is reloaded.
type ScheduleCache interface {
	Invalidate(ctx context.Context, jurisdiction string) error
}

// ImportRepository persists and reads import job state.
type ImportRepository interface {
	Create(ctx context.Context, job *domain.ImportJob) error
	GetByID(ctx context.Context, id string) (*domain.ImportJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.ImportStatus, errMessage string) error
	SaveRowCount(ctx context.Context, id string, rows int) error
}

// ObjectStorage stores uploaded schedule files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes schedule import events.
type MessageQueue interface {
	PublishImportRequested(ctx context.Context, jobID string) error
	SubscribeImportRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// ScheduleParser turns an uploaded schedule file into rows.
type ScheduleParser interface {
	Parse(ctx context.Context, jurisdiction string, r io.Reader) ([]domain.DutyScheduleRow, error)
}
