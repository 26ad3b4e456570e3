package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
	"github.com/kirillkom/tariff-engine/internal/core/ports"
)

type ProcessImportUseCase struct {
	repo    ports.ImportRepository
	storage ports.ObjectStorage
	parser  ports.ScheduleParser
	writer  ports.ScheduleWriter
	cache   ports.ScheduleCache
}

// NewProcessImportUseCase wires the import pipeline. cache may be nil when no
// read-through cache sits in front of the schedule store.
func NewProcessImportUseCase(
	repo ports.ImportRepository,
	storage ports.ObjectStorage,
	parser ports.ScheduleParser,
	writer ports.ScheduleWriter,
	cache ports.ScheduleCache,
) *ProcessImportUseCase {
	return &ProcessImportUseCase{
		repo:    repo,
		storage: storage,
		parser:  parser,
		writer:  writer,
		cache:   cache,
	}
}

func (uc *ProcessImportUseCase) ProcessByID(ctx context.Context, jobID string) error {
	if err := uc.markStatus(ctx, jobID, domain.ImportStatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	job, written, err := uc.processPipeline(ctx, jobID)
	if err != nil {
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveRowCount(ctx, job.ID, written); err != nil {
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save row count: %w", err)
	}

	if err := uc.markStatus(ctx, jobID, domain.ImportStatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	slog.Info("schedule_import_ready", "job_id", job.ID, "jurisdiction", job.Jurisdiction, "rows", written)
	return nil
}

func (uc *ProcessImportUseCase) processPipeline(ctx context.Context, jobID string) (*domain.ImportJob, int, error) {
	job, err := uc.loadJob(ctx, jobID)
	if err != nil {
		return nil, 0, err
	}

	rows, err := uc.parse(ctx, job)
	if err != nil {
		return nil, 0, err
	}

	written, err := uc.writer.ReplaceSchedule(ctx, job.Jurisdiction, rows)
	if err != nil {
		return nil, 0, fmt.Errorf("replace schedule %s: %w", job.Jurisdiction, err)
	}

	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx, job.Jurisdiction); err != nil {
			// Cached rows expire on their own; a stale window is not a failed import.
			slog.Warn("schedule_cache_invalidate_failed", "jurisdiction", job.Jurisdiction, "error", err)
		}
	}

	return job, written, nil
}

func (uc *ProcessImportUseCase) loadJob(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch import job by id: %w", err)
	}
	return job, nil
}

func (uc *ProcessImportUseCase) parse(ctx context.Context, job *domain.ImportJob) ([]domain.DutyScheduleRow, error) {
	reader, err := uc.storage.Open(ctx, job.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open schedule file: %w", err)
	}
	defer reader.Close()

	rows, err := uc.parser.Parse(ctx, job.Jurisdiction, reader)
	if err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse schedule", errors.New("schedule has no rows"))
	}
	return rows, nil
}

func (uc *ProcessImportUseCase) markStatus(ctx context.Context, jobID string, status domain.ImportStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, jobID, status, errMessage)
}

func (uc *ProcessImportUseCase) markFailed(ctx context.Context, jobID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, jobID, domain.ImportStatusFailed, processErr.Error())
}
