package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
	"github.com/kirillkom/tariff-engine/internal/core/ports"
	"github.com/kirillkom/tariff-engine/internal/core/tariff"
)

type ImportScheduleUseCase struct {
	repo    ports.ImportRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	rules   *tariff.Rules
}

func NewImportScheduleUseCase(
	repo ports.ImportRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	rules *tariff.Rules,
) *ImportScheduleUseCase {
	return &ImportScheduleUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		rules:   rules,
	}
}

// Upload stores a schedule file and queues it for loading. Unlike quotes,
// imports refuse unknown jurisdictions instead of routing to the baseline.
func (uc *ImportScheduleUseCase) Upload(
	ctx context.Context,
	jurisdiction, filename string,
	body io.Reader,
) (*domain.ImportJob, error) {
	if !uc.rules.IsSupported(jurisdiction) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload schedule", fmt.Errorf("unsupported jurisdiction %q", jurisdiction))
	}
	if !strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload schedule", errors.New("schedule must be an .xlsx workbook"))
	}
	code := uc.rules.ResolveJurisdiction(jurisdiction).Code

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s_%s", strings.ToLower(code), id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	job := &domain.ImportJob{
		ID:           id,
		Jurisdiction: code,
		Filename:     filename,
		StoragePath:  storageKey,
		Status:       domain.ImportStatusUploaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	if err := uc.queue.PublishImportRequested(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish import event: %w", err)
	}

	return job, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "schedule.xlsx"
	}
	return base
}
