package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
)

type statusCall struct {
	status domain.ImportStatus
	errMsg string
}

type processRepoFake struct {
	job           *domain.ImportJob
	getErr        error
	rowCountErr   error
	statusErr     error
	failStatusErr error
	statusCalls   []statusCall
	rowCount      int
}

func (f *processRepoFake) Create(context.Context, *domain.ImportJob) error { return nil }

func (f *processRepoFake) GetByID(context.Context, string) (*domain.ImportJob, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyJob := *f.job
	return &copyJob, nil
}

func (f *processRepoFake) UpdateStatus(_ context.Context, _ string, status domain.ImportStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if status == domain.ImportStatusFailed && f.failStatusErr != nil {
		return f.failStatusErr
	}
	if f.statusErr != nil {
		return f.statusErr
	}
	return nil
}

func (f *processRepoFake) SaveRowCount(_ context.Context, _ string, rows int) error {
	if f.rowCountErr != nil {
		return f.rowCountErr
	}
	f.rowCount = rows
	return nil
}

type processStorageFake struct {
	openedKey string
	err       error
}

func (f *processStorageFake) Save(context.Context, string, io.Reader) error { return nil }

func (f *processStorageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.openedKey = key
	return io.NopCloser(strings.NewReader("xlsx")), nil
}

type parserFake struct {
	rows         []domain.DutyScheduleRow
	err          error
	jurisdiction string
}

func (f *parserFake) Parse(_ context.Context, jurisdiction string, _ io.Reader) ([]domain.DutyScheduleRow, error) {
	f.jurisdiction = jurisdiction
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type writerFake struct {
	jurisdiction string
	rows         []domain.DutyScheduleRow
	err          error
}

func (f *writerFake) ReplaceSchedule(_ context.Context, jurisdiction string, rows []domain.DutyScheduleRow) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.jurisdiction = jurisdiction
	f.rows = rows
	return len(rows), nil
}

type cacheFake struct {
	invalidated []string
	err         error
}

func (f *cacheFake) Invalidate(_ context.Context, jurisdiction string) error {
	f.invalidated = append(f.invalidated, jurisdiction)
	return f.err
}

func twoRows() []domain.DutyScheduleRow {
	return []domain.DutyScheduleRow{
		{HTS8: "01012100", MFNAdValorem: domain.Rate(0)},
		{HTS8: "64039900", MFNAdValorem: domain.Rate(0.10)},
	}
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := &processRepoFake{job: &domain.ImportJob{ID: "job-1", Jurisdiction: "GB", StoragePath: "gb/job-1_t.xlsx"}}
	storage := &processStorageFake{}
	parser := &parserFake{rows: twoRows()}
	writer := &writerFake{}
	cache := &cacheFake{}
	uc := NewProcessImportUseCase(repo, storage, parser, writer, cache)

	if err := uc.ProcessByID(context.Background(), "job-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[0].status != domain.ImportStatusProcessing || repo.statusCalls[1].status != domain.ImportStatusReady {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
	if storage.openedKey != "gb/job-1_t.xlsx" {
		t.Fatalf("unexpected storage key %s", storage.openedKey)
	}
	if parser.jurisdiction != "GB" || writer.jurisdiction != "GB" {
		t.Fatalf("expected GB for parser and writer, got %s/%s", parser.jurisdiction, writer.jurisdiction)
	}
	if repo.rowCount != 2 {
		t.Fatalf("expected row count 2, got %d", repo.rowCount)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "GB" {
		t.Fatalf("expected GB cache invalidation, got %v", cache.invalidated)
	}
}

func TestProcessByIDWithoutCache(t *testing.T) {
	repo := &processRepoFake{job: &domain.ImportJob{ID: "job-1", Jurisdiction: "US"}}
	uc := NewProcessImportUseCase(repo, &processStorageFake{}, &parserFake{rows: twoRows()}, &writerFake{}, nil)

	if err := uc.ProcessByID(context.Background(), "job-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
}

func TestProcessByIDCacheErrorDoesNotFailImport(t *testing.T) {
	repo := &processRepoFake{job: &domain.ImportJob{ID: "job-1", Jurisdiction: "US"}}
	uc := NewProcessImportUseCase(repo, &processStorageFake{}, &parserFake{rows: twoRows()}, &writerFake{}, &cacheFake{err: errors.New("redis down")})

	if err := uc.ProcessByID(context.Background(), "job-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if last := repo.statusCalls[len(repo.statusCalls)-1]; last.status != domain.ImportStatusReady {
		t.Fatalf("expected ready, got %s", last.status)
	}
}

func TestProcessByIDParserErrorMarksFailed(t *testing.T) {
	repo := &processRepoFake{job: &domain.ImportJob{ID: "job-1", Jurisdiction: "US"}}
	writer := &writerFake{}
	uc := NewProcessImportUseCase(repo, &processStorageFake{}, &parserFake{err: errors.New("missing hts8 column")}, writer, nil)

	err := uc.ProcessByID(context.Background(), "job-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.ImportStatusFailed {
		t.Fatalf("expected failed status, got %s", last.status)
	}
	if !strings.Contains(last.errMsg, "missing hts8 column") {
		t.Fatalf("expected parser message in status, got %q", last.errMsg)
	}
	if writer.rows != nil {
		t.Fatalf("writer must not run after parse failure")
	}
}

func TestProcessByIDEmptyScheduleIsInvalid(t *testing.T) {
	repo := &processRepoFake{job: &domain.ImportJob{ID: "job-1", Jurisdiction: "US"}}
	uc := NewProcessImportUseCase(repo, &processStorageFake{}, &parserFake{}, &writerFake{}, nil)

	err := uc.ProcessByID(context.Background(), "job-1")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestProcessByIDWriterErrorMarksFailed(t *testing.T) {
	repo := &processRepoFake{job: &domain.ImportJob{ID: "job-1", Jurisdiction: "US"}}
	uc := NewProcessImportUseCase(repo, &processStorageFake{}, &parserFake{rows: twoRows()}, &writerFake{err: errors.New("tx aborted")}, nil)

	err := uc.ProcessByID(context.Background(), "job-1")
	if err == nil || !strings.Contains(err.Error(), "replace schedule US") {
		t.Fatalf("expected replace error, got %v", err)
	}
	if last := repo.statusCalls[len(repo.statusCalls)-1]; last.status != domain.ImportStatusFailed {
		t.Fatalf("expected failed status, got %s", last.status)
	}
}

func TestProcessByIDMarkFailedErrorIsReported(t *testing.T) {
	repo := &processRepoFake{
		getErr:        errors.New("db gone"),
		failStatusErr: errors.New("still gone"),
	}
	uc := NewProcessImportUseCase(repo, &processStorageFake{}, &parserFake{}, &writerFake{}, nil)

	err := uc.ProcessByID(context.Background(), "job-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "mark failed status") {
		t.Fatalf("expected mark failed context, got %v", err)
	}
}

func TestProcessByIDStatusProcessingError(t *testing.T) {
	repo := &processRepoFake{statusErr: errors.New("locked")}
	uc := NewProcessImportUseCase(repo, &processStorageFake{}, &parserFake{}, &writerFake{}, nil)

	err := uc.ProcessByID(context.Background(), "job-1")
	if err == nil || !strings.Contains(err.Error(), "set status=processing") {
		t.Fatalf("expected processing status error, got %v", err)
	}
}
