package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
)

type ImportRepository struct {
	db *sql.DB
}

func NewImportRepository(db *sql.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

func (r *ImportRepository) Create(ctx context.Context, job *domain.ImportJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO schedule_imports (
	id, jurisdiction, filename, storage_path, row_count, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		job.ID, job.Jurisdiction, job.Filename, job.StoragePath, job.RowCount,
		string(job.Status), job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule import: %w", err)
	}
	return nil
}

func (r *ImportRepository) GetByID(ctx context.Context, id string) (*domain.ImportJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, jurisdiction, filename, storage_path, row_count, status, error_message, created_at, updated_at
FROM schedule_imports
WHERE id = $1
`, id)

	var job domain.ImportJob
	var status string

	err := row.Scan(
		&job.ID, &job.Jurisdiction, &job.Filename, &job.StoragePath, &job.RowCount,
		&status, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrImportNotFound, "get schedule import", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan schedule import: %w", err)
	}
	job.Status = domain.ImportStatus(status)
	return &job, nil
}

func (r *ImportRepository) UpdateStatus(ctx context.Context, id string, status domain.ImportStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE schedule_imports
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update schedule import status: %w", err)
	}
	return ensureAffected(res, "update schedule import status", id)
}

func (r *ImportRepository) SaveRowCount(ctx context.Context, id string, rows int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE schedule_imports
SET row_count = $2, updated_at = $3
WHERE id = $1
`, id, rows, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save schedule import row count: %w", err)
	}
	return ensureAffected(res, "save schedule import row count", id)
}

func ensureAffected(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrImportNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
