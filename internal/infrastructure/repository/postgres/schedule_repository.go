package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
	"github.com/kirillkom/tariff-engine/internal/core/ports"
	"github.com/kirillkom/tariff-engine/internal/infrastructure/resilience"
)

const scheduleColumns = `jurisdiction, hts8, brief_description, mfn_text_rate,
	mfn_ad_val_rate, mfn_specific_rate, mfn_other_rate,
	col2_ad_val_rate, col2_specific_rate, col2_other_rate, programs`

// ScheduleRepository stores every jurisdiction's duty table in one
// duty_schedules relation keyed by (jurisdiction, hts8).
type ScheduleRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

func NewScheduleRepository(db *sql.DB, executor *resilience.Executor) *ScheduleRepository {
	return &ScheduleRepository{db: db, executor: executor}
}

func (r *ScheduleRepository) Table(jurisdiction string) ports.ScheduleTable {
	return &scheduleTable{repo: r, jurisdiction: jurisdiction}
}

type scheduleTable struct {
	repo         *ScheduleRepository
	jurisdiction string
}

func (t *scheduleTable) FindByCode(ctx context.Context, hts8 string) (*domain.DutyScheduleRow, error) {
	row, err := resilience.Call(ctx, t.repo.executor, "postgres.find_by_code", func(callCtx context.Context) (*domain.DutyScheduleRow, error) {
		return scanSchedule(t.repo.db.QueryRowContext(callCtx, `
SELECT `+scheduleColumns+`
FROM duty_schedules
WHERE jurisdiction = $1 AND hts8 = $2
`, t.jurisdiction, hts8))
	}, classifyPostgresError)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTariffNotFound, "find tariff", fmt.Errorf("%s/%s", t.jurisdiction, hts8))
		}
		return nil, resilience.MarkTemporary("postgres find tariff", fmt.Errorf("find tariff: %w", err), classifyPostgresError)
	}
	return row, nil
}

func (t *scheduleTable) Search(ctx context.Context, term string) ([]domain.DutyScheduleRow, error) {
	pattern := likePrefix(term)
	rows, err := resilience.Call(ctx, t.repo.executor, "postgres.search", func(callCtx context.Context) ([]domain.DutyScheduleRow, error) {
		rs, err := t.repo.db.QueryContext(callCtx, `
SELECT `+scheduleColumns+`
FROM duty_schedules
WHERE jurisdiction = $1 AND (hts8 LIKE $2 OR lower(brief_description) LIKE lower($2))
ORDER BY hts8
`, t.jurisdiction, pattern)
		if err != nil {
			return nil, err
		}
		defer rs.Close()

		out := make([]domain.DutyScheduleRow, 0)
		for rs.Next() {
			row, err := scanSchedule(rs)
			if err != nil {
				return nil, err
			}
			out = append(out, *row)
		}
		if err := rs.Err(); err != nil {
			return nil, fmt.Errorf("iterate schedules: %w", err)
		}
		return out, nil
	}, classifyPostgresError)
	if err != nil {
		return nil, resilience.MarkTemporary("postgres search tariffs", fmt.Errorf("search tariffs: %w", err), classifyPostgresError)
	}
	return rows, nil
}

// ReplaceSchedule swaps a jurisdiction's rows atomically. Readers see
// either the old table or the new one.
func (r *ScheduleRepository) ReplaceSchedule(ctx context.Context, jurisdiction string, rows []domain.DutyScheduleRow) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM duty_schedules WHERE jurisdiction = $1`, jurisdiction); err != nil {
		return 0, fmt.Errorf("delete old schedule: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO duty_schedules (`+scheduleColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (jurisdiction, hts8) DO UPDATE SET
	brief_description = EXCLUDED.brief_description,
	mfn_text_rate = EXCLUDED.mfn_text_rate,
	mfn_ad_val_rate = EXCLUDED.mfn_ad_val_rate,
	mfn_specific_rate = EXCLUDED.mfn_specific_rate,
	mfn_other_rate = EXCLUDED.mfn_other_rate,
	col2_ad_val_rate = EXCLUDED.col2_ad_val_rate,
	col2_specific_rate = EXCLUDED.col2_specific_rate,
	col2_other_rate = EXCLUDED.col2_other_rate,
	programs = EXCLUDED.programs
`)
	if err != nil {
		return 0, fmt.Errorf("prepare schedule insert: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		row := &rows[i]
		programs, err := marshalPrograms(row.Programs)
		if err != nil {
			return 0, fmt.Errorf("marshal programs for %s: %w", row.HTS8, err)
		}
		_, err = stmt.ExecContext(ctx,
			jurisdiction, row.HTS8, row.Description, row.MFNTextRate,
			nullableRate(row.MFNAdValorem), nullableRate(row.MFNSpecific), nullableRate(row.MFNOther),
			nullableRate(row.Col2AdValorem), nullableRate(row.Col2Specific), nullableRate(row.Col2Other),
			programs,
		)
		if err != nil {
			return 0, fmt.Errorf("insert schedule row %s: %w", row.HTS8, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace tx: %w", err)
	}
	return len(rows), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(s rowScanner) (*domain.DutyScheduleRow, error) {
	var row domain.DutyScheduleRow
	var mfnAdVal, mfnSpecific, mfnOther sql.NullFloat64
	var col2AdVal, col2Specific, col2Other sql.NullFloat64
	var programsRaw []byte

	err := s.Scan(
		&row.Jurisdiction, &row.HTS8, &row.Description, &row.MFNTextRate,
		&mfnAdVal, &mfnSpecific, &mfnOther,
		&col2AdVal, &col2Specific, &col2Other,
		&programsRaw,
	)
	if err != nil {
		return nil, err
	}

	row.MFNAdValorem = fromNull(mfnAdVal)
	row.MFNSpecific = fromNull(mfnSpecific)
	row.MFNOther = fromNull(mfnOther)
	row.Col2AdValorem = fromNull(col2AdVal)
	row.Col2Specific = fromNull(col2Specific)
	row.Col2Other = fromNull(col2Other)

	if len(programsRaw) > 0 {
		if err := json.Unmarshal(programsRaw, &row.Programs); err != nil {
			return nil, fmt.Errorf("unmarshal programs: %w", err)
		}
	}
	return &row, nil
}

func marshalPrograms(programs []domain.PreferentialProgram) ([]byte, error) {
	if programs == nil {
		programs = []domain.PreferentialProgram{}
	}
	return json.Marshal(programs)
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return domain.Rate(v.Float64)
}

func nullableRate(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(term string) string {
	return likeEscaper.Replace(term) + "%"
}

func classifyPostgresError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if resilience.IsContextDone(err) || errors.Is(err, sql.ErrNoRows) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			pgErr.Code == "40001", pgErr.Code == "40P01",
			pgErr.Code == "57P01", pgErr.Code == "57P03", pgErr.Code == "53300":
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
