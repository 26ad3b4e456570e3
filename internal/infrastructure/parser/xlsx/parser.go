// Package xlsx reads duty schedule workbooks in the USITC annual tariff
// layout: one header row, then one row per 8-digit code.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
)

const (
	colHTS8        = "hts8"
	colDescription = "brief_description"
	colMFNText     = "mfn_text_rate"
)

var programSuffixes = []string{"_indicator", "_ad_val_rate", "_specific_rate", "_other_rate"}

type Parser struct {
	sheet string
}

// New returns a parser for sheet, or for the first sheet when sheet is "".
func New(sheet string) *Parser {
	return &Parser{sheet: sheet}
}

type layout struct {
	index    map[string]int
	programs []string
}

func (p *Parser) Parse(ctx context.Context, jurisdiction string, r io.Reader) ([]domain.DutyScheduleRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open workbook", err)
	}
	defer f.Close()

	sheet := p.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "open workbook", errors.New("workbook has no sheets"))
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read sheet", fmt.Errorf("%s: %w", sheet, err))
	}
	defer rows.Close()

	var cols *layout
	out := make([]domain.DutyScheduleRow, 0, 1024)
	seen := make(map[string]int)
	line := 0
	for rows.Next() {
		line++
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		cells, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if cols == nil {
			cols, err = readHeader(cells)
			if err != nil {
				return nil, domain.WrapError(domain.ErrInvalidInput, "read header", err)
			}
			continue
		}

		row, ok, err := cols.parseRow(cells)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse schedule", fmt.Errorf("row %d: %w", line, err))
		}
		if !ok {
			continue
		}
		row.Jurisdiction = jurisdiction

		if prev, dup := seen[row.HTS8]; dup {
			slog.Warn("schedule_duplicate_code", "hts8", row.HTS8, "row", line, "jurisdiction", jurisdiction)
			out[prev] = row
			continue
		}
		seen[row.HTS8] = len(out)
		out = append(out, row)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	if cols == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read header", errors.New("sheet is empty"))
	}
	return out, nil
}

func readHeader(cells []string) (*layout, error) {
	l := &layout{index: make(map[string]int, len(cells))}
	programSet := make(map[string]struct{})
	for i, cell := range cells {
		name := strings.ToLower(strings.TrimSpace(cell))
		if name == "" {
			continue
		}
		l.index[name] = i
		if key, ok := programKey(name); ok {
			if _, exists := programSet[key]; !exists {
				programSet[key] = struct{}{}
				l.programs = append(l.programs, key)
			}
		}
	}
	if _, ok := l.index[colHTS8]; !ok {
		return nil, errors.New("missing hts8 column")
	}
	return l, nil
}

func programKey(column string) (string, bool) {
	for _, suffix := range programSuffixes {
		if key, ok := strings.CutSuffix(column, suffix); ok {
			if key == "" || key == "mfn" || key == "col2" {
				return "", false
			}
			return key, true
		}
	}
	return "", false
}

func (l *layout) cell(cells []string, column string) string {
	i, ok := l.index[column]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func (l *layout) rate(cells []string, column string) (*float64, error) {
	raw := l.cell(cells, column)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %q is not a number", column, raw)
	}
	if v < 0 {
		return nil, fmt.Errorf("column %s: negative rate %v", column, v)
	}
	return &v, nil
}

func (l *layout) parseRow(cells []string) (domain.DutyScheduleRow, bool, error) {
	code, err := normalizeHTS8(l.cell(cells, colHTS8))
	if err != nil {
		return domain.DutyScheduleRow{}, false, err
	}
	if code == "" {
		return domain.DutyScheduleRow{}, false, nil
	}

	row := domain.DutyScheduleRow{
		HTS8:        code,
		Description: l.cell(cells, colDescription),
		MFNTextRate: l.cell(cells, colMFNText),
	}

	targets := []struct {
		column string
		dst    **float64
	}{
		{"mfn_ad_val_rate", &row.MFNAdValorem},
		{"mfn_specific_rate", &row.MFNSpecific},
		{"mfn_other_rate", &row.MFNOther},
		{"col2_ad_val_rate", &row.Col2AdValorem},
		{"col2_specific_rate", &row.Col2Specific},
		{"col2_other_rate", &row.Col2Other},
	}
	for _, t := range targets {
		v, err := l.rate(cells, t.column)
		if err != nil {
			return domain.DutyScheduleRow{}, false, err
		}
		*t.dst = v
	}

	for _, key := range l.programs {
		program := domain.PreferentialProgram{
			Key:       key,
			Indicator: l.cell(cells, key+"_indicator"),
		}
		if program.AdValorem, err = l.rate(cells, key+"_ad_val_rate"); err != nil {
			return domain.DutyScheduleRow{}, false, err
		}
		if program.Specific, err = l.rate(cells, key+"_specific_rate"); err != nil {
			return domain.DutyScheduleRow{}, false, err
		}
		if program.Other, err = l.rate(cells, key+"_other_rate"); err != nil {
			return domain.DutyScheduleRow{}, false, err
		}
		if program.Indicator == "" && !program.HasRates() {
			continue
		}
		row.Programs = append(row.Programs, program)
	}

	return row, true, nil
}

// normalizeHTS8 strips separators and restores a leading zero lost when a
// spreadsheet stored the code as a number.
func normalizeHTS8(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == ' ' || r == '-':
		default:
			return "", fmt.Errorf("hts8 %q contains %q", raw, r)
		}
	}
	code := b.String()
	if len(code) == 7 {
		code = "0" + code
	}
	if len(code) != 8 {
		return "", fmt.Errorf("hts8 %q is not 8 digits", raw)
	}
	return code, nil
}
