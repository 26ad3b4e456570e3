// Package memory keeps duty schedules in process memory. It backs the
// offline CLI and tests, and mirrors the Postgres store's semantics.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
	"github.com/kirillkom/tariff-engine/internal/core/ports"
)

type Catalog struct {
	mu     sync.RWMutex
	tables map[string]map[string]domain.DutyScheduleRow
}

func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[string]map[string]domain.DutyScheduleRow)}
}

func (c *Catalog) Table(jurisdiction string) ports.ScheduleTable {
	return &table{catalog: c, jurisdiction: jurisdiction}
}

// ReplaceSchedule swaps the jurisdiction's rows under the write lock.
// A later row with the same code wins.
func (c *Catalog) ReplaceSchedule(_ context.Context, jurisdiction string, rows []domain.DutyScheduleRow) (int, error) {
	next := make(map[string]domain.DutyScheduleRow, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.HTS8) == "" {
			return 0, domain.WrapError(domain.ErrInvalidInput, "replace schedule", fmt.Errorf("row without hts8 in %s", jurisdiction))
		}
		row.Jurisdiction = jurisdiction
		next[row.HTS8] = row
	}

	c.mu.Lock()
	c.tables[jurisdiction] = next
	c.mu.Unlock()
	return len(rows), nil
}

// Len reports the number of rows loaded for jurisdiction.
func (c *Catalog) Len(jurisdiction string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables[jurisdiction])
}

type table struct {
	catalog      *Catalog
	jurisdiction string
}

func (t *table) FindByCode(_ context.Context, hts8 string) (*domain.DutyScheduleRow, error) {
	t.catalog.mu.RLock()
	row, ok := t.catalog.tables[t.jurisdiction][hts8]
	t.catalog.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrTariffNotFound, "find tariff", fmt.Errorf("%s/%s", t.jurisdiction, hts8))
	}
	return &row, nil
}

func (t *table) Search(_ context.Context, term string) ([]domain.DutyScheduleRow, error) {
	fold := cases.Fold()
	needle := fold.String(term)

	t.catalog.mu.RLock()
	out := make([]domain.DutyScheduleRow, 0)
	for code, row := range t.catalog.tables[t.jurisdiction] {
		if strings.HasPrefix(code, term) || strings.HasPrefix(fold.String(row.Description), needle) {
			out = append(out, row)
		}
	}
	t.catalog.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].HTS8 < out[j].HTS8 })
	return out, nil
}
