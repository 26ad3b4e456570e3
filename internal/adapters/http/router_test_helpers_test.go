package httpadapter

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/kirillkom/tariff-engine/internal/config"
	"github.com/kirillkom/tariff-engine/internal/core/domain"
	"github.com/kirillkom/tariff-engine/internal/core/tariff"
)

type quoterFake struct {
	result  *domain.DutyQuoteResult
	info    *domain.ScheduleMetadata
	matches []domain.ScheduleMetadata
	err     error

	lastReq     domain.DutyQuoteRequest
	lastCode    string
	lastCountry string
	lastTerm    string
}

func (f *quoterFake) CalculateTariff(_ context.Context, req domain.DutyQuoteRequest) (*domain.DutyQuoteResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return domain.NotFoundQuote(req, "US"), nil
}

func (f *quoterFake) GetTariffInfo(_ context.Context, hts8, country string) (*domain.ScheduleMetadata, error) {
	f.lastCode = hts8
	f.lastCountry = country
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func (f *quoterFake) SearchTariffs(_ context.Context, term string) ([]domain.ScheduleMetadata, error) {
	f.lastTerm = term
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

type importerFake struct {
	err error
}

func (f importerFake) Upload(_ context.Context, jurisdiction, filename string, body io.Reader) (*domain.ImportJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}

	now := time.Now().UTC()
	return &domain.ImportJob{
		ID:           "job-1",
		Jurisdiction: jurisdiction,
		Filename:     filename,
		StoragePath:  "us/job-1_" + filename,
		Status:       domain.ImportStatusUploaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

type importsFake struct {
	err error
}

func (f importsFake) GetByID(_ context.Context, id string) (*domain.ImportJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ImportJob{ID: id, Jurisdiction: "US", Status: domain.ImportStatusReady, RowCount: 12}, nil
}

func testRules(t *testing.T) *tariff.Rules {
	t.Helper()
	rules, err := tariff.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules() error = %v", err)
	}
	return rules
}

func newTestHandler(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	return NewRouter(cfg, &quoterFake{}, testRules(t), importerFake{}, importsFake{}).Handler()
}
