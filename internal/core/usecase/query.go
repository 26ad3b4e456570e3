package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
	"github.com/kirillkom/tariff-engine/internal/core/ports"
	"github.com/kirillkom/tariff-engine/internal/core/tariff"
)

// TariffQueryUseCase is the single entry point for duty quotes, reverse
// lookups and keyword search. It holds no per-request state.
type TariffQueryUseCase struct {
	catalog ports.ScheduleCatalog
	rules   *tariff.Rules
}

func NewTariffQueryUseCase(catalog ports.ScheduleCatalog, rules *tariff.Rules) *TariffQueryUseCase {
	return &TariffQueryUseCase{
		catalog: catalog,
		rules:   rules,
	}
}

func (uc *TariffQueryUseCase) CalculateTariff(ctx context.Context, req domain.DutyQuoteRequest) (*domain.DutyQuoteResult, error) {
	jurisdiction := uc.rules.ResolveJurisdiction(req.ArrivalCountry)

	row, err := uc.catalog.Table(jurisdiction.Code).FindByCode(ctx, req.HTS8)
	if err != nil {
		if domain.IsKind(err, domain.ErrTariffNotFound) {
			return domain.NotFoundQuote(req, jurisdiction.Code), nil
		}
		return nil, fmt.Errorf("find tariff %s/%s: %w", jurisdiction.Code, req.HTS8, err)
	}

	rates := uc.rules.Resolve(row, req.OriginCountry)
	duty := tariff.ComputeDuty(rates, req.ItemValue)

	return &domain.DutyQuoteResult{
		HTS8:                row.HTS8,
		Description:         row.Description,
		MFNTextRate:         row.MFNTextRate,
		ItemValue:           req.ItemValue,
		ItemQuantity:        req.ItemQuantity,
		OriginCountry:       req.OriginCountry,
		Jurisdiction:        jurisdiction.Code,
		Program:             rates.Program,
		AdValoremRate:       rates.AdValorem,
		SpecificRate:        rates.Specific,
		OtherRate:           rates.Other,
		AdValoremAmount:     duty.AdValoremAmount,
		SpecificAmount:      duty.SpecificAmount,
		OtherAmount:         duty.OtherAmount,
		DutyAmount:          duty.TotalAmount,
		TotalCost:           duty.TotalCost,
		Found:               true,
		TotalDutyPercentage: duty.TotalPercentage,
		DutyTypes:           []string{},
	}, nil
}

// GetTariffInfo returns raw schedule fields, or nil when the code is absent.
func (uc *TariffQueryUseCase) GetTariffInfo(ctx context.Context, hts8, arrivalCountry string) (*domain.ScheduleMetadata, error) {
	jurisdiction := uc.rules.ResolveJurisdiction(arrivalCountry)

	row, err := uc.catalog.Table(jurisdiction.Code).FindByCode(ctx, hts8)
	if err != nil {
		if domain.IsKind(err, domain.ErrTariffNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find tariff %s/%s: %w", jurisdiction.Code, hts8, err)
	}

	meta := row.Metadata()
	meta.Jurisdiction = jurisdiction.Code
	return &meta, nil
}

// SearchTariffs runs a prefix search against the search jurisdiction only.
func (uc *TariffQueryUseCase) SearchTariffs(ctx context.Context, term string) ([]domain.ScheduleMetadata, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []domain.ScheduleMetadata{}, nil
	}

	jurisdiction := uc.rules.SearchJurisdiction()
	rows, err := uc.catalog.Table(jurisdiction.Code).Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search tariffs %s: %w", jurisdiction.Code, err)
	}

	out := make([]domain.ScheduleMetadata, 0, len(rows))
	for i := range rows {
		meta := rows[i].Metadata()
		meta.Jurisdiction = jurisdiction.Code
		out = append(out, meta)
	}
	return out, nil
}

// Rules exposes the routing table for adapters that list jurisdictions.
func (uc *TariffQueryUseCase) Rules() *tariff.Rules {
	return uc.rules
}
