package tariff

import "github.com/kirillkom/tariff-engine/internal/core/domain"

// Resolve selects the rate triple that governs row for goods from origin.
//
// A preferential program replaces the MFN triple when the origin maps to it
// and the row carries that program with at least one rate; column 2 is then
// zero. A null component inside an applied program falls back to the MFN
// component. Every other origin pays MFN plus column 2. Null rates count as
// zero and the call never fails.
func (r *Rules) Resolve(row *domain.DutyScheduleRow, origin string) domain.ResolvedRates {
	if row == nil {
		return domain.ResolvedRates{}
	}

	mfnAdVal := domain.RateOrZero(row.MFNAdValorem)
	mfnSpecific := domain.RateOrZero(row.MFNSpecific)
	mfnOther := domain.RateOrZero(row.MFNOther)

	if key, ok := r.ProgramFor(origin); ok {
		if program, found := row.Program(key); found && program.HasRates() {
			return domain.ResolvedRates{
				AdValorem: rateOr(program.AdValorem, mfnAdVal),
				Specific:  rateOr(program.Specific, mfnSpecific),
				Other:     rateOr(program.Other, mfnOther),
				Program:   key,
			}
		}
	}

	return domain.ResolvedRates{
		AdValorem: mfnAdVal + domain.RateOrZero(row.Col2AdValorem),
		Specific:  mfnSpecific + domain.RateOrZero(row.Col2Specific),
		Other:     mfnOther + domain.RateOrZero(row.Col2Other),
	}
}

func rateOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
