package tariff

import "github.com/kirillkom/tariff-engine/internal/core/domain"

// ComputeDuty applies resolved rates to the declared item value.
//
// All three components are fractions of item value, specific and other
// included, even though real schedules express specific duty per unit.
// Quantity never enters the arithmetic and nothing is rounded.
func ComputeDuty(rates domain.ResolvedRates, itemValue float64) domain.DutyBreakdown {
	adVal := itemValue * rates.AdValorem
	specific := itemValue * rates.Specific
	other := itemValue * rates.Other
	total := adVal + specific + other

	return domain.DutyBreakdown{
		AdValoremAmount: adVal,
		SpecificAmount:  specific,
		OtherAmount:     other,
		TotalAmount:     total,
		TotalPercentage: rates.AdValorem + rates.Specific + rates.Other,
		TotalCost:       itemValue + total,
	}
}
