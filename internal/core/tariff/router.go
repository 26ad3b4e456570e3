package tariff

import "github.com/kirillkom/tariff-engine/internal/core/domain"

// ResolveJurisdiction maps an arrival country code or name onto the
// jurisdiction whose duty table governs the shipment. Empty or unknown
// input routes to the baseline rather than failing.
func (r *Rules) ResolveJurisdiction(arrival string) domain.Jurisdiction {
	key := normalizeKey(arrival)
	if key == "" {
		return r.baseline
	}
	if j, ok := r.byKey[key]; ok {
		return j
	}
	return r.baseline
}

// IsSupported reports whether arrival names a configured jurisdiction
// without falling back to the baseline.
func (r *Rules) IsSupported(arrival string) bool {
	_, ok := r.byKey[normalizeKey(arrival)]
	return ok
}
