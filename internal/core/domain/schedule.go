package domain

// DutyScheduleRow is one classification line of a jurisdiction's duty table.
// Rate fields are nil when the published schedule leaves them blank.
type DutyScheduleRow struct {
	HTS8          string                `json:"hts8"`
	Jurisdiction  string                `json:"jurisdiction"`
	Description   string                `json:"brief_description"`
	MFNTextRate   string                `json:"mfn_text_rate"`
	MFNAdValorem  *float64              `json:"mfn_ad_val_rate"`
	MFNSpecific   *float64              `json:"mfn_specific_rate"`
	MFNOther      *float64              `json:"mfn_other_rate"`
	Col2AdValorem *float64              `json:"col2_ad_val_rate"`
	Col2Specific  *float64              `json:"col2_specific_rate"`
	Col2Other     *float64              `json:"col2_other_rate"`
	Programs      []PreferentialProgram `json:"programs,omitempty"`
}

// PreferentialProgram holds a trade agreement's own rate triple for a row.
type PreferentialProgram struct {
	Key       string   `json:"key"`
	Indicator string   `json:"indicator,omitempty"`
	AdValorem *float64 `json:"ad_val_rate"`
	Specific  *float64 `json:"specific_rate"`
	Other     *float64 `json:"other_rate"`
}

// HasRates reports whether the program carries at least one rate component.
func (p PreferentialProgram) HasRates() bool {
	return p.AdValorem != nil || p.Specific != nil || p.Other != nil
}

// Program returns the row's sub-record for key, if present.
func (r *DutyScheduleRow) Program(key string) (PreferentialProgram, bool) {
	for _, p := range r.Programs {
		if p.Key == key {
			return p, true
		}
	}
	return PreferentialProgram{}, false
}

// Metadata projects the row onto its raw, unresolved schedule fields.
func (r *DutyScheduleRow) Metadata() ScheduleMetadata {
	return ScheduleMetadata{
		HTS8:         r.HTS8,
		Jurisdiction: r.Jurisdiction,
		Description:  r.Description,
		MFNTextRate:  r.MFNTextRate,
		MFNAdValorem: r.MFNAdValorem,
		MFNSpecific:  r.MFNSpecific,
		MFNOther:     r.MFNOther,
	}
}

// ScheduleMetadata is the reverse-lookup view of a row.
type ScheduleMetadata struct {
	HTS8         string   `json:"hts8"`
	Jurisdiction string   `json:"jurisdiction"`
	Description  string   `json:"brief_description"`
	MFNTextRate  string   `json:"mfn_text_rate"`
	MFNAdValorem *float64 `json:"mfn_ad_val_rate"`
	MFNSpecific  *float64 `json:"mfn_specific_rate"`
	MFNOther     *float64 `json:"mfn_other_rate"`
}

// Rate returns a pointer to v, for building rows with explicit rates.
func Rate(v float64) *float64 {
	return &v
}

// RateOrZero dereferences a nullable rate, treating nil as zero.
func RateOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
