package domain

const ProductNotFoundDescription = "Product not found"

// DutyQuoteRequest describes one shipment line to be priced.
// TransportMode, EntryDate and LoadingDate are accepted for callers that
// collect them but take no part in the duty computation.
type DutyQuoteRequest struct {
	HTS8           string  `json:"hts8"`
	ItemValue      float64 `json:"item_value"`
	ItemQuantity   float64 `json:"item_quantity"`
	OriginCountry  string  `json:"origin_country"`
	ArrivalCountry string  `json:"country_of_arrival"`
	TransportMode  string  `json:"mode_of_transport,omitempty"`
	EntryDate      string  `json:"entry_date,omitempty"`
	LoadingDate    string  `json:"loading_date,omitempty"`
}

// ResolvedRates is the governing rate triple after program and column 2
// resolution. Program is empty when the MFN regime applies.
type ResolvedRates struct {
	AdValorem float64 `json:"ad_val_rate"`
	Specific  float64 `json:"specific_rate"`
	Other     float64 `json:"other_rate"`
	Program   string  `json:"program,omitempty"`
}

// DutyBreakdown holds the per-component duty amounts for one item value.
type DutyBreakdown struct {
	AdValoremAmount float64 `json:"ad_val_amount"`
	SpecificAmount  float64 `json:"specific_amount"`
	OtherAmount     float64 `json:"other_amount"`
	TotalAmount     float64 `json:"total_amount"`
	TotalPercentage float64 `json:"total_percentage"`
	TotalCost       float64 `json:"total_cost"`
}

type DutyQuoteResult struct {
	HTS8                string   `json:"hts8"`
	Description         string   `json:"brief_description"`
	MFNTextRate         string   `json:"mfn_text_rate"`
	ItemValue           float64  `json:"item_value"`
	ItemQuantity        float64  `json:"item_quantity"`
	OriginCountry       string   `json:"origin_country"`
	Jurisdiction        string   `json:"jurisdiction"`
	Program             string   `json:"program,omitempty"`
	AdValoremRate       float64  `json:"ad_val_rate"`
	SpecificRate        float64  `json:"specific_rate"`
	OtherRate           float64  `json:"other_rate"`
	AdValoremAmount     float64  `json:"ad_val_amount"`
	SpecificAmount      float64  `json:"specific_amount"`
	OtherAmount         float64  `json:"other_amount"`
	DutyAmount          float64  `json:"tariff_amount"`
	TotalCost           float64  `json:"total_cost"`
	Found               bool     `json:"tariff_found"`
	TotalDutyPercentage float64  `json:"total_tariff_percentage"`
	DutyTypes           []string `json:"duty_types"`
}

// NotFoundQuote is the zero-duty result reported for an unknown code.
func NotFoundQuote(req DutyQuoteRequest, jurisdiction string) *DutyQuoteResult {
	return &DutyQuoteResult{
		HTS8:          req.HTS8,
		Description:   ProductNotFoundDescription,
		ItemValue:     req.ItemValue,
		ItemQuantity:  req.ItemQuantity,
		OriginCountry: req.OriginCountry,
		Jurisdiction:  jurisdiction,
		TotalCost:     req.ItemValue,
		Found:         false,
		DutyTypes:     []string{},
	}
}
