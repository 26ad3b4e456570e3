package httpadapter

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/tariff-engine/internal/config"
	"github.com/kirillkom/tariff-engine/internal/core/domain"
)

func TestTariffHealthReturnsPlainText(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/tariff/health", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.HasPrefix(res.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("expected text/plain, got %q", res.Header().Get("Content-Type"))
	}
	if res.Body.String() != healthMessage {
		t.Fatalf("unexpected body %q", res.Body.String())
	}
}

func TestCalculateTariffReturnsQuote(t *testing.T) {
	quoter := &quoterFake{result: &domain.DutyQuoteResult{
		HTS8:                "64039900",
		ItemValue:           1000,
		Jurisdiction:        "US",
		AdValoremRate:       0.1,
		DutyAmount:          100,
		TotalCost:           1100,
		Found:               true,
		TotalDutyPercentage: 0.1,
		DutyTypes:           []string{},
	}}
	handler := NewRouter(config.Config{}, quoter, testRules(t), nil, nil).Handler()

	payload, _ := json.Marshal(map[string]any{
		"hts8":               " 64039900 ",
		"item_value":         1000,
		"item_quantity":      2,
		"origin_country":     "CN",
		"country_of_arrival": "US",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/tariff/calculate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if quoter.lastReq.HTS8 != "64039900" || quoter.lastReq.ArrivalCountry != "US" {
		t.Fatalf("unexpected forwarded request: %+v", quoter.lastReq)
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["tariff_amount"] != 100.0 || body["total_cost"] != 1100.0 || body["tariff_found"] != true {
		t.Fatalf("unexpected response: %+v", body)
	}
	if types, ok := body["duty_types"].([]any); !ok || len(types) != 0 {
		t.Fatalf("expected empty duty_types list, got %+v", body["duty_types"])
	}
}

func TestCalculateTariffNotFoundIsStill200(t *testing.T) {
	handler := NewRouter(config.Config{}, &quoterFake{}, testRules(t), nil, nil).Handler()

	payload, _ := json.Marshal(map[string]any{"hts8": "99999999", "item_value": 40})
	req := httptest.NewRequest(http.MethodPost, "/api/tariff/calculate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["tariff_found"] != false || body["brief_description"] != domain.ProductNotFoundDescription || body["total_cost"] != 40.0 {
		t.Fatalf("unexpected not-found response: %+v", body)
	}
}

func TestCalculateTariffRejectsBadInput(t *testing.T) {
	handler := NewRouter(config.Config{}, &quoterFake{}, testRules(t), nil, nil).Handler()

	cases := map[string]string{
		"invalid json":   "{",
		"missing code":   `{"item_value": 10}`,
		"negative value": `{"hts8": "64039900", "item_value": -1}`,
	}
	for name, raw := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/tariff/calculate", strings.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, res.Code)
		}
	}
}

func TestGetTariffInfo(t *testing.T) {
	quoter := &quoterFake{info: &domain.ScheduleMetadata{
		HTS8:         "64039900",
		Jurisdiction: "GB",
		Description:  "Footwear",
		MFNAdValorem: domain.Rate(0.08),
	}}
	handler := NewRouter(config.Config{}, quoter, testRules(t), nil, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/tariff/info?htsCode=64039900&country=United%20Kingdom", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if quoter.lastCode != "64039900" || quoter.lastCountry != "United Kingdom" {
		t.Fatalf("unexpected forwarded params: %q %q", quoter.lastCode, quoter.lastCountry)
	}
}

func TestGetTariffInfoReturns404WhenAbsent(t *testing.T) {
	handler := NewRouter(config.Config{}, &quoterFake{}, testRules(t), nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/tariff/info?htsCode=00000000", nil))

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetTariffInfoRequiresCode(t *testing.T) {
	handler := NewRouter(config.Config{}, &quoterFake{}, testRules(t), nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/tariff/info", nil))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchTariffsAppliesDisplayLimit(t *testing.T) {
	quoter := &quoterFake{matches: []domain.ScheduleMetadata{
		{HTS8: "64031000"},
		{HTS8: "64032000"},
		{HTS8: "64039900"},
	}}
	handler := NewRouter(config.Config{SearchDefaultLimit: 50}, quoter, testRules(t), nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/tariff/search?q=leather+shoes&limit=2", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if quoter.lastTerm != "leather shoes" {
		t.Fatalf("unexpected search term %q", quoter.lastTerm)
	}
	var body []map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body) != 2 || body[0]["hts8"] != "64031000" {
		t.Fatalf("unexpected search response: %+v", body)
	}
}

func TestSearchTariffsEmptyResultIsList(t *testing.T) {
	handler := NewRouter(config.Config{}, &quoterFake{matches: []domain.ScheduleMetadata{}}, testRules(t), nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/tariff/search?q=", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := strings.TrimSpace(res.Body.String()); got != "[]" {
		t.Fatalf("expected empty list, got %q", got)
	}
}

func TestListJurisdictions(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/tariff/jurisdictions", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body jurisdictionsResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Baseline != "US" || len(body.Jurisdictions) != 18 {
		t.Fatalf("unexpected jurisdictions: baseline=%q count=%d", body.Baseline, len(body.Jurisdictions))
	}
}

func TestOpenAPIDocumentIsServed(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

	raw, _ := io.ReadAll(res.Body)
	if res.Code != http.StatusOK || !bytes.Contains(raw, []byte("/api/tariff/calculate")) {
		t.Fatalf("expected openapi document, got %d", res.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestHandler(t, config.Config{CORSAllowedOrigins: []string{"https://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/tariff/calculate", nil)
	req.Header.Set("Origin", "https://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "https://localhost:3000" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}
