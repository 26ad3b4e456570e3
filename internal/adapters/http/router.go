package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/tariff-engine/internal/config"
	"github.com/kirillkom/tariff-engine/internal/core/domain"
	"github.com/kirillkom/tariff-engine/internal/core/ports"
	"github.com/kirillkom/tariff-engine/internal/core/tariff"
)

const (
	healthMessage   = "Tariff Calculator API is running"
	maxQuoteBodyLen = 1 << 20
)

// Recorder receives request and domain outcome metrics.
type Recorder interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
	RecordQuote(jurisdiction string, found bool, program string, totalRate float64)
	RecordQuoteError(jurisdiction string)
	RecordSearch(results int)
	RecordImportQueued(jurisdiction string)
}

type Router struct {
	cfg      config.Config
	quoter   ports.TariffQuoter
	rules    *tariff.Rules
	importer ports.ScheduleImporter
	imports  ports.ImportReader
	metrics  Recorder
}

// NewRouter builds the API router. importer and imports may be nil, in which
// case the schedule import endpoints answer 501.
func NewRouter(
	cfg config.Config,
	quoter ports.TariffQuoter,
	rules *tariff.Rules,
	importer ports.ScheduleImporter,
	imports ports.ImportReader,
) *Router {
	return &Router{
		cfg:      cfg,
		quoter:   quoter,
		rules:    rules,
		importer: importer,
		imports:  imports,
	}
}

func (rt *Router) WithMetrics(metrics Recorder) *Router {
	rt.metrics = metrics
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", rt.healthz)
	r.Get("/api/tariff/health", rt.tariffHealth)
	r.Get("/openapi.yaml", rt.openAPI)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Group(func(g chi.Router) {
		g.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
		})
		g.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIBackpressureMax, rt.cfg.APIBackpressureWait)
		})
		if rt.cfg.APIRequestValidation {
			if _, router, err := loadOpenAPI(context.Background()); err != nil {
				slog.Error("openapi_validation_disabled", "error", err)
			} else {
				g.Use(func(next http.Handler) http.Handler {
					return requestValidationMiddleware(next, router)
				})
			}
		}

		g.Post("/api/tariff/calculate", rt.calculateTariff)
		g.Get("/api/tariff/info", rt.getTariffInfo)
		g.Get("/api/tariff/search", rt.searchTariffs)
		g.Get("/api/tariff/jurisdictions", rt.listJurisdictions)
		g.Post("/v1/schedules/{jurisdiction}/imports", rt.uploadSchedule)
		g.Get("/v1/schedules/imports/{id}", rt.getImportByID)
	})

	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) tariffHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(healthMessage))
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIDocument)
}

func (rt *Router) calculateTariff(w http.ResponseWriter, r *http.Request) {
	var req domain.DutyQuoteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuoteBodyLen)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req.HTS8 = strings.TrimSpace(req.HTS8)
	if req.HTS8 == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hts8 is required"})
		return
	}
	if req.ItemValue < 0 || req.ItemQuantity < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_value and item_quantity must not be negative"})
		return
	}

	result, err := rt.quoter.CalculateTariff(r.Context(), req)
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordQuoteError(rt.rules.ResolveJurisdiction(req.ArrivalCountry).Code)
		}
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordQuote(result.Jurisdiction, result.Found, result.Program, result.TotalDutyPercentage)
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getTariffInfo(w http.ResponseWriter, r *http.Request) {
	var htsCode, country string
	if err := runtime.BindQueryParameter("form", true, true, "htsCode", r.URL.Query(), &htsCode); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "country", r.URL.Query(), &country); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	htsCode = strings.TrimSpace(htsCode)
	if htsCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "htsCode is required"})
		return
	}

	meta, err := rt.quoter.GetTariffInfo(r.Context(), htsCode, country)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if meta == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": domain.ErrTariffNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (rt *Router) searchTariffs(w http.ResponseWriter, r *http.Request) {
	var q string
	var limit *int
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	display := rt.cfg.SearchDefaultLimit
	if limit != nil {
		if *limit < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be positive"})
			return
		}
		display = *limit
	}

	results, err := rt.quoter.SearchTariffs(r.Context(), q)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(len(results))
	}
	// The facade returns every match; limit only trims what is sent back.
	if display > 0 && len(results) > display {
		results = results[:display]
	}
	writeJSON(w, http.StatusOK, results)
}

type jurisdictionsResponse struct {
	Baseline      string                `json:"baseline"`
	Search        string                `json:"search"`
	Jurisdictions []domain.Jurisdiction `json:"jurisdictions"`
	Programs      []domain.ProgramRule  `json:"programs"`
}

func (rt *Router) listJurisdictions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, jurisdictionsResponse{
		Baseline:      rt.rules.Baseline().Code,
		Search:        rt.rules.SearchJurisdiction().Code,
		Jurisdictions: rt.rules.Jurisdictions(),
		Programs:      rt.rules.Programs(),
	})
}

func (rt *Router) uploadSchedule(w http.ResponseWriter, r *http.Request) {
	if rt.importer == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "schedule imports are not configured"})
		return
	}
	if rt.cfg.APIMaxUploadBytes > 0 {
		if r.ContentLength > rt.cfg.APIMaxUploadBytes {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "schedule file is too large"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.APIMaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "schedule file is too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	job, err := rt.importer.Upload(r.Context(), chi.URLParam(r, "jurisdiction"), fileHeader.Filename, file)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordImportQueued(job.Jurisdiction)
	}

	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getImportByID(w http.ResponseWriter, r *http.Request) {
	if rt.imports == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "schedule imports are not configured"})
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "import id is required"})
		return
	}

	job, err := rt.imports.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
