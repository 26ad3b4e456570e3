package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/tariff-engine/internal/config"
	"github.com/kirillkom/tariff-engine/internal/core/domain"
)

func multipartSchedule(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(t, config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadScheduleSuccess(t *testing.T) {
	handler := newTestHandler(t, config.Config{APIRequestValidation: true})

	body, contentType := multipartSchedule(t, "tariff_2024.xlsx", []byte("PK"))
	req := httptest.NewRequest(http.MethodPost, "/v1/schedules/US/imports", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}

	var job map[string]any
	if err := json.NewDecoder(res.Body).Decode(&job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job["id"] != "job-1" || job["jurisdiction"] != "US" || job["status"] != "uploaded" {
		t.Fatalf("unexpected response: %+v", job)
	}
}

func TestUploadScheduleMissingMultipartField(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/schedules/US/imports", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadScheduleTooLarge(t *testing.T) {
	handler := newTestHandler(t, config.Config{APIMaxUploadBytes: 64})

	body, contentType := multipartSchedule(t, "big.xlsx", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/v1/schedules/US/imports", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestUploadScheduleMapsInvalidInputTo400(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		&quoterFake{},
		testRules(t),
		importerFake{err: domain.WrapError(domain.ErrInvalidInput, "upload schedule", errors.New("unsupported jurisdiction"))},
		importsFake{},
	).Handler()

	body, contentType := multipartSchedule(t, "tariff.xlsx", []byte("PK"))
	req := httptest.NewRequest(http.MethodPost, "/v1/schedules/ATLANTIS/imports", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetImportByID(t *testing.T) {
	handler := newTestHandler(t, config.Config{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/schedules/imports/job-7", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var job domain.ImportJob
	if err := json.NewDecoder(res.Body).Decode(&job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.ID != "job-7" || job.Status != domain.ImportStatusReady || job.RowCount != 12 {
		t.Fatalf("unexpected job: %+v", job)
	}
}
