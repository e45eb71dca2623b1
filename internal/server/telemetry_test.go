package server

import (
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/pmcompanion/pmcompanion/internal/store"
)

func TestRecordTelemetryEndpoint(t *testing.T) {
	st, mock := newMockStore(t)
	h := &TelemetryHandler{Store: st}
	now := time.Now()

	expectPin(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO telemetry_events`)).
		WithArgs("chat-1", store.CategoryMaintenance, store.ModeChat, 812.5, 431, 0.0042, "gpt-4o-mini", store.StatusSuccess, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow("evt-1", now))
	mock.ExpectCommit()

	c, rec := newTestContext(t, http.MethodPost, "/api/chats/chat-1/telemetry",
		`{"category":"Maintenance & Repairs","ai_mode":"💬 Chat","latency_ms":812.5,"tokens_used":431,"estimated_cost_usd":0.0042,"model_name":"gpt-4o-mini","status":"success"}`)
	c.SetParamNames("id")
	c.SetParamValues("chat-1")
	if err := h.record(c); err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordTelemetryEndpointBareMode(t *testing.T) {
	st, _ := newMockStore(t)
	h := &TelemetryHandler{Store: st}

	c, _ := newTestContext(t, http.MethodPost, "/api/chats/chat-1/telemetry",
		`{"category":"Maintenance & Repairs","ai_mode":"Chat","model_name":"gpt-4o-mini","status":"success"}`)
	c.SetParamNames("id")
	c.SetParamValues("chat-1")
	err := h.record(c)
	if code := httpStatus(t, err); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bare mode label, got %d", code)
	}
}

func TestTelemetryReportEndpoint(t *testing.T) {
	st, mock := newMockStore(t)
	h := &TelemetryHandler{Store: st}

	from := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)

	expectPin(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*),`)).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count", "errors", "avg_latency", "tokens", "cost"}).
			AddRow(4, 1, 700.0, int64(3100), 0.03))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT category, COUNT(*)`)).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).AddRow(store.CategoryLease, 4))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ai_mode, COUNT(*)`)).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"ai_mode", "count"}).AddRow(store.ModeAsk, 4))
	mock.ExpectCommit()

	c, rec := newTestContext(t, http.MethodGet,
		"/api/telemetry/report?from=2026-08-22T00:00:00Z&to=2026-08-23T00:00:00Z", "")
	if err := h.report(c); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"success_rate":75`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTelemetryReportEndpointBadRange(t *testing.T) {
	st, _ := newMockStore(t)
	h := &TelemetryHandler{Store: st}

	c, _ := newTestContext(t, http.MethodGet, "/api/telemetry/report?from=yesterday", "")
	err := h.report(c)
	if code := httpStatus(t, err); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}
