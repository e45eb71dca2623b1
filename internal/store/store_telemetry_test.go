package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestRecordEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()

	expectSessionPin(mock, testUser)
	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO telemetry_events (chat_id, category, ai_mode, latency_ms, tokens_used, estimated_cost_usd, model_name, status, error_message, "timestamp")
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,COALESCE($10, now()))
RETURNING id, "timestamp"
`)).
		WithArgs("chat-1", CategoryMaintenance, ModeChat, 812.5, 431, 0.0042, "gpt-4o-mini", StatusSuccess, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow("evt-1", now))
	mock.ExpectCommit()

	rec, err := st.RecordEvent(context.Background(), testUser, TelemetryEventRecord{
		ChatID:           "chat-1",
		Category:         CategoryMaintenance,
		AIMode:           ModeChat,
		LatencyMS:        812.5,
		TokensUsed:       431,
		EstimatedCostUSD: 0.0042,
		ModelName:        "gpt-4o-mini",
		Status:           StatusSuccess,
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if rec.ID != "evt-1" || rec.Timestamp.IsZero() {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordEventShapeChecks(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	base := TelemetryEventRecord{
		ChatID:    "chat-1",
		Category:  CategoryLease,
		AIMode:    ModeAsk,
		ModelName: "gpt-4o-mini",
		Status:    StatusSuccess,
	}

	cases := []struct {
		name   string
		mutate func(r *TelemetryEventRecord)
	}{
		{"bare mode label", func(r *TelemetryEventRecord) { r.AIMode = "Chat" }},
		{"unknown category", func(r *TelemetryEventRecord) { r.Category = "Legal" }},
		{"unknown status", func(r *TelemetryEventRecord) { r.Status = "pending" }},
		{"error without message", func(r *TelemetryEventRecord) { r.Status = StatusError }},
		{"success with message", func(r *TelemetryEventRecord) { r.ErrorMessage = "timeout" }},
		{"negative latency", func(r *TelemetryEventRecord) { r.LatencyMS = -1 }},
		{"negative tokens", func(r *TelemetryEventRecord) { r.TokensUsed = -5 }},
	}
	for _, tc := range cases {
		rec := base
		tc.mutate(&rec)
		if _, err := st.RecordEvent(context.Background(), testUser, rec); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: expected ErrInvalid, got %v", tc.name, err)
		}
	}
}

func TestReport(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	to := time.Now()
	from := to.Add(-24 * time.Hour)

	expectSessionPin(mock, testUser)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*),`)).
		WithArgs(from.UTC(), to.UTC()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "errors", "avg_latency", "tokens", "cost"}).
			AddRow(10, 2, 950.25, int64(8200), 0.081))
	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT category, COUNT(*)
FROM telemetry_events
`)).
		WithArgs(from.UTC(), to.UTC()).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).
			AddRow(CategoryMaintenance, 7).
			AddRow(CategoryLease, 3))
	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT ai_mode, COUNT(*)
FROM telemetry_events
`)).
		WithArgs(from.UTC(), to.UTC()).
		WillReturnRows(sqlmock.NewRows([]string{"ai_mode", "count"}).
			AddRow(ModeChat, 6).
			AddRow(ModePlan, 4))
	mock.ExpectCommit()

	rep, err := st.Report(context.Background(), testUser, from, to)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if rep.TotalEvents != 10 || rep.ErrorCount != 2 {
		t.Fatalf("unexpected totals: %+v", rep)
	}
	if rep.SuccessRate != 80 {
		t.Fatalf("expected 80%% success rate, got %v", rep.SuccessRate)
	}
	if rep.ByCategory[CategoryMaintenance] != 7 || rep.ByMode[ModePlan] != 4 {
		t.Fatalf("unexpected distributions: %+v", rep)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReportRejectsEmptyRange(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()
	if _, err := st.Report(context.Background(), testUser, now, now); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestRecentActivityDefaultLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()

	expectSessionPin(mock, testUser)
	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT chat_id, category, ai_mode, latency_ms, status, "timestamp"
FROM telemetry_events
ORDER BY "timestamp" DESC
LIMIT $1
`)).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"chat_id", "category", "ai_mode", "latency_ms", "status", "timestamp"}).
			AddRow("chat-1", CategoryCommunication, ModeDraft, 640.0, StatusSuccess, now))
	mock.ExpectCommit()

	entries, err := st.RecentActivity(context.Background(), testUser, 0)
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(entries) != 1 || entries[0].AIMode != ModeDraft {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
