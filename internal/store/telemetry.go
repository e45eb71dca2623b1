package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TelemetryEventRecord is one observation per LLM call, success or failure.
// Events are write-once; only a chat cascade removes them.
type TelemetryEventRecord struct {
	ID               string    `json:"id"`
	ChatID           string    `json:"chat_id"`
	Category         string    `json:"category"`
	AIMode           string    `json:"ai_mode"`
	LatencyMS        float64   `json:"latency_ms"`
	TokensUsed       int       `json:"tokens_used"`
	EstimatedCostUSD float64   `json:"estimated_cost_usd"`
	ModelName        string    `json:"model_name"`
	Status           string    `json:"status"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// TelemetryReport aggregates events over a time range. Average latency is
// computed over successful events only, matching how the UI reported it.
type TelemetryReport struct {
	TotalEvents   int            `json:"total_events"`
	ErrorCount    int            `json:"error_count"`
	SuccessRate   float64        `json:"success_rate"`
	AvgLatencyMS  float64        `json:"avg_latency_ms"`
	TotalTokens   int64          `json:"total_tokens"`
	TotalCostUSD  float64        `json:"total_cost_usd"`
	ByCategory    map[string]int `json:"category_distribution"`
	ByMode        map[string]int `json:"ai_mode_distribution"`
}

// ActivityEntry is a compact recent-activity row for dashboards.
type ActivityEntry struct {
	ChatID    string    `json:"chat_id"`
	Category  string    `json:"category"`
	AIMode    string    `json:"ai_mode"`
	LatencyMS float64   `json:"latency_ms"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordEvent persists one telemetry observation. The caller supplies the
// cost estimate; the store only checks shape. A zero Timestamp defers to the
// database clock.
func (s *Store) RecordEvent(ctx context.Context, userID string, rec TelemetryEventRecord) (TelemetryEventRecord, error) {
	if !ValidCategory(rec.Category) {
		return TelemetryEventRecord{}, fmt.Errorf("%w: unknown category %q", ErrInvalid, rec.Category)
	}
	if !ValidMode(rec.AIMode) {
		return TelemetryEventRecord{}, fmt.Errorf("%w: unknown ai_mode %q", ErrInvalid, rec.AIMode)
	}
	if !ValidStatus(rec.Status) {
		return TelemetryEventRecord{}, fmt.Errorf("%w: unknown status %q", ErrInvalid, rec.Status)
	}
	if rec.Status == StatusError && rec.ErrorMessage == "" {
		return TelemetryEventRecord{}, fmt.Errorf("%w: error_message required when status is error", ErrInvalid)
	}
	if rec.Status == StatusSuccess && rec.ErrorMessage != "" {
		return TelemetryEventRecord{}, fmt.Errorf("%w: error_message must be empty when status is success", ErrInvalid)
	}
	if rec.LatencyMS < 0 || rec.TokensUsed < 0 || rec.EstimatedCostUSD < 0 {
		return TelemetryEventRecord{}, fmt.Errorf("%w: latency, tokens and cost must be non-negative", ErrInvalid)
	}
	var ts sql.NullTime
	if !rec.Timestamp.IsZero() {
		ts = sql.NullTime{Time: rec.Timestamp.UTC(), Valid: true}
	}
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
INSERT INTO telemetry_events (chat_id, category, ai_mode, latency_ms, tokens_used, estimated_cost_usd, model_name, status, error_message, "timestamp")
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,COALESCE($10, now()))
RETURNING id, "timestamp"
`, rec.ChatID, rec.Category, rec.AIMode, rec.LatencyMS, rec.TokensUsed, rec.EstimatedCostUSD, rec.ModelName, rec.Status, nullableString(rec.ErrorMessage), ts).
			Scan(&rec.ID, &rec.Timestamp)
	})
	if err != nil {
		return TelemetryEventRecord{}, err
	}
	return rec, nil
}

// ListEvents returns a chat's telemetry newest-first, capped at limit.
func (s *Store) ListEvents(ctx context.Context, userID, chatID string, limit int) ([]TelemetryEventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []TelemetryEventRecord
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT id, chat_id, category, ai_mode, latency_ms, tokens_used, estimated_cost_usd, model_name, status, error_message, "timestamp"
FROM telemetry_events
WHERE chat_id=$1
ORDER BY "timestamp" DESC
LIMIT $2
`, chatID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var rec TelemetryEventRecord
			var errMsg sql.NullString
			if err := rows.Scan(&rec.ID, &rec.ChatID, &rec.Category, &rec.AIMode, &rec.LatencyMS, &rec.TokensUsed, &rec.EstimatedCostUSD, &rec.ModelName, &rec.Status, &errMsg, &rec.Timestamp); err != nil {
				return err
			}
			rec.ErrorMessage = errMsg.String
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

// Report aggregates the caller's telemetry within [from, to).
func (s *Store) Report(ctx context.Context, userID string, from, to time.Time) (TelemetryReport, error) {
	if !to.After(from) {
		return TelemetryReport{}, fmt.Errorf("%w: report range is empty", ErrInvalid)
	}
	rep := TelemetryReport{ByCategory: map[string]int{}, ByMode: map[string]int{}}
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status='error'),
       COALESCE(AVG(latency_ms) FILTER (WHERE status='success'), 0),
       COALESCE(SUM(tokens_used), 0),
       COALESCE(SUM(estimated_cost_usd), 0)
FROM telemetry_events
WHERE "timestamp" >= $1 AND "timestamp" < $2
`, from.UTC(), to.UTC()).
			Scan(&rep.TotalEvents, &rep.ErrorCount, &rep.AvgLatencyMS, &rep.TotalTokens, &rep.TotalCostUSD)
		if err != nil {
			return err
		}
		if rep.TotalEvents > 0 {
			rep.SuccessRate = float64(rep.TotalEvents-rep.ErrorCount) / float64(rep.TotalEvents) * 100
		}
		rows, err := tx.QueryContext(ctx, `
SELECT category, COUNT(*)
FROM telemetry_events
WHERE "timestamp" >= $1 AND "timestamp" < $2
GROUP BY category
`, from.UTC(), to.UTC())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var cat string
			var n int
			if err := rows.Scan(&cat, &n); err != nil {
				return err
			}
			rep.ByCategory[cat] = n
		}
		if err := rows.Err(); err != nil {
			return err
		}
		modeRows, err := tx.QueryContext(ctx, `
SELECT ai_mode, COUNT(*)
FROM telemetry_events
WHERE "timestamp" >= $1 AND "timestamp" < $2
GROUP BY ai_mode
`, from.UTC(), to.UTC())
		if err != nil {
			return err
		}
		defer modeRows.Close()
		for modeRows.Next() {
			var mode string
			var n int
			if err := modeRows.Scan(&mode, &n); err != nil {
				return err
			}
			rep.ByMode[mode] = n
		}
		return modeRows.Err()
	})
	if err != nil {
		return TelemetryReport{}, err
	}
	return rep, nil
}

// RecentActivity returns the caller's latest events across all chats.
func (s *Store) RecentActivity(ctx context.Context, userID string, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []ActivityEntry
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT chat_id, category, ai_mode, latency_ms, status, "timestamp"
FROM telemetry_events
ORDER BY "timestamp" DESC
LIMIT $1
`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var rec ActivityEntry
			if err := rows.Scan(&rec.ChatID, &rec.Category, &rec.AIMode, &rec.LatencyMS, &rec.Status, &rec.Timestamp); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}
