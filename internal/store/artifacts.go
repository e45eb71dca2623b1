package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EmailDraftRecord is a generated email draft bound to a chat. Metadata is a
// free-form JSON object the store does not interpret.
type EmailDraftRecord struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chat_id"`
	Subject   string          `json:"subject,omitempty"`
	Recipient string          `json:"recipient,omitempty"`
	Body      string          `json:"body"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// ActionPlanRecord is a generated action plan bound to a chat. Checklist
// ordering is preserved exactly as written.
type ActionPlanRecord struct {
	ID                string    `json:"id"`
	ChatID            string    `json:"chat_id"`
	Title             string    `json:"title"`
	Checklist         []string  `json:"checklist"`
	KeyConsiderations []string  `json:"key_considerations,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// AddEmailDraft stores a Draft-mode artifact. Drafts are immutable once
// written.
func (s *Store) AddEmailDraft(ctx context.Context, userID string, rec EmailDraftRecord) (EmailDraftRecord, error) {
	if rec.Body == "" {
		return EmailDraftRecord{}, fmt.Errorf("%w: draft body required", ErrInvalid)
	}
	meta := rec.Metadata
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
INSERT INTO email_drafts (chat_id, subject, recipient, body, metadata)
VALUES ($1,$2,$3,$4,$5)
RETURNING id, created_at
`, rec.ChatID, nullableString(rec.Subject), nullableString(rec.Recipient), rec.Body, []byte(meta)).
			Scan(&rec.ID, &rec.CreatedAt)
	})
	if err != nil {
		return EmailDraftRecord{}, err
	}
	rec.Metadata = meta
	return rec, nil
}

// ListEmailDrafts returns a chat's drafts most-recent-first.
func (s *Store) ListEmailDrafts(ctx context.Context, userID, chatID string) ([]EmailDraftRecord, error) {
	var out []EmailDraftRecord
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT id, chat_id, subject, recipient, body, metadata, created_at
FROM email_drafts
WHERE chat_id=$1
ORDER BY created_at DESC
`, chatID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var rec EmailDraftRecord
			var subject, recipient sql.NullString
			var meta []byte
			if err := rows.Scan(&rec.ID, &rec.ChatID, &subject, &recipient, &rec.Body, &meta, &rec.CreatedAt); err != nil {
				return err
			}
			rec.Subject = subject.String
			rec.Recipient = recipient.String
			rec.Metadata = json.RawMessage(meta)
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

// AddActionPlan stores a Plan-mode artifact. The checklist must carry at
// least one step; key considerations may be absent.
func (s *Store) AddActionPlan(ctx context.Context, userID string, rec ActionPlanRecord) (ActionPlanRecord, error) {
	if strings.TrimSpace(rec.Title) == "" {
		return ActionPlanRecord{}, fmt.Errorf("%w: plan title required", ErrInvalid)
	}
	if len(rec.Checklist) == 0 {
		return ActionPlanRecord{}, fmt.Errorf("%w: plan checklist required", ErrInvalid)
	}
	checklist, err := json.Marshal(rec.Checklist)
	if err != nil {
		return ActionPlanRecord{}, err
	}
	var considerations interface{}
	if rec.KeyConsiderations != nil {
		b, err := json.Marshal(rec.KeyConsiderations)
		if err != nil {
			return ActionPlanRecord{}, err
		}
		considerations = b
	}
	err = s.withUser(ctx, userID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
INSERT INTO action_plans (chat_id, title, checklist, key_considerations)
VALUES ($1,$2,$3,$4)
RETURNING id, created_at
`, rec.ChatID, rec.Title, checklist, considerations).
			Scan(&rec.ID, &rec.CreatedAt)
	})
	if err != nil {
		return ActionPlanRecord{}, err
	}
	return rec, nil
}

// ListActionPlans returns a chat's plans most-recent-first.
func (s *Store) ListActionPlans(ctx context.Context, userID, chatID string) ([]ActionPlanRecord, error) {
	var out []ActionPlanRecord
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT id, chat_id, title, checklist, key_considerations, created_at
FROM action_plans
WHERE chat_id=$1
ORDER BY created_at DESC
`, chatID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var rec ActionPlanRecord
			var checklist []byte
			var considerations []byte
			if err := rows.Scan(&rec.ID, &rec.ChatID, &rec.Title, &checklist, &considerations, &rec.CreatedAt); err != nil {
				return err
			}
			if err := json.Unmarshal(checklist, &rec.Checklist); err != nil {
				return err
			}
			if considerations != nil {
				if err := json.Unmarshal(considerations, &rec.KeyConsiderations); err != nil {
					return err
				}
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}
