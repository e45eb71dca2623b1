package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ChatRecord is one conversation thread, the root of an ownership tree.
type ChatRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	WorkflowPhase string    `json:"workflow_phase"`
	UserID        string    `json:"user_id"`
	MessageCount  int       `json:"message_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateChat inserts a new chat owned by the session user. user_id is taken
// from current_user_id() server-side, so a row can never be created
// attributed to someone else.
func (s *Store) CreateChat(ctx context.Context, userID, name, category, phase string) (ChatRecord, error) {
	if strings.TrimSpace(name) == "" {
		return ChatRecord{}, fmt.Errorf("%w: chat name required", ErrInvalid)
	}
	if !ValidCategory(category) {
		return ChatRecord{}, fmt.Errorf("%w: unknown category %q", ErrInvalid, category)
	}
	if phase == "" {
		phase = DefaultWorkflowPhase
	}
	var rec ChatRecord
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
INSERT INTO chat_instances (name, category, workflow_phase, user_id)
VALUES ($1,$2,$3,current_user_id())
RETURNING id, name, category, workflow_phase, user_id, created_at, updated_at
`, name, category, phase).
			Scan(&rec.ID, &rec.Name, &rec.Category, &rec.WorkflowPhase, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt)
	})
	if err != nil {
		return ChatRecord{}, err
	}
	return rec, nil
}

// GetChat fetches a chat by id. Absent and not-owned are indistinguishable:
// both return ok=false.
func (s *Store) GetChat(ctx context.Context, userID, chatID string) (ChatRecord, bool, error) {
	var rec ChatRecord
	found := true
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
SELECT id, name, category, workflow_phase, user_id, created_at, updated_at
FROM chat_instances
WHERE id=$1
`, chatID).
			Scan(&rec.ID, &rec.Name, &rec.Category, &rec.WorkflowPhase, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil || !found {
		return ChatRecord{}, false, err
	}
	return rec, true, nil
}

// ListChats returns the caller's chats newest-first, optionally filtered by
// category, with a per-chat message count for list views.
func (s *Store) ListChats(ctx context.Context, userID, category string) ([]ChatRecord, error) {
	if category != "" && !ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalid, category)
	}
	var out []ChatRecord
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		var (
			rows *sql.Rows
			err  error
		)
		if category == "" {
			rows, err = tx.QueryContext(ctx, `
SELECT c.id, c.name, c.category, c.workflow_phase, c.user_id, c.created_at, c.updated_at,
       (SELECT COUNT(*) FROM chat_messages m WHERE m.chat_id = c.id) AS message_count
FROM chat_instances c
ORDER BY c.created_at DESC
`)
		} else {
			rows, err = tx.QueryContext(ctx, `
SELECT c.id, c.name, c.category, c.workflow_phase, c.user_id, c.created_at, c.updated_at,
       (SELECT COUNT(*) FROM chat_messages m WHERE m.chat_id = c.id) AS message_count
FROM chat_instances c
WHERE c.category=$1
ORDER BY c.created_at DESC
`, category)
		}
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var rec ChatRecord
			if err := rows.Scan(&rec.ID, &rec.Name, &rec.Category, &rec.WorkflowPhase, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt, &rec.MessageCount); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

// UpdateChatPhase advances workflow_phase, the only column writable after
// creation. updated_at is refreshed by the table trigger, not the caller.
func (s *Store) UpdateChatPhase(ctx context.Context, userID, chatID, phase string) (ChatRecord, bool, error) {
	if strings.TrimSpace(phase) == "" {
		return ChatRecord{}, false, fmt.Errorf("%w: workflow phase required", ErrInvalid)
	}
	var rec ChatRecord
	found := true
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
UPDATE chat_instances SET workflow_phase=$2
WHERE id=$1
RETURNING id, name, category, workflow_phase, user_id, created_at, updated_at
`, chatID, phase).
			Scan(&rec.ID, &rec.Name, &rec.Category, &rec.WorkflowPhase, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil || !found {
		return ChatRecord{}, false, err
	}
	return rec, true, nil
}

// DeleteChat removes a chat; messages, drafts, plans and telemetry cascade
// away in the same transaction. Returns false when no owned row matched.
func (s *Store) DeleteChat(ctx context.Context, userID, chatID string) (bool, error) {
	var deleted bool
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM chat_instances WHERE id=$1`, chatID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}
