package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MessageRecord is one turn of a chat transcript. Messages are append-only:
// no update path exists and only a chat cascade removes them.
type MessageRecord struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AddMessage appends a message to a chat the caller owns. An unowned or
// missing chat surfaces as an RLS write rejection.
func (s *Store) AddMessage(ctx context.Context, userID, chatID, role, content string) (MessageRecord, error) {
	if !ValidRole(role) {
		return MessageRecord{}, fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}
	if content == "" {
		return MessageRecord{}, fmt.Errorf("%w: message content required", ErrInvalid)
	}
	rec := MessageRecord{ChatID: chatID, Role: role, Content: content}
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
INSERT INTO chat_messages (chat_id, role, content)
VALUES ($1,$2,$3)
RETURNING id, created_at
`, chatID, role, content).Scan(&rec.ID, &rec.CreatedAt)
	})
	if err != nil {
		return MessageRecord{}, err
	}
	return rec, nil
}

// ListMessages returns the full transcript in insertion order. Ties on
// created_at break by id so the order is total.
func (s *Store) ListMessages(ctx context.Context, userID, chatID string) ([]MessageRecord, error) {
	var out []MessageRecord
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT id, chat_id, role, content, created_at
FROM chat_messages
WHERE chat_id=$1
ORDER BY created_at ASC, id ASC
`, chatID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var rec MessageRecord
			if err := rows.Scan(&rec.ID, &rec.ChatID, &rec.Role, &rec.Content, &rec.CreatedAt); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}
