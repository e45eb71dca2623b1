// Package store persists chat state, generated artifacts and telemetry in
// Postgres. Every row is scoped to its owning end user by row-level security:
// user-scoped calls run inside a transaction whose app.user_id setting is
// pinned to the caller, which current_user_id() resolves inside the policies.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Store struct {
	DB *sql.DB
}

// Work categories a chat can be scoped to.
const (
	CategoryLease         = "Lease & Contracts"
	CategoryMaintenance   = "Maintenance & Repairs"
	CategoryCommunication = "Tenant Communications"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AI interaction modes. The glyph is part of the stored value.
const (
	ModeChat  = "💬 Chat"
	ModeDraft = "✉️ Draft"
	ModePlan  = "📋 Plan"
	ModeAsk   = "❓ Ask"
)

// Telemetry event outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DefaultWorkflowPhase is stamped on chats created without an explicit phase.
const DefaultWorkflowPhase = "assessment"

// ErrInvalid marks client-side validation failures so callers can map them
// to a 400 without string matching.
var ErrInvalid = errors.New("invalid argument")

func ValidCategory(c string) bool {
	switch c {
	case CategoryLease, CategoryMaintenance, CategoryCommunication:
		return true
	}
	return false
}

func ValidRole(r string) bool {
	return r == RoleUser || r == RoleAssistant
}

func ValidMode(m string) bool {
	switch m {
	case ModeChat, ModeDraft, ModePlan, ModeAsk:
		return true
	}
	return false
}

func ValidStatus(s string) bool {
	return s == StatusSuccess || s == StatusError
}

// New constructs the Store from DATABASE_URL or the discrete POSTGRES_*
// environment variables, for callers running without a config file.
func New(ctx context.Context) (*Store, error) {
	return NewWithDSN(ctx, DSNFromEnv())
}

// DSNFromEnv resolves the Postgres DSN from the environment, preferring
// DATABASE_URL over the discrete POSTGRES_* variables.
func DSNFromEnv() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	host := getenvDefault("POSTGRES_HOST", "localhost")
	port := getenvDefault("POSTGRES_PORT", "5432")
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	db := os.Getenv("POSTGRES_DB")
	ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// withUser runs fn in a transaction with app.user_id pinned to the caller.
// set_config(..., true) is transaction-local, so concurrent requests on the
// same pool never observe each other's identity.
func (s *Store) withUser(ctx context.Context, userID string, fn func(tx *sql.Tx) error) error {
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("%w: user id must be a uuid", ErrInvalid)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `SELECT set_config('app.user_id', $1, true)`, userID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullableString(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func pgCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// IsAuthorizationDenied reports whether a write was rejected by a row-level
// security policy. Reads never produce this: denied rows are simply absent.
func IsAuthorizationDenied(err error) bool {
	return pgCode(err) == "42501"
}

// IsReferentialViolation reports a chat_id pointing at a non-existent chat.
func IsReferentialViolation(err error) bool {
	return pgCode(err) == "23503"
}

// IsConstraintViolation reports enum, null or numeric-range check failures.
func IsConstraintViolation(err error) bool {
	switch pgCode(err) {
	case "23514", "23502", "22P02":
		return true
	}
	return false
}

// IsUniqueViolation reports a duplicate key insert.
func IsUniqueViolation(err error) bool {
	return pgCode(err) == "23505"
}
