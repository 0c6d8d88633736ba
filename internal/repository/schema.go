package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitSchema creates the server-side tables if they don't exist. Idempotent.
func InitSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT,
		is_done     BOOLEAN NOT NULL DEFAULT FALSE,
		due_date    TEXT,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_owner_created
		ON tasks(owner_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_tasks_due
		ON tasks(due_date) WHERE is_done = FALSE;

	CREATE TABLE IF NOT EXISTS push_tokens (
		token      TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_push_tokens_owner
		ON push_tokens(owner_id);
	`
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
