// Package localstore provides the durable client-side task cache.
//
// It is the sole source of truth the UI observes: reads never touch the
// network, writes land here first and are propagated remotely afterwards.
// The store is an embedded sqlite database in WAL mode so concurrent
// readers are not blocked by the write path or the snapshot listener.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"

	"taskmaster/internal/model"
)

type Store struct {
	conn   *sql.DB
	path   string
	logger *zap.Logger

	// mu serializes writers so observers see committed states in commit
	// order. sqlite's own locking is not enough: the post-commit read-back
	// that feeds observers must happen before the next commit.
	mu  sync.Mutex
	hub *hub
}

// Open creates (or opens) the cache database at path and initializes the
// schema. The caller must Close the store when done.
func Open(path string, logger *zap.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	s := &Store{
		conn:   conn,
		path:   path,
		logger: logger,
		hub:    newHub(),
	}

	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT,
		is_done     INTEGER NOT NULL DEFAULT 0,
		due_date    TEXT,
		created_at  TEXT NOT NULL,
		synced      INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_owner_created
		ON tasks(owner_id, created_at DESC);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.hub.closeAll()
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}
	s.conn = nil
	return nil
}

const upsertSQL = `
	INSERT INTO tasks (id, owner_id, title, description, is_done, due_date, created_at, synced)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id    = excluded.owner_id,
		title       = excluded.title,
		description = excluded.description,
		is_done     = excluded.is_done,
		due_date    = excluded.due_date,
		created_at  = excluded.created_at,
		synced      = excluded.synced
`

// Upsert inserts or replaces a task by id.
func (s *Store) Upsert(ctx context.Context, t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.ExecContext(ctx, upsertSQL, upsertArgs(t)...); err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", t.ID, err)
	}

	s.publishLocked(ctx, t.OwnerID)
	return nil
}

// UpsertAll inserts or replaces every task in one transaction. This is the
// snapshot ingestion path: it overwrites matching ids and never deletes.
func (s *Store) UpsertAll(ctx context.Context, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	owners := make(map[string]struct{})
	for _, t := range tasks {
		if _, err := tx.ExecContext(ctx, upsertSQL, upsertArgs(t)...); err != nil {
			return fmt.Errorf("failed to upsert task %s: %w", t.ID, err)
		}
		owners[t.OwnerID] = struct{}{}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upserts: %w", err)
	}

	for owner := range owners {
		s.publishLocked(ctx, owner)
	}
	return nil
}

// ReplaceID atomically deletes the record under oldID and stores t in its
// place. Observers see a single committed state with the new identity and
// never a duplicate, which is what identity reconciliation after a remote
// create requires.
func (s *Store) ReplaceID(ctx context.Context, oldID string, t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, oldID); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", oldID, err)
	}
	if _, err := tx.ExecContext(ctx, upsertSQL, upsertArgs(t)...); err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", t.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit identity swap: %w", err)
	}

	s.publishLocked(ctx, t.OwnerID)
	return nil
}

// Delete removes a task by id. Deleting an absent id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var owner string
	err := s.conn.QueryRowContext(ctx, `SELECT owner_id FROM tasks WHERE id = ?`, id).Scan(&owner)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up task %s: %w", id, err)
	}

	if _, err := s.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}

	s.publishLocked(ctx, owner)
	return nil
}

// ListByOwner returns the owner's tasks ordered by creation time, newest
// first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error) {
	return s.listByOwner(ctx, ownerID)
}

func (s *Store) listByOwner(ctx context.Context, ownerID string) ([]model.Task, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, owner_id, title, description, is_done, due_date, created_at, synced
		FROM tasks
		WHERE owner_id = ?
		ORDER BY created_at DESC, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// GetByID returns the task with the given id, or nil if absent.
func (s *Store) GetByID(ctx context.Context, id string) (*model.Task, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, owner_id, title, description, is_done, due_date, created_at, synced
		FROM tasks
		WHERE id = ?
	`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ObserveOwner returns a channel of full owner-filtered snapshots. The
// current state is delivered first, then every committed state after it, in
// commit order, one delivery per commit. The channel closes when ctx ends.
func (s *Store) ObserveOwner(ctx context.Context, ownerID string) <-chan []model.Task {
	s.mu.Lock()
	sub := s.hub.subscribe(ownerID)
	current, err := s.listByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error("Failed to read initial snapshot",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		current = []model.Task{}
	}
	sub.push(current)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.hub.unsubscribe(ownerID, sub)
	}()

	return sub.out
}

// publishLocked reads back the owner's committed state and hands it to every
// observer. Callers must hold s.mu.
func (s *Store) publishLocked(ctx context.Context, ownerID string) {
	if !s.hub.hasSubscribers(ownerID) {
		return
	}
	tasks, err := s.listByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error("Failed to read back committed state",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		return
	}
	s.hub.publish(ownerID, tasks)
}

func upsertArgs(t model.Task) []any {
	return []any{
		t.ID,
		t.OwnerID,
		t.Title,
		nullable(t.Description),
		boolToInt(t.IsDone),
		nullable(t.DueDate),
		t.CreatedAt,
		boolToInt(t.Synced),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (model.Task, error) {
	var (
		t           model.Task
		description sql.NullString
		dueDate     sql.NullString
		isDone      int
		synced      int
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &description, &isDone, &dueDate, &t.CreatedAt, &synced)
	if err != nil {
		return model.Task{}, err
	}
	if description.Valid {
		t.Description = &description.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	t.IsDone = isDone != 0
	t.Synced = synced != 0
	return t, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
