package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskmaster/internal/apperrors"
	"taskmaster/internal/model"
	"taskmaster/pkg/metrics"
)

// TaskRepository is the authoritative task store. Identities and creation
// timestamps are assigned here, never by clients.
type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// Create stores a new task for ownerID and returns the full record.
func (r *TaskRepository) Create(ctx context.Context, ownerID, title string, description, dueDate *string) (model.Task, error) {
	t := model.Task{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		DueDate:     dueDate,
		IsDone:      false,
		CreatedAt:   model.FormatInstant(time.Now()),
	}

	start := time.Now()
	query := `
        INSERT INTO tasks (id, owner_id, title, description, is_done, due_date, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.OwnerID,
		t.Title,
		t.Description,
		t.IsDone,
		t.DueDate,
		t.CreatedAt,
	)
	metrics.RecordDBQueryDuration("insert", "tasks", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Error(err),
			zap.String("owner_id", ownerID),
		)
		return model.Task{}, err
	}

	r.logger.Info("Task created",
		zap.String("task_id", t.ID),
		zap.String("owner_id", t.OwnerID),
	)
	return t, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*model.Task, error) {
	start := time.Now()
	query := `
        SELECT id, owner_id, title, description, is_done, due_date, created_at
        FROM tasks
        WHERE id = $1
    `
	var t model.Task
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.OwnerID,
		&t.Title,
		&t.Description,
		&t.IsDone,
		&t.DueDate,
		&t.CreatedAt,
	)
	metrics.RecordDBQueryDuration("select", "tasks", time.Since(start))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to load task", zap.Error(err), zap.String("task_id", id))
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error) {
	start := time.Now()
	query := `
        SELECT id, owner_id, title, description, is_done, due_date, created_at
        FROM tasks
        WHERE owner_id = $1
        ORDER BY created_at DESC, id
    `
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		r.logger.Error("Failed to query tasks",
			zap.Error(err),
			zap.String("owner_id", ownerID),
		)
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(
			&t.ID,
			&t.OwnerID,
			&t.Title,
			&t.Description,
			&t.IsDone,
			&t.DueDate,
			&t.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan task row", zap.Error(err))
			return nil, err
		}
		tasks = append(tasks, t)
	}
	metrics.RecordDBQueryDuration("select", "tasks", time.Since(start))
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// updatableColumns maps request field names onto columns. Anything else in
// an update payload is rejected by the handler before it gets here.
var updatableColumns = map[string]string{
	"title":       "title",
	"description": "description",
	"dueDate":     "due_date",
	"isDone":      "is_done",
}

// UpdateFields replaces exactly the provided fields on one task.
func (r *TaskRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	set := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	i := 1
	for name, value := range fields {
		column, ok := updatableColumns[name]
		if !ok {
			return fmt.Errorf("unknown field %q", name)
		}
		set = append(set, fmt.Sprintf("%s = $%d", column, i))
		args = append(args, value)
		i++
	}
	args = append(args, id)

	start := time.Now()
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d", strings.Join(set, ", "), i)
	tag, err := r.db.Exec(ctx, query, args...)
	metrics.RecordDBQueryDuration("update", "tasks", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to update task", zap.Error(err), zap.String("task_id", id))
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	r.logger.Info("Task updated",
		zap.String("task_id", id),
		zap.Int("fields", len(fields)),
	)
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	metrics.RecordDBQueryDuration("delete", "tasks", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to delete task", zap.Error(err), zap.String("task_id", id))
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	r.logger.Info("Task deleted", zap.String("task_id", id))
	return nil
}

// ListDueSoon returns not-done tasks whose due date falls in [from, to).
// Instants are canonical UTC strings, so string comparison is time order.
func (r *TaskRepository) ListDueSoon(ctx context.Context, from, to string) ([]model.Task, error) {
	start := time.Now()
	query := `
        SELECT id, owner_id, title, description, is_done, due_date, created_at
        FROM tasks
        WHERE is_done = false
        AND due_date >= $1
        AND due_date < $2
    `
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		r.logger.Error("Failed to query due tasks", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(
			&t.ID,
			&t.OwnerID,
			&t.Title,
			&t.Description,
			&t.IsDone,
			&t.DueDate,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	metrics.RecordDBQueryDuration("select_due", "tasks", time.Since(start))
	return tasks, rows.Err()
}
