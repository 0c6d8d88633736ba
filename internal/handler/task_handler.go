package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskmaster/internal/apperrors"
	"taskmaster/internal/model"
)

// TaskStore is the slice of the task repository the handlers need.
type TaskStore interface {
	Create(ctx context.Context, ownerID, title string, description, dueDate *string) (model.Task, error)
	GetByID(ctx context.Context, id string) (*model.Task, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

// ChangeNotifier receives a nudge after every committed mutation.
type ChangeNotifier interface {
	TasksChanged(ctx context.Context, ownerID string)
}

// ChangeSource feeds the SSE stream one signal per remote change.
type ChangeSource interface {
	Changes(ctx context.Context, ownerID string) <-chan struct{}
}

type TaskHandler struct {
	store   TaskStore
	feed    ChangeNotifier
	changes ChangeSource
	logger  *zap.Logger
}

func NewTaskHandler(store TaskStore, feed ChangeNotifier, changes ChangeSource, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{store: store, feed: feed, changes: changes, logger: logger}
}

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
}

// CreateTask handles POST /tasks. The owner and all identities come from
// the server side; the body only carries title, description and due date.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	ownerID := c.GetString("owner_id")

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		h.logger.Warn("CreateTask: missing title", zap.String("owner_id", ownerID))
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	task, err := h.store.Create(c.Request.Context(), ownerID, req.Title, req.Description, req.DueDate)
	if err != nil {
		h.logger.Error("CreateTask: failed to create task",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		return
	}

	h.feed.TasksChanged(c.Request.Context(), ownerID)
	c.JSON(http.StatusCreated, task)
}

// UpdateTask handles PUT /tasks/:id. Only fields present in the body are
// replaced; a JSON null clears the stored value. The record must belong to
// the caller.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	ownerID := c.GetString("owner_id")
	id := c.Param("id")

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	existing, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, id, err)
		return
	}
	if existing.OwnerID != ownerID {
		h.logger.Warn("UpdateTask: owner mismatch",
			zap.String("task_id", id),
			zap.String("owner_id", ownerID),
		)
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	fields, err := updateFields(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.UpdateFields(c.Request.Context(), id, fields); err != nil {
		h.logger.Error("UpdateTask: failed to update task",
			zap.String("task_id", id),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
		return
	}

	h.feed.TasksChanged(c.Request.Context(), ownerID)
	c.JSON(http.StatusOK, gin.H{"message": "task updated"})
}

// DeleteTask handles DELETE /tasks/:id.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	ownerID := c.GetString("owner_id")
	id := c.Param("id")

	existing, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, id, err)
		return
	}
	if existing.OwnerID != ownerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("DeleteTask: failed to delete task",
			zap.String("task_id", id),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete task"})
		return
	}

	h.feed.TasksChanged(c.Request.Context(), ownerID)
	c.Status(http.StatusNoContent)
}

// ListTasks handles GET /tasks.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	ownerID := c.GetString("owner_id")

	tasks, err := h.store.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("ListTasks: failed to fetch tasks",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// StreamTasks handles GET /tasks/stream: an SSE stream that sends the full
// current task set immediately and again after every remote change.
func (h *TaskHandler) StreamTasks(c *gin.Context) {
	ownerID := c.GetString("owner_id")
	ctx := c.Request.Context()

	changes := h.changes.Changes(ctx, ownerID)

	tasks, err := h.store.ListByOwner(ctx, ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch tasks"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("snapshot", tasks)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-changes:
			if !ok {
				return false
			}
			tasks, err := h.store.ListByOwner(ctx, ownerID)
			if err != nil {
				h.logger.Warn("StreamTasks: snapshot query failed, skipping",
					zap.String("owner_id", ownerID),
					zap.Error(err),
				)
				return true
			}
			c.SSEvent("snapshot", tasks)
			return true
		}
	})
}

func (h *TaskHandler) respondLookupError(c *gin.Context, id string, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	h.logger.Error("Failed to load task", zap.String("task_id", id), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load task"})
}

// updateFields validates the mutable subset of an update payload.
func updateFields(body map[string]any) (map[string]any, error) {
	fields := make(map[string]any)
	for name, value := range body {
		switch name {
		case "title":
			s, ok := value.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return nil, errors.New("title must be a non-empty string")
			}
			fields[name] = s
		case "description", "dueDate":
			if value == nil {
				fields[name] = nil
				continue
			}
			s, ok := value.(string)
			if !ok {
				return nil, errors.New(name + " must be a string or null")
			}
			fields[name] = s
		case "isDone":
			b, ok := value.(bool)
			if !ok {
				return nil, errors.New("isDone must be a boolean")
			}
			fields[name] = b
		default:
			// ignore unknown fields, matching lenient API clients
		}
	}
	return fields, nil
}
