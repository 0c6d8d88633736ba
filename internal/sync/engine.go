package sync

import (
	"context"
	"strings"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskmaster/internal/apperrors"
	"taskmaster/internal/model"
	"taskmaster/pkg/metrics"
)

// tempIDPrefix marks client-generated identities. Server identities are
// bare uuids, so the two can never collide or be confused.
const tempIDPrefix = "local-"

// Engine orchestrates local-first reads, optimistic writes, best-effort
// remote propagation and remote-change ingestion.
type Engine struct {
	local  LocalStore
	remote RemoteStore
	logger *zap.Logger

	// wg tracks background propagation goroutines. They are never
	// cancelled, only joined: Wait is the shutdown hook.
	wg gosync.WaitGroup

	mu         gosync.Mutex
	stopListen context.CancelFunc
}

func New(local LocalStore, remote RemoteStore, logger *zap.Logger) *Engine {
	return &Engine{
		local:  local,
		remote: remote,
		logger: logger,
	}
}

// ObserveTasks returns a continuously updating, owner-filtered view backed
// entirely by the local store. With no authenticated owner it yields a
// single empty snapshot and stays open until ctx ends.
func (e *Engine) ObserveTasks(ctx context.Context, creds Credentials) <-chan []model.Task {
	ownerID := creds.OwnerID()
	if ownerID == "" {
		ch := make(chan []model.Task, 1)
		ch <- []model.Task{}
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return ch
	}
	return e.local.ObserveOwner(ctx, ownerID)
}

// AddTask validates the input, writes an unsynced record with a temporary
// identity to the local store, and only then spawns the remote create. On
// remote success the temporary record is atomically replaced by the
// server-assigned one; on any failure it simply stays unsynced.
//
// Without an authenticated owner the call is a silent no-op.
func (e *Engine) AddTask(ctx context.Context, creds Credentials, title string, description *string, dueAt *time.Time) error {
	if strings.TrimSpace(title) == "" {
		return apperrors.ErrEmptyTitle
	}

	ownerID := creds.OwnerID()
	if ownerID == "" {
		e.logger.Warn("AddTask without authenticated owner, dropping")
		return nil
	}

	var dueDate *string
	if dueAt != nil {
		normalized := model.FormatInstant(*dueAt)
		dueDate = &normalized
	}

	temp := model.Task{
		ID:          tempIDPrefix + uuid.NewString(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		DueDate:     dueDate,
		CreatedAt:   model.FormatInstant(time.Now()),
		Synced:      false,
	}

	if err := e.local.Upsert(ctx, temp); err != nil {
		return err
	}

	e.spawn(func() {
		bctx := context.Background()

		token, err := creds.BearerToken(bctx)
		if err != nil || token == "" {
			e.logger.Warn("No credential for remote create, task stays unsynced",
				zap.String("task_id", temp.ID),
				zap.Error(err),
			)
			metrics.RecordSyncPropagation("create", "skipped_auth")
			return
		}

		created, err := e.remote.Create(bctx, token, temp.Title, temp.Description, temp.DueDate)
		if err != nil {
			e.logger.Warn("Remote create failed, task stays unsynced",
				zap.String("task_id", temp.ID),
				zap.Error(err),
			)
			metrics.RecordSyncPropagation("create", "failed")
			return
		}

		created.Synced = true
		if err := e.local.ReplaceID(bctx, temp.ID, created); err != nil {
			e.logger.Error("Failed to reconcile server identity",
				zap.String("temp_id", temp.ID),
				zap.String("server_id", created.ID),
				zap.Error(err),
			)
			return
		}

		metrics.RecordSyncPropagation("create", "success")
		e.logger.Debug("Task synced, temporary identity replaced",
			zap.String("temp_id", temp.ID),
			zap.String("server_id", created.ID),
		)
	})

	return nil
}

// UpdateTaskStatus flips the done flag locally, then propagates a partial
// update for that one field. The sync flag is untouched.
func (e *Engine) UpdateTaskStatus(ctx context.Context, creds Credentials, task model.Task, isDone bool) error {
	updated := task
	updated.IsDone = isDone
	if err := e.local.Upsert(ctx, updated); err != nil {
		return err
	}

	e.propagate(creds, "update_status", task.ID, func(bctx context.Context, token string) error {
		return e.remote.UpdateStatus(bctx, token, task.ID, isDone)
	})
	return nil
}

// UpdateTaskDetails replaces title, description and due date locally, then
// propagates all three fields together so the remote record never mixes two
// concurrent edits.
func (e *Engine) UpdateTaskDetails(ctx context.Context, creds Credentials, task model.Task) error {
	if err := e.local.Upsert(ctx, task); err != nil {
		return err
	}

	e.propagate(creds, "update_details", task.ID, func(bctx context.Context, token string) error {
		return e.remote.UpdateDetails(bctx, token, task.ID, task.Title, task.Description, task.DueDate)
	})
	return nil
}

// DeleteTask removes the task locally first. The remote delete is fired and
// forgotten: if it fails, the next full snapshot re-adds the task, giving
// eventual rather than immediate consistency.
func (e *Engine) DeleteTask(ctx context.Context, creds Credentials, task model.Task) error {
	if err := e.local.Delete(ctx, task.ID); err != nil {
		return err
	}

	e.propagate(creds, "delete", task.ID, func(bctx context.Context, token string) error {
		return e.remote.Delete(bctx, token, task.ID)
	})
	return nil
}

// StartListeningForRemoteUpdates subscribes to the remote change feed for
// the current owner and merges every snapshot into the local store. Calling
// it again replaces any previous subscription, so repeated calls are safe.
// Snapshots only add and overwrite; they never delete.
func (e *Engine) StartListeningForRemoteUpdates(ctx context.Context, creds Credentials) {
	ownerID := creds.OwnerID()
	if ownerID == "" {
		e.logger.Warn("Listen requested without authenticated owner, ignoring")
		return
	}

	e.mu.Lock()
	if e.stopListen != nil {
		e.stopListen()
	}
	lctx, cancel := context.WithCancel(ctx)
	e.stopListen = cancel
	e.mu.Unlock()

	e.spawn(func() {
		token, err := creds.BearerToken(lctx)
		if err != nil || token == "" {
			e.logger.Warn("No credential for change feed", zap.Error(err))
			return
		}

		snapshots, err := e.remote.Subscribe(lctx, token)
		if err != nil {
			e.logger.Warn("Change feed subscription failed", zap.Error(err))
			return
		}

		e.logger.Info("Listening for remote updates", zap.String("owner_id", ownerID))

		for snapshot := range snapshots {
			for i := range snapshot {
				snapshot[i].Synced = true
			}
			if err := e.local.UpsertAll(lctx, snapshot); err != nil {
				e.logger.Error("Failed to apply remote snapshot",
					zap.Int("tasks", len(snapshot)),
					zap.Error(err),
				)
				metrics.RecordSnapshotApplied("failed")
				continue
			}
			metrics.RecordSnapshotApplied("success")
		}

		e.logger.Info("Change feed closed", zap.String("owner_id", ownerID))
	})
}

// StopListening cancels the active change feed subscription, if any.
func (e *Engine) StopListening() {
	e.mu.Lock()
	if e.stopListen != nil {
		e.stopListen()
		e.stopListen = nil
	}
	e.mu.Unlock()
}

// Wait joins all background propagation goroutines. Call StopListening
// first during shutdown, otherwise the feed goroutine keeps Wait blocked.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// propagate runs one best-effort remote call in the background: acquire a
// token, make the call, log and count the outcome. Nothing is retried and
// nothing is rolled back.
func (e *Engine) propagate(creds Credentials, operation, taskID string, call func(ctx context.Context, token string) error) {
	e.spawn(func() {
		bctx := context.Background()

		token, err := creds.BearerToken(bctx)
		if err != nil || token == "" {
			e.logger.Warn("No credential for remote call, skipping",
				zap.String("operation", operation),
				zap.String("task_id", taskID),
				zap.Error(err),
			)
			metrics.RecordSyncPropagation(operation, "skipped_auth")
			return
		}

		if err := call(bctx, token); err != nil {
			e.logger.Warn("Remote call failed, local and remote state diverge until next snapshot",
				zap.String("operation", operation),
				zap.String("task_id", taskID),
				zap.Error(err),
			)
			metrics.RecordSyncPropagation(operation, "failed")
			return
		}

		metrics.RecordSyncPropagation(operation, "success")
	})
}

func (e *Engine) spawn(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}
