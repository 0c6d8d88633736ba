package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	contracts "taskmaster/contracts/mq"
	"taskmaster/internal/model"
	"taskmaster/pkg/metrics"
)

// Window is how far ahead of now a due date counts as "due soon".
const Window = time.Hour

// TaskSource lists open tasks whose due date falls inside a window.
type TaskSource interface {
	ListDueSoon(ctx context.Context, from, to string) ([]model.Task, error)
}

// Publisher delivers an event to the message broker.
type Publisher interface {
	Publish(routingKey string, payload any) error
}

// Deduper remembers which tasks already had a reminder published, so that
// overlapping scan windows do not double-notify.
type Deduper interface {
	MarkOnce(ctx context.Context, key string) (bool, error)
}

// Scanner finds tasks coming due and publishes one reminder event per task.
type Scanner struct {
	tasks   TaskSource
	pub     Publisher
	deduper Deduper
	logger  *zap.Logger
	now     func() time.Time
}

func NewScanner(tasks TaskSource, pub Publisher, deduper Deduper, logger *zap.Logger) *Scanner {
	return &Scanner{
		tasks:   tasks,
		pub:     pub,
		deduper: deduper,
		logger:  logger,
		now:     time.Now,
	}
}

// Run performs one scan over [now, now+Window) and returns how many
// reminders were published. A failure on one task does not stop the rest.
func (s *Scanner) Run(ctx context.Context) (int, error) {
	now := s.now()
	from := model.FormatInstant(now)
	to := model.FormatInstant(now.Add(Window))

	due, err := s.tasks.ListDueSoon(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("list due tasks: %w", err)
	}

	published := 0
	for _, task := range due {
		if task.DueDate == nil {
			continue
		}

		first, err := s.deduper.MarkOnce(ctx, "reminder:"+task.ID)
		if err != nil {
			s.logger.Error("Reminder dedup check failed",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}
		if !first {
			continue
		}

		payload := contracts.ReminderDuePayload{
			TaskID:  task.ID,
			OwnerID: task.OwnerID,
			Title:   task.Title,
			DueDate: *task.DueDate,
		}
		if err := s.pub.Publish(contracts.RoutingKeyReminderDue, payload); err != nil {
			s.logger.Error("Failed to publish reminder",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}

		metrics.RemindersPublished.Inc()
		published++
		s.logger.Info("Reminder published",
			zap.String("task_id", task.ID),
			zap.String("owner_id", task.OwnerID),
			zap.String("due_date", *task.DueDate),
		)
	}

	s.logger.Info("Reminder scan finished",
		zap.Int("candidates", len(due)),
		zap.Int("published", published),
	)
	return published, nil
}
