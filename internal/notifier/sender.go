package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	contracts "taskmaster/contracts/mq"
	"taskmaster/pkg/metrics"
)

// ErrUnregisteredToken marks a push token the provider no longer knows.
var ErrUnregisteredToken = errors.New("push token is no longer registered")

// TokenStore is the slice of the push token repository the sender needs.
type TokenStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]string, error)
	Delete(ctx context.Context, token string) error
}

// PushClient delivers one notification to one device token.
type PushClient interface {
	Send(ctx context.Context, token, title, body string) error
}

// Sender consumes reminder events and fans them out to the owner's devices.
type Sender struct {
	tokens  TokenStore
	push    PushClient
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewSender(tokens TokenStore, push PushClient, logger *zap.Logger) *Sender {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "push-delivery",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Push circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Sender{tokens: tokens, push: push, breaker: breaker, logger: logger}
}

// HandleReminderDue processes one reminder event. Delivery failures are
// logged and counted but never fail the message; tokens the provider
// reports as unregistered are removed so they are not tried again.
func (s *Sender) HandleReminderDue(ctx context.Context, msg json.RawMessage) error {
	var payload contracts.ReminderDuePayload
	if err := json.Unmarshal(msg, &payload); err != nil {
		return fmt.Errorf("decode reminder payload: %w", err)
	}

	tokens, err := s.tokens.ListByOwner(ctx, payload.OwnerID)
	if err != nil {
		return fmt.Errorf("list push tokens for owner %s: %w", payload.OwnerID, err)
	}
	if len(tokens) == 0 {
		s.logger.Info("No push tokens for owner, dropping reminder",
			zap.String("owner_id", payload.OwnerID),
			zap.String("task_id", payload.TaskID),
		)
		return nil
	}

	title := "Task Reminder: TaskMaster"
	body := fmt.Sprintf("Your task %q is due soon!", payload.Title)

	for _, token := range tokens {
		_, err := s.breaker.Execute(func() (any, error) {
			return nil, s.push.Send(ctx, token, title, body)
		})
		switch {
		case err == nil:
			metrics.RecordPushSend("success")
		case errors.Is(err, ErrUnregisteredToken):
			metrics.RecordPushSend("unregistered")
			s.logger.Info("Removing unregistered push token",
				zap.String("owner_id", payload.OwnerID),
			)
			if err := s.tokens.Delete(ctx, token); err != nil {
				s.logger.Error("Failed to remove unregistered token", zap.Error(err))
			}
		default:
			metrics.RecordPushSend("failed")
			s.logger.Error("Push delivery failed",
				zap.String("owner_id", payload.OwnerID),
				zap.String("task_id", payload.TaskID),
				zap.Error(err),
			)
		}
	}
	return nil
}
