// Package feed fans owner-scoped change notifications from the mutation
// handlers to the SSE stream handlers, via redis pub/sub. The payload is
// just a nudge: receivers re-query the full task set, so a lost message
// costs at most one snapshot, never correctness.
package feed

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "tasks.changed."

// Channel returns the pub/sub channel carrying change nudges for one owner.
func Channel(ownerID string) string {
	return channelPrefix + ownerID
}

type Publisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewPublisher(rdb *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{rdb: rdb, logger: logger}
}

// TasksChanged signals that the owner's remote task set changed. Failures
// are logged and dropped: the stream's next subscriber still gets a correct
// initial snapshot, and mutations must not fail because fanout did.
func (p *Publisher) TasksChanged(ctx context.Context, ownerID string) {
	if err := p.rdb.Publish(ctx, Channel(ownerID), "1").Err(); err != nil {
		p.logger.Warn("Failed to publish change notification",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
	}
}

type Subscriber struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewSubscriber(rdb *redis.Client, logger *zap.Logger) *Subscriber {
	return &Subscriber{rdb: rdb, logger: logger}
}

// Changes delivers one signal per change notification for the owner until
// ctx ends. Signals carry no data; the receiver re-queries.
func (s *Subscriber) Changes(ctx context.Context, ownerID string) <-chan struct{} {
	pubsub := s.rdb.Subscribe(ctx, Channel(ownerID))
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				// coalesce: one pending signal is enough
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out
}
