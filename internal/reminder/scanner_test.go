package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	contracts "taskmaster/contracts/mq"
	"taskmaster/internal/model"
)

type fakeTaskSource struct {
	gotFrom, gotTo string
	tasks          []model.Task
	err            error
}

func (f *fakeTaskSource) ListDueSoon(ctx context.Context, from, to string) ([]model.Task, error) {
	f.gotFrom, f.gotTo = from, to
	return f.tasks, f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	published []contracts.ReminderDuePayload
}

func (f *fakePublisher) Publish(routingKey string, payload any) error {
	if f.err != nil {
		return f.err
	}
	if routingKey != contracts.RoutingKeyReminderDue {
		return errors.New("unexpected routing key " + routingKey)
	}
	f.mu.Lock()
	f.published = append(f.published, payload.(contracts.ReminderDuePayload))
	f.mu.Unlock()
	return nil
}

type fakeDeduper struct {
	seen map[string]bool
	err  error
}

func newFakeDeduper() *fakeDeduper { return &fakeDeduper{seen: make(map[string]bool)} }

func (f *fakeDeduper) MarkOnce(ctx context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func dueTask(id, owner, due string) model.Task {
	return model.Task{ID: id, OwnerID: owner, Title: "t-" + id, DueDate: &due}
}

func newTestScanner(src *fakeTaskSource, pub *fakePublisher, dedup Deduper, now time.Time) *Scanner {
	s := NewScanner(src, pub, dedup, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func TestRunPublishesOneReminderPerDueTask(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	src := &fakeTaskSource{tasks: []model.Task{
		dueTask("a", "alice", "2026-08-30T09:30:00.000Z"),
		dueTask("b", "bob", "2026-08-30T09:45:00.000Z"),
	}}
	pub := &fakePublisher{}
	s := newTestScanner(src, pub, newFakeDeduper(), now)

	published, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if published != 2 {
		t.Errorf("published = %d, want 2", published)
	}

	if src.gotFrom != "2026-08-30T09:00:00.000Z" || src.gotTo != "2026-08-30T10:00:00.000Z" {
		t.Errorf("scan window [%s, %s), want one hour from now", src.gotFrom, src.gotTo)
	}

	if len(pub.published) != 2 {
		t.Fatalf("got %d events, want 2", len(pub.published))
	}
	first := pub.published[0]
	if first.TaskID != "a" || first.OwnerID != "alice" || first.Title != "t-a" {
		t.Errorf("unexpected payload %+v", first)
	}
}

func TestRunDeduplicatesAcrossOverlappingScans(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	src := &fakeTaskSource{tasks: []model.Task{
		dueTask("a", "alice", "2026-08-30T09:30:00.000Z"),
	}}
	pub := &fakePublisher{}
	s := newTestScanner(src, pub, newFakeDeduper(), now)

	for range 3 {
		if _, err := s.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if len(pub.published) != 1 {
		t.Errorf("got %d events after 3 overlapping scans, want 1", len(pub.published))
	}
}

func TestRunSkipsPublishFailuresWithoutStopping(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	src := &fakeTaskSource{tasks: []model.Task{
		dueTask("a", "alice", "2026-08-30T09:30:00.000Z"),
		dueTask("b", "bob", "2026-08-30T09:45:00.000Z"),
	}}
	pub := &fakePublisher{err: errors.New("broker down")}
	dedup := newFakeDeduper()
	s := newTestScanner(src, pub, dedup, now)

	published, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if published != 0 {
		t.Errorf("published = %d, want 0 when the broker is down", published)
	}
	// Both tasks were attempted; the failure on a did not stop b.
	if len(dedup.seen) != 2 {
		t.Errorf("attempted %d tasks, want 2", len(dedup.seen))
	}
}

func TestRunPropagatesListFailure(t *testing.T) {
	src := &fakeTaskSource{err: errors.New("db down")}
	s := newTestScanner(src, &fakePublisher{}, newFakeDeduper(), time.Now())

	if _, err := s.Run(context.Background()); err == nil {
		t.Error("expected error when the task query fails")
	}
}
