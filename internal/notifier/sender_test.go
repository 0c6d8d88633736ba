package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	contracts "taskmaster/contracts/mq"
)

type fakeTokenStore struct {
	mu      sync.Mutex
	tokens  map[string][]string
	deleted []string
}

func newFakeTokenStore(owner string, tokens ...string) *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string][]string{owner: tokens}}
}

func (f *fakeTokenStore) ListByOwner(ctx context.Context, ownerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[ownerID], nil
}

func (f *fakeTokenStore) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, token)
	return nil
}

type fakePush struct {
	mu    sync.Mutex
	errBy map[string]error
	sent  []string
	body  string
}

func (f *fakePush) Send(ctx context.Context, token, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errBy[token]; err != nil {
		return err
	}
	f.sent = append(f.sent, token)
	f.body = body
	return nil
}

func reminderMsg(t *testing.T, owner, title string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(contracts.ReminderDuePayload{
		TaskID:  "t1",
		OwnerID: owner,
		Title:   title,
		DueDate: "2026-08-30T10:00:00.000Z",
	})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestHandleReminderDueFansOutToAllTokens(t *testing.T) {
	tokens := newFakeTokenStore("alice", "tok1", "tok2")
	push := &fakePush{}
	s := NewSender(tokens, push, zap.NewNop())

	if err := s.HandleReminderDue(context.Background(), reminderMsg(t, "alice", "water plants")); err != nil {
		t.Fatalf("HandleReminderDue: %v", err)
	}

	if len(push.sent) != 2 {
		t.Errorf("sent to %d tokens, want 2", len(push.sent))
	}
	if want := `Your task "water plants" is due soon!`; push.body != want {
		t.Errorf("body = %q, want %q", push.body, want)
	}
}

func TestHandleReminderDueRemovesUnregisteredTokens(t *testing.T) {
	tokens := newFakeTokenStore("alice", "dead", "alive")
	push := &fakePush{errBy: map[string]error{"dead": ErrUnregisteredToken}}
	s := NewSender(tokens, push, zap.NewNop())

	if err := s.HandleReminderDue(context.Background(), reminderMsg(t, "alice", "x")); err != nil {
		t.Fatalf("HandleReminderDue: %v", err)
	}

	if len(tokens.deleted) != 1 || tokens.deleted[0] != "dead" {
		t.Errorf("deleted = %v, want only the unregistered token", tokens.deleted)
	}
	if len(push.sent) != 1 || push.sent[0] != "alive" {
		t.Errorf("sent = %v, want delivery to the live token", push.sent)
	}
}

func TestHandleReminderDueSwallowsDeliveryFailures(t *testing.T) {
	tokens := newFakeTokenStore("alice", "flaky")
	push := &fakePush{errBy: map[string]error{"flaky": errors.New("fcm 500")}}
	s := NewSender(tokens, push, zap.NewNop())

	if err := s.HandleReminderDue(context.Background(), reminderMsg(t, "alice", "x")); err != nil {
		t.Errorf("delivery failure must not fail the message: %v", err)
	}
	if len(tokens.deleted) != 0 {
		t.Error("transient failure must not remove the token")
	}
}

func TestHandleReminderDueNoTokens(t *testing.T) {
	s := NewSender(newFakeTokenStore("alice"), &fakePush{}, zap.NewNop())
	if err := s.HandleReminderDue(context.Background(), reminderMsg(t, "alice", "x")); err != nil {
		t.Errorf("no registered tokens should be a clean drop: %v", err)
	}
}

func TestHandleReminderDueBadPayload(t *testing.T) {
	s := NewSender(newFakeTokenStore("alice"), &fakePush{}, zap.NewNop())
	if err := s.HandleReminderDue(context.Background(), json.RawMessage(`{"task_id":`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}
