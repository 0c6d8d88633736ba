package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskmaster/internal/apperrors"
	"taskmaster/internal/model"
)

type fakeTaskStore struct {
	mu      sync.Mutex
	tasks   map[string]model.Task
	updates map[string]map[string]any
	deleted []string
}

func newFakeTaskStore(tasks ...model.Task) *fakeTaskStore {
	s := &fakeTaskStore{
		tasks:   make(map[string]model.Task),
		updates: make(map[string]map[string]any),
	}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *fakeTaskStore) Create(ctx context.Context, ownerID, title string, description, dueDate *string) (model.Task, error) {
	t := model.Task{
		ID:          "new-id",
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		DueDate:     dueDate,
		CreatedAt:   "2026-08-30T10:00:00.000Z",
	}
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
	return t, nil
}

func (s *fakeTaskStore) GetByID(ctx context.Context, id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &t, nil
}

func (s *fakeTaskStore) ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Task{}
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTaskStore) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return apperrors.ErrNotFound
	}
	s.updates[id] = fields
	return nil
}

func (s *fakeTaskStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	owners []string
}

func (f *fakeNotifier) TasksChanged(ctx context.Context, ownerID string) {
	f.mu.Lock()
	f.owners = append(f.owners, ownerID)
	f.mu.Unlock()
}

type fakeChanges struct{}

func (fakeChanges) Changes(ctx context.Context, ownerID string) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func newTestRouter(store *fakeTaskStore, notifier *fakeNotifier, owner string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewTaskHandler(store, notifier, fakeChanges{}, zap.NewNop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if owner != "" {
			c.Set("owner_id", owner)
		}
		c.Next()
	})
	r.POST("/tasks", h.CreateTask)
	r.GET("/tasks", h.ListTasks)
	r.PUT("/tasks/:id", h.UpdateTask)
	r.DELETE("/tasks/:id", h.DeleteTask)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateTask(t *testing.T) {
	store := newFakeTaskStore()
	notifier := &fakeNotifier{}
	r := newTestRouter(store, notifier, "alice")

	w := doJSON(t, r, http.MethodPost, "/tasks", `{"title":"buy milk","dueDate":"2026-09-01T12:00:00.000Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body)
	}

	var got model.Task
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID == "" || got.OwnerID != "alice" || got.Title != "buy milk" {
		t.Errorf("unexpected task %+v", got)
	}
	if len(notifier.owners) != 1 || notifier.owners[0] != "alice" {
		t.Errorf("change feed not nudged: %v", notifier.owners)
	}
}

func TestCreateTaskEmptyTitle(t *testing.T) {
	r := newTestRouter(newFakeTaskStore(), &fakeNotifier{}, "alice")

	w := doJSON(t, r, http.MethodPost, "/tasks", `{"title":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateTaskPartialFields(t *testing.T) {
	store := newFakeTaskStore(model.Task{ID: "t1", OwnerID: "alice", Title: "x"})
	r := newTestRouter(store, &fakeNotifier{}, "alice")

	w := doJSON(t, r, http.MethodPut, "/tasks/t1", `{"isDone":true,"dueDate":null}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body)
	}

	fields := store.updates["t1"]
	if len(fields) != 2 {
		t.Fatalf("got fields %v, want exactly the two provided", fields)
	}
	if fields["isDone"] != true {
		t.Error("isDone not passed through")
	}
	if v, present := fields["dueDate"]; !present || v != nil {
		t.Error("explicit null dueDate should clear the field")
	}
	if _, present := fields["title"]; present {
		t.Error("absent title must be left untouched")
	}
}

func TestUpdateTaskWrongOwner(t *testing.T) {
	store := newFakeTaskStore(model.Task{ID: "t1", OwnerID: "bob", Title: "x"})
	r := newTestRouter(store, &fakeNotifier{}, "alice")

	w := doJSON(t, r, http.MethodPut, "/tasks/t1", `{"isDone":true}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if len(store.updates) != 0 {
		t.Error("forbidden update reached the store")
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	r := newTestRouter(newFakeTaskStore(), &fakeNotifier{}, "alice")

	w := doJSON(t, r, http.MethodPut, "/tasks/ghost", `{"isDone":true}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateTaskRejectsBadTypes(t *testing.T) {
	store := newFakeTaskStore(model.Task{ID: "t1", OwnerID: "alice", Title: "x"})
	r := newTestRouter(store, &fakeNotifier{}, "alice")

	for _, body := range []string{
		`{"isDone":"yes"}`,
		`{"title":null}`,
		`{"title":""}`,
		`{"dueDate":42}`,
	} {
		w := doJSON(t, r, http.MethodPut, "/tasks/t1", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestDeleteTask(t *testing.T) {
	store := newFakeTaskStore(model.Task{ID: "t1", OwnerID: "alice", Title: "x"})
	notifier := &fakeNotifier{}
	r := newTestRouter(store, notifier, "alice")

	w := doJSON(t, r, http.MethodDelete, "/tasks/t1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "t1" {
		t.Errorf("deleted = %v", store.deleted)
	}
	if len(notifier.owners) != 1 {
		t.Error("change feed not nudged after delete")
	}
}

func TestDeleteTaskWrongOwner(t *testing.T) {
	store := newFakeTaskStore(model.Task{ID: "t1", OwnerID: "bob", Title: "x"})
	r := newTestRouter(store, &fakeNotifier{}, "alice")

	w := doJSON(t, r, http.MethodDelete, "/tasks/t1", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if len(store.deleted) != 0 {
		t.Error("forbidden delete reached the store")
	}
}

func TestListTasksScopedToOwner(t *testing.T) {
	store := newFakeTaskStore(
		model.Task{ID: "t1", OwnerID: "alice", Title: "mine"},
		model.Task{ID: "t2", OwnerID: "bob", Title: "not mine"},
	)
	r := newTestRouter(store, &fakeNotifier{}, "alice")

	w := doJSON(t, r, http.MethodGet, "/tasks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Tasks []model.Task `json:"tasks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Tasks) != 1 || resp.Tasks[0].ID != "t1" {
		t.Errorf("got %+v, want only alice's task", resp.Tasks)
	}
}
