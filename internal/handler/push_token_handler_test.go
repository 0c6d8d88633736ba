package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fakeTokens struct {
	mu      sync.Mutex
	byOwner map[string][]string
	removed [][2]string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byOwner: make(map[string][]string)}
}

func (f *fakeTokens) Upsert(ctx context.Context, ownerID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byOwner[ownerID] = append(f.byOwner[ownerID], token)
	return nil
}

func (f *fakeTokens) DeleteForOwner(ctx context.Context, ownerID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, [2]string{ownerID, token})
	return nil
}

func newTokenRouter(tokens *fakeTokens, owner string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPushTokenHandler(tokens, zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("owner_id", owner)
		c.Next()
	})
	r.POST("/push-tokens", h.Register)
	r.DELETE("/push-tokens/:token", h.Unregister)
	return r
}

func TestRegisterPushToken(t *testing.T) {
	tokens := newFakeTokens()
	r := newTokenRouter(tokens, "alice")

	w := doJSON(t, r, http.MethodPost, "/push-tokens", `{"token":"device-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body)
	}
	if got := tokens.byOwner["alice"]; len(got) != 1 || got[0] != "device-1" {
		t.Errorf("stored tokens = %v", got)
	}
}

func TestRegisterPushTokenMissingToken(t *testing.T) {
	r := newTokenRouter(newFakeTokens(), "alice")

	for _, body := range []string{`{}`, `{"token":"  "}`, `not json`} {
		w := doJSON(t, r, http.MethodPost, "/push-tokens", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestUnregisterPushTokenIsOwnerScoped(t *testing.T) {
	tokens := newFakeTokens()
	r := newTokenRouter(tokens, "alice")

	w := doJSON(t, r, http.MethodDelete, "/push-tokens/device-1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if len(tokens.removed) != 1 || tokens.removed[0] != [2]string{"alice", "device-1"} {
		t.Errorf("removed = %v, want owner-scoped removal", tokens.removed)
	}
}
