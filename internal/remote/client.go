// Package remote adapts the task API to the sync engine's RemoteStore
// contract: plain JSON over HTTP for mutations, server-sent events for the
// change feed.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"taskmaster/internal/apperrors"
	"taskmaster/internal/model"
)

type Client struct {
	baseURL string
	httpc   *http.Client
	// streamc has no overall timeout: the SSE stream stays open for the
	// lifetime of the subscription.
	streamc *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		streamc: &http.Client{},
		logger:  logger,
	}
}

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
}

// Create posts a new task and returns the server-assigned record.
func (c *Client) Create(ctx context.Context, token, title string, description, dueDate *string) (model.Task, error) {
	body := createTaskRequest{
		Title:       title,
		Description: description,
		DueDate:     dueDate,
	}

	resp, err := c.do(ctx, token, http.MethodPost, "/tasks", body)
	if err != nil {
		return model.Task{}, err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return model.Task{}, err
	}

	var created model.Task
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return model.Task{}, fmt.Errorf("failed to decode created task: %w", err)
	}
	return created, nil
}

// UpdateStatus sends a partial update carrying only the done flag.
func (c *Client) UpdateStatus(ctx context.Context, token, id string, isDone bool) error {
	return c.update(ctx, token, id, map[string]any{"isDone": isDone})
}

// UpdateDetails replaces title, description and due date together. Nil
// pointers are serialized as explicit nulls so the server clears the field
// rather than leaving it untouched.
func (c *Client) UpdateDetails(ctx context.Context, token, id, title string, description, dueDate *string) error {
	return c.update(ctx, token, id, map[string]any{
		"title":       title,
		"description": description,
		"dueDate":     dueDate,
	})
}

func (c *Client) update(ctx context.Context, token, id string, fields map[string]any) error {
	resp, err := c.do(ctx, token, http.MethodPut, "/tasks/"+id, fields)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusError(resp)
}

func (c *Client) Delete(ctx context.Context, token, id string) error {
	resp, err := c.do(ctx, token, http.MethodDelete, "/tasks/"+id, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusError(resp)
}

// Subscribe opens the SSE change feed. Each "snapshot" event carries the
// full current task set for the token's owner. The returned channel closes
// when ctx ends or the stream drops; the caller decides whether to
// resubscribe.
func (c *Client) Subscribe(ctx context.Context, token string) (<-chan []model.Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/stream", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open change feed: %w", err)
	}
	if err := statusError(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	out := make(chan []model.Task)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		var data bytes.Buffer

		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "data:"):
				data.WriteString(strings.TrimPrefix(line[len("data:"):], " "))
			case line == "":
				if data.Len() == 0 {
					continue
				}
				var snapshot []model.Task
				if err := json.Unmarshal(data.Bytes(), &snapshot); err != nil {
					c.logger.Warn("Dropping malformed snapshot", zap.Error(err))
				} else {
					select {
					case out <- snapshot:
					case <-ctx.Done():
						return
					}
				}
				data.Reset()
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			c.logger.Warn("Change feed read failed", zap.Error(err))
		}
	}()

	return out, nil
}

func (c *Client) do(ctx context.Context, token, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	return resp, nil
}

// statusError maps API status codes onto the shared error taxonomy.
func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.ErrNotAuthenticated
	case resp.StatusCode == http.StatusForbidden:
		return apperrors.ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
