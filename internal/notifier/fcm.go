package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"taskmaster/pkg/config"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// FCMClient sends notifications through the Firebase Cloud Messaging
// HTTP v1 API using a service account.
type FCMClient struct {
	endpoint string
	httpc    *http.Client
}

func NewFCMClient(ctx context.Context, cfg config.FCMConfig) (*FCMClient, error) {
	raw, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read FCM credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("parse FCM credentials: %w", err)
	}

	httpc := oauth2.NewClient(ctx, creds.TokenSource)
	httpc.Timeout = 10 * time.Second

	return &FCMClient{
		endpoint: fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", cfg.ProjectID),
		httpc:    httpc,
	}, nil
}

type fcmMessage struct {
	Message struct {
		Token        string `json:"token"`
		Notification struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		} `json:"notification"`
	} `json:"message"`
}

// Send delivers one notification. A token the provider reports as gone is
// surfaced as ErrUnregisteredToken so the caller can drop it.
func (c *FCMClient) Send(ctx context.Context, token, title, body string) error {
	var msg fcmMessage
	msg.Message.Token = token
	msg.Message.Notification.Title = title
	msg.Message.Notification.Body = body

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if resp.StatusCode == http.StatusNotFound ||
		strings.Contains(string(raw), "UNREGISTERED") ||
		strings.Contains(string(raw), "INVALID_ARGUMENT") {
		return ErrUnregisteredToken
	}
	return fmt.Errorf("push rejected: status %d: %s", resp.StatusCode, raw)
}
