package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReminderRunner performs one reminder scan over the upcoming due window.
type ReminderRunner interface {
	Run(ctx context.Context) (int, error)
}

type ReminderHandler struct {
	runner ReminderRunner
	secret string
	logger *zap.Logger
}

func NewReminderHandler(runner ReminderRunner, secret string, logger *zap.Logger) *ReminderHandler {
	return &ReminderHandler{runner: runner, secret: secret, logger: logger}
}

// Run handles POST /internal/reminders/run. The endpoint is meant for an
// external scheduler and is gated by a shared secret instead of a user token.
func (h *ReminderHandler) Run(c *gin.Context) {
	supplied := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if h.secret == "" ||
		subtle.ConstantTimeCompare([]byte(supplied), []byte(h.secret)) != 1 {
		h.logger.Warn("Reminder run rejected: bad cron secret")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	published, err := h.runner.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("Reminder run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reminder run failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"published": published})
}
