package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenStore is the slice of the push token repository the handlers need.
type TokenStore interface {
	Upsert(ctx context.Context, ownerID, token string) error
	DeleteForOwner(ctx context.Context, ownerID, token string) error
}

type PushTokenHandler struct {
	tokens TokenStore
	logger *zap.Logger
}

func NewPushTokenHandler(tokens TokenStore, logger *zap.Logger) *PushTokenHandler {
	return &PushTokenHandler{tokens: tokens, logger: logger}
}

type registerTokenRequest struct {
	Token string `json:"token"`
}

// Register handles POST /push-tokens. Registering a token that already
// exists reassigns it to the calling owner, so a device changing accounts
// never double-delivers.
func (h *PushTokenHandler) Register(c *gin.Context) {
	ownerID := c.GetString("owner_id")

	var req registerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	if err := h.tokens.Upsert(c.Request.Context(), ownerID, req.Token); err != nil {
		h.logger.Error("Failed to register push token",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "token registered"})
}

// Unregister handles DELETE /push-tokens/:token. Only the owner's own
// registration is touched, and removing a token that is already gone
// still succeeds.
func (h *PushTokenHandler) Unregister(c *gin.Context) {
	ownerID := c.GetString("owner_id")
	token := c.Param("token")

	if err := h.tokens.DeleteForOwner(c.Request.Context(), ownerID, token); err != nil {
		h.logger.Error("Failed to remove push token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove token"})
		return
	}

	c.Status(http.StatusNoContent)
}
