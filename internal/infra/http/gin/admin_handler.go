package ginserver

import (
	"context"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"
)

// BotAPI is the slice of the Telegram client the admin endpoints need.
type BotAPI interface {
	Sender
	SetWebhook(ctx context.Context, url string) error
	DeleteWebhook(ctx context.Context) error
	WebhookInfo(ctx context.Context) (map[string]any, error)
}

// AdminHandler exposes operational endpoints: webhook registration and test
// sends.
type AdminHandler struct {
	Bot        BotAPI
	WebhookURL string
	Logger     *slog.Logger
}

func (h AdminHandler) RegisterWebhook(c *gin.Context) {
	if !h.botReady(c) {
		return
	}
	if h.WebhookURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "WEBHOOK_URL is not configured"})
		return
	}
	if err := h.Bot.SetWebhook(c.Request.Context(), h.WebhookURL); err != nil {
		h.Logger.Error("cannot register webhook", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered", "url": h.WebhookURL})
}

func (h AdminHandler) DeleteWebhook(c *gin.Context) {
	if !h.botReady(c) {
		return
	}
	if err := h.Bot.DeleteWebhook(c.Request.Context()); err != nil {
		h.Logger.Error("cannot delete webhook", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h AdminHandler) WebhookInfo(c *gin.Context) {
	if !h.botReady(c) {
		return
	}
	info, err := h.Bot.WebhookInfo(c.Request.Context())
	if err != nil {
		h.Logger.Error("cannot read webhook info", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h AdminHandler) TestMessage(c *gin.Context) {
	if !h.botReady(c) {
		return
	}
	chatID := c.Query("chat_id")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id is required"})
		return
	}
	message := c.DefaultQuery("message", "Test message from chatdesk")
	if err := h.Bot.SendMessage(c.Request.Context(), chatID, message); err != nil {
		h.Logger.Error("cannot send test message", "chat_id", chatID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent", "chat_id": chatID})
}

func (h AdminHandler) botReady(c *gin.Context) bool {
	if h.Bot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "telegram client not configured"})
		return false
	}
	return true
}
