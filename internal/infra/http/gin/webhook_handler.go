package ginserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"chatdesk/internal/app/dto"
	"chatdesk/internal/app/session"
	"chatdesk/internal/domain/conversation"
)

// Sender delivers outbound messages to the messaging provider.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// WebhookHandler receives Telegram update payloads and feeds them into the
// ingestion pipeline.
type WebhookHandler struct {
	Sessions *session.Service
	Telegram Sender
	Logger   *slog.Logger
}

// Receive handles one webhook update. The response is always 200: Telegram
// retries non-2xx deliveries, and an application failure here is not
// something a retry from the provider can fix. The body distinguishes OK from
// ERROR for operators reading the provider's delivery logs.
func (h WebhookHandler) Receive(c *gin.Context) {
	var update dto.TelegramUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		h.Logger.Warn("malformed webhook payload", "error", err)
		c.String(http.StatusOK, "ERROR")
		return
	}
	h.Logger.Info("received telegram update", "update_id", update.UpdateID)

	msg := update.Message
	if msg == nil || msg.Text == "" || msg.Chat == nil {
		h.Logger.Debug("skipping non-text update", "update_id", update.UpdateID)
		c.String(http.StatusOK, "OK")
		return
	}

	conv, err := h.Sessions.Ingest(c.Request.Context(), session.IngestInput{
		ChatID:            strconv.FormatInt(msg.Chat.ID, 10),
		Meta:              chatMetadata(msg.Chat),
		Text:              msg.Text,
		ProviderMessageID: strconv.FormatInt(msg.MessageID, 10),
	})
	if err != nil {
		h.Logger.Error("cannot process webhook update", "update_id", update.UpdateID, "error", err)
		c.String(http.StatusOK, "ERROR")
		return
	}

	h.acknowledge(c.Request.Context(), conv, msg.Text)
	c.String(http.StatusOK, "OK")
}

// Status answers webhook health probes from the provider side.
func (h WebhookHandler) Status(c *gin.Context) {
	c.String(http.StatusOK, "Telegram webhook is active")
}

// acknowledge confirms receipt back to the user. The message is already
// persisted at this point, so a failed send is only logged.
func (h WebhookHandler) acknowledge(ctx context.Context, conv *conversation.Conversation, text string) {
	if h.Telegram == nil {
		return
	}
	reply := fmt.Sprintf(
		"Message received!\n\nYour message: %q\n\nOur support team will review your message shortly. Conversation ID: %d",
		text, conv.ID,
	)
	if err := h.Telegram.SendMessage(ctx, conv.ChatID, reply); err != nil {
		h.Logger.Error("cannot send acknowledgment", "chat_id", conv.ChatID, "error", err)
	}
}

func chatMetadata(chat *dto.TelegramChat) conversation.Metadata {
	return conversation.Metadata{
		Username:  chat.Username,
		FirstName: chat.FirstName,
		LastName:  chat.LastName,
	}
}
