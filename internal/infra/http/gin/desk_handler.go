package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"chatdesk/internal/app/dto"
	"chatdesk/internal/app/session"
	"chatdesk/internal/domain/conversation"
)

// DeskHandler serves the ticketing integration: pulling pending-sync
// conversations, marking them synced, and attaching ticket identifiers.
type DeskHandler struct {
	Sessions *session.Service
	Logger   *slog.Logger
}

func (h DeskHandler) PendingSync(c *gin.Context) {
	convs, err := h.Sessions.ListPendingSync(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "list pending sync")
		return
	}
	c.JSON(http.StatusOK, dto.FromConversations(convs))
}

func (h DeskHandler) MarkSynced(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Sessions.MarkSynced(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "mark synced", "conversation_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h DeskHandler) AttachTicket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body struct {
		TicketID string `json:"ticket_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	conv, err := h.Sessions.AttachTicket(c.Request.Context(), id, body.TicketID)
	if err != nil {
		h.respondError(c, err, "attach ticket", "conversation_id", id)
		return
	}
	c.JSON(http.StatusOK, dto.FromConversation(conv))
}

func (h DeskHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	conv, err := h.Sessions.ByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "get conversation", "conversation_id", id)
		return
	}
	c.JSON(http.StatusOK, dto.FromConversation(conv))
}

func (h DeskHandler) ByTicket(c *gin.Context) {
	ticketID := c.Param("ticket_id")
	conv, err := h.Sessions.ByTicketID(c.Request.Context(), ticketID)
	if err != nil {
		h.respondError(c, err, "get conversation by ticket", "ticket_id", ticketID)
		return
	}
	c.JSON(http.StatusOK, dto.FromConversation(conv))
}

func (h DeskHandler) Recent(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = parsed
	}
	convs, err := h.Sessions.ListRecent(c.Request.Context(), days)
	if err != nil {
		h.respondError(c, err, "list recent")
		return
	}
	c.JSON(http.StatusOK, dto.FromConversations(convs))
}

func (h DeskHandler) Stats(c *gin.Context) {
	stats, err := h.Sessions.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "read stats")
		return
	}
	c.JSON(http.StatusOK, dto.Stats{
		Total:       stats.Total,
		PendingSync: stats.PendingSync,
		Last24h:     stats.Last24h,
	})
}

func (h DeskHandler) respondError(c *gin.Context, err error, op string, args ...any) {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, session.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.Logger.Error("desk api failure", append([]any{"op", op, "error", err}, args...)...)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return id, true
}
