package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatdesk/internal/domain/conversation"
)

const cacheKeyPrefix = "conversation:"

func cacheKey(chatID string) string {
	return cacheKeyPrefix + chatID
}

// cachedConversation is the JSON shape stored behind the cache port. Kept
// separate from the domain type so cache layout changes never leak into it.
type cachedConversation struct {
	ID              int64           `json:"id"`
	ChatID          string          `json:"chat_id"`
	Username        string          `json:"username,omitempty"`
	FirstName       string          `json:"first_name,omitempty"`
	LastName        string          `json:"last_name,omitempty"`
	Messages        []cachedMessage `json:"messages,omitempty"`
	LastMessageTime time.Time       `json:"last_message_time"`
	Synced          bool            `json:"synced"`
	TicketID        string          `json:"ticket_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type cachedMessage struct {
	ID                int64     `json:"id"`
	ConversationID    int64     `json:"conversation_id"`
	Text              string    `json:"text"`
	Sender            string    `json:"sender"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

func encodeConversation(c *conversation.Conversation) (string, error) {
	doc := cachedConversation{
		ID:              c.ID,
		ChatID:          c.ChatID,
		Username:        c.Username,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		LastMessageTime: c.LastMessageTime,
		Synced:          c.Synced,
		TicketID:        c.TicketID,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	for _, m := range c.Messages {
		doc.Messages = append(doc.Messages, cachedMessage{
			ID:                m.ID,
			ConversationID:    m.ConversationID,
			Text:              m.Text,
			Sender:            string(m.Sender),
			ProviderMessageID: m.ProviderMessageID,
			Timestamp:         m.Timestamp,
		})
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeConversation(raw string) (*conversation.Conversation, error) {
	var doc cachedConversation
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode cached conversation: %w", err)
	}
	conv := &conversation.Conversation{
		ID:              doc.ID,
		ChatID:          doc.ChatID,
		Username:        doc.Username,
		FirstName:       doc.FirstName,
		LastName:        doc.LastName,
		LastMessageTime: doc.LastMessageTime,
		Synced:          doc.Synced,
		TicketID:        doc.TicketID,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
	for _, m := range doc.Messages {
		conv.Messages = append(conv.Messages, conversation.Message{
			ID:                m.ID,
			ConversationID:    m.ConversationID,
			Text:              m.Text,
			Sender:            conversation.Sender(m.Sender),
			ProviderMessageID: m.ProviderMessageID,
			Timestamp:         m.Timestamp,
		})
	}
	return conv, nil
}

// fromCache loads a conversation from the cache. Returns port.ErrMiss on a
// clean miss; a corrupt entry is reported as an error so callers fall back to
// the store.
func (s *Service) fromCache(ctx context.Context, chatID string) (*conversation.Conversation, error) {
	raw, err := s.Cache.Get(ctx, cacheKey(chatID))
	if err != nil {
		return nil, err
	}
	return decodeConversation(raw)
}

// cacheConversation write-throughs a persisted conversation. Failures are
// logged and swallowed; the cache must never fail a caller.
func (s *Service) cacheConversation(ctx context.Context, c *conversation.Conversation) {
	if s.Cache == nil {
		return
	}
	raw, err := encodeConversation(c)
	if err != nil {
		s.Logger.Warn("cannot encode conversation for cache", "chat_id", c.ChatID, "error", err)
		return
	}
	ttl := s.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if err := s.Cache.Set(ctx, cacheKey(c.ChatID), raw, ttl); err != nil {
		s.Logger.Warn("cannot cache conversation", "chat_id", c.ChatID, "error", err)
		return
	}
	s.Logger.Debug("cached conversation", "chat_id", c.ChatID)
}

// invalidateCache drops the cached copy so the next resolve re-reads the
// store. Failures are logged and swallowed.
func (s *Service) invalidateCache(ctx context.Context, chatID string) {
	if s.Cache == nil {
		return
	}
	if _, err := s.Cache.Del(ctx, cacheKey(chatID)); err != nil {
		s.Logger.Warn("cannot invalidate conversation cache", "chat_id", chatID, "error", err)
		return
	}
	s.Logger.Debug("invalidated conversation cache", "chat_id", chatID)
}
