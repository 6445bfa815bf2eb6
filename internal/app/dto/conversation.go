package dto

import (
	"time"

	"chatdesk/internal/domain/conversation"
)

// Conversation is the API shape served to the desk integration.
type Conversation struct {
	ID              int64     `json:"id"`
	ChatID          string    `json:"chat_id"`
	Username        string    `json:"username,omitempty"`
	FirstName       string    `json:"first_name,omitempty"`
	LastName        string    `json:"last_name,omitempty"`
	Messages        []Message `json:"messages,omitempty"`
	MessageCount    int       `json:"message_count"`
	LastMessageTime time.Time `json:"last_message_time"`
	Synced          bool      `json:"synced"`
	TicketID        string    `json:"ticket_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Message struct {
	ID                int64     `json:"id"`
	Text              string    `json:"text"`
	Sender            string    `json:"sender"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

type ConversationList struct {
	Items []Conversation `json:"items"`
	Total int            `json:"total"`
}

type Stats struct {
	Total       int64 `json:"total"`
	PendingSync int64 `json:"pending_sync"`
	Last24h     int   `json:"last_24h"`
}

// FromConversation maps a domain conversation into the API shape, including
// its loaded message history.
func FromConversation(c *conversation.Conversation) Conversation {
	out := Conversation{
		ID:              c.ID,
		ChatID:          c.ChatID,
		Username:        c.Username,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		MessageCount:    c.MessageCount(),
		LastMessageTime: c.LastMessageTime,
		Synced:          c.Synced,
		TicketID:        c.TicketID,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	for _, m := range c.Messages {
		out.Messages = append(out.Messages, Message{
			ID:                m.ID,
			Text:              m.Text,
			Sender:            string(m.Sender),
			ProviderMessageID: m.ProviderMessageID,
			Timestamp:         m.Timestamp,
		})
	}
	return out
}

// FromConversations maps a list result; histories are not loaded on lists so
// message fields stay empty.
func FromConversations(convs []*conversation.Conversation) ConversationList {
	list := ConversationList{Items: make([]Conversation, 0, len(convs)), Total: len(convs)}
	for _, c := range convs {
		item := FromConversation(c)
		item.Messages = nil
		list.Items = append(list.Items, item)
	}
	return list
}
