package conversation

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no conversation matches the lookup key.
	ErrNotFound = errors.New("conversation: not found")
)

// Sender identifies which side of a conversation authored a message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// Metadata carries the descriptive chat fields delivered with a webhook update.
// All fields are optional and non-authoritative.
type Metadata struct {
	Username  string
	FirstName string
	LastName  string
}

// Message is a single immutable conversation entry. Messages are owned by their
// conversation and only ever removed together with it.
type Message struct {
	ID                int64
	ConversationID    int64
	Text              string
	Sender            Sender
	ProviderMessageID string
	Timestamp         time.Time
}

// Conversation ties one external chat to its ordered message history and the
// sync/ticket state consumed by the external desk.
type Conversation struct {
	ID              int64
	ChatID          string
	Username        string
	FirstName       string
	LastName        string
	Messages        []Message
	LastMessageTime time.Time
	Synced          bool
	TicketID        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// New builds an unpersisted conversation for a chat seen for the first time.
func New(chatID string, meta Metadata, now time.Time) *Conversation {
	return &Conversation{
		ChatID:          chatID,
		Username:        meta.Username,
		FirstName:       meta.FirstName,
		LastName:        meta.LastName,
		LastMessageTime: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Append adds a message to the history and bumps the activity timestamps.
// LastMessageTime never moves backwards.
func (c *Conversation) Append(m Message) {
	c.Messages = append(c.Messages, m)
	if m.Timestamp.After(c.LastMessageTime) {
		c.LastMessageTime = m.Timestamp
	}
	c.UpdatedAt = m.Timestamp
}

// MessageCount returns the number of messages in the loaded history.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// Ticketed reports whether the external desk has opened a ticket for this chat.
func (c *Conversation) Ticketed() bool {
	return c.TicketID != ""
}

// Stale reports whether the conversation saw no activity since cutoff.
func (c *Conversation) Stale(cutoff time.Time) bool {
	return c.LastMessageTime.Before(cutoff)
}

// RetentionEligible reports whether the sweeper may delete this conversation:
// it must be stale, and either already synced or never escalated to a ticket.
// A ticketed conversation the desk has not observed yet is always preserved.
func (c *Conversation) RetentionEligible(cutoff time.Time) bool {
	if !c.Stale(cutoff) {
		return false
	}
	return c.Synced || !c.Ticketed()
}
