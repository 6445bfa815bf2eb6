package session

import (
	"context"
	"fmt"
	"strings"

	"chatdesk/internal/domain/conversation"
)

// IngestInput is one inbound user message from the messaging provider.
type IngestInput struct {
	ChatID            string
	Meta              conversation.Metadata
	Text              string
	ProviderMessageID string
}

// Ingest appends an inbound message to the chat's session and persists the
// result atomically. A new message always clears the sync flag, whatever its
// previous value, so the desk sees the conversation as dirty again. The cache
// is refreshed after the commit; cache failure never fails the call. On a
// store failure nothing was committed and the caller must not acknowledge
// receipt.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (*conversation.Conversation, error) {
	if strings.TrimSpace(in.ChatID) == "" {
		return nil, fmt.Errorf("%w: chat id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("%w: message text is required", ErrInvalidInput)
	}

	conv, err := s.Resolve(ctx, in.ChatID, in.Meta)
	if err != nil {
		return nil, err
	}

	conv.Append(conversation.Message{
		Text:              in.Text,
		Sender:            conversation.SenderUser,
		ProviderMessageID: in.ProviderMessageID,
		Timestamp:         s.now(),
	})
	conv.Synced = false

	if err := s.Repo.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.Logger.Info("saved conversation",
		"conversation_id", conv.ID,
		"chat_id", conv.ChatID,
		"messages", conv.MessageCount())

	s.cacheConversation(ctx, conv)
	s.publish(ctx, eventIngested, conv)
	return conv, nil
}
