package session

import (
	"context"
	"errors"
	"fmt"

	"chatdesk/internal/domain/conversation"
)

// ListPendingSync returns every conversation the desk has not observed yet.
// Order is store-defined; callers must not rely on it.
func (s *Service) ListPendingSync(ctx context.Context) ([]*conversation.Conversation, error) {
	convs, err := s.Repo.ListPendingSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return convs, nil
}

// MarkSynced records that the desk observed the conversation's current state
// and drops the cached copy, forcing the next resolve to re-read the store.
// Idempotent: marking an unknown or already-synced id is a no-op.
//
// An ingest racing this call is resolved by the store's read-then-write: if
// the ingest commits first its message is covered by this sync; if this
// commits first the ingest clears the flag right back. At-least-once sync,
// never a lost pending state.
func (s *Service) MarkSynced(ctx context.Context, id int64) error {
	conv, err := s.Repo.MarkSynced(ctx, id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			s.Logger.Debug("mark synced on unknown conversation, ignoring", "conversation_id", id)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.invalidateCache(ctx, conv.ChatID)
	s.publish(ctx, eventSynced, conv)
	s.Logger.Info("marked conversation as synced", "conversation_id", id, "chat_id", conv.ChatID)
	return nil
}

// AttachTicket records the desk ticket identifier for a conversation. The
// cached copy is invalidated like any other mutation observed via the store.
func (s *Service) AttachTicket(ctx context.Context, id int64, ticketID string) (*conversation.Conversation, error) {
	if ticketID == "" {
		return nil, fmt.Errorf("%w: ticket id is required", ErrInvalidInput)
	}
	conv, err := s.Repo.AttachTicket(ctx, id, ticketID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.invalidateCache(ctx, conv.ChatID)
	s.Logger.Info("attached ticket to conversation",
		"conversation_id", id, "chat_id", conv.ChatID, "ticket_id", ticketID)
	return conv, nil
}
