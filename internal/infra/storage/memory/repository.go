package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"chatdesk/internal/domain/conversation"
)

// ConversationRepository is a mutex-guarded in-memory implementation of the
// conversation store, used for local development without Mongo and as the
// test double. Entities are deep-copied on the way in and out so callers can
// never alias internal state.
type ConversationRepository struct {
	mu       sync.RWMutex
	byID     map[int64]*conversation.Conversation
	nextConv int64
	nextMsg  int64
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{byID: make(map[int64]*conversation.Conversation)}
}

var _ conversation.Repository = (*ConversationRepository)(nil)

func (r *ConversationRepository) ByID(ctx context.Context, id int64) (*conversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return clone(c), nil
}

func (r *ConversationRepository) ByChatID(ctx context.Context, chatID string) (*conversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byID {
		if c.ChatID == chatID {
			return clone(c), nil
		}
	}
	return nil, conversation.ErrNotFound
}

func (r *ConversationRepository) ByTicketID(ctx context.Context, ticketID string) (*conversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byID {
		if c.TicketID != "" && c.TicketID == ticketID {
			return clone(c), nil
		}
	}
	return nil, conversation.ErrNotFound
}

func (r *ConversationRepository) Save(ctx context.Context, c *conversation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		r.nextConv++
		c.ID = r.nextConv
	}
	for i := range c.Messages {
		if c.Messages[i].ID == 0 {
			r.nextMsg++
			c.Messages[i].ID = r.nextMsg
			c.Messages[i].ConversationID = c.ID
		}
	}
	r.byID[c.ID] = clone(c)
	return nil
}

func (r *ConversationRepository) MarkSynced(ctx context.Context, id int64) (*conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	c.Synced = true
	c.UpdatedAt = time.Now()
	return clone(c), nil
}

func (r *ConversationRepository) AttachTicket(ctx context.Context, id int64, ticketID string) (*conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	c.TicketID = ticketID
	c.UpdatedAt = time.Now()
	return clone(c), nil
}

func (r *ConversationRepository) ListPendingSync(ctx context.Context) ([]*conversation.Conversation, error) {
	return r.listMatching(func(c *conversation.Conversation) bool {
		return !c.Synced
	}), nil
}

func (r *ConversationRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*conversation.Conversation, error) {
	return r.listMatching(func(c *conversation.Conversation) bool {
		return c.Stale(cutoff)
	}), nil
}

func (r *ConversationRepository) ListRecent(ctx context.Context, since time.Time) ([]*conversation.Conversation, error) {
	out := r.listMatching(func(c *conversation.Conversation) bool {
		return !c.LastMessageTime.Before(since)
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}

func (r *ConversationRepository) listMatching(match func(*conversation.Conversation) bool) []*conversation.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*conversation.Conversation, 0)
	for _, c := range r.byID {
		if match(c) {
			out = append(out, clone(c))
		}
	}
	return out
}

func (r *ConversationRepository) Delete(ctx context.Context, ids []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		if _, ok := r.byID[id]; ok {
			delete(r.byID, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *ConversationRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byID)), nil
}

func (r *ConversationRepository) CountPendingSync(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, c := range r.byID {
		if !c.Synced {
			n++
		}
	}
	return n, nil
}

func clone(c *conversation.Conversation) *conversation.Conversation {
	cp := *c
	cp.Messages = append([]conversation.Message(nil), c.Messages...)
	return &cp
}
