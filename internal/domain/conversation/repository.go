package conversation

import (
	"context"
	"time"
)

// Repository is the durable-store port for conversations. The store is the
// system of record; every write method commits atomically (a conversation and
// its new messages land together or not at all).
//
// List methods return conversations without their message history loaded;
// ByID and ByChatID return the full history in timestamp order.
type Repository interface {
	ByID(ctx context.Context, id int64) (*Conversation, error)
	ByChatID(ctx context.Context, chatID string) (*Conversation, error)
	ByTicketID(ctx context.Context, ticketID string) (*Conversation, error)

	// Save upserts the conversation row and inserts any messages that do not
	// have an ID yet, in one transaction. Assigned IDs are written back into
	// the passed conversation.
	Save(ctx context.Context, c *Conversation) error

	// MarkSynced flips the sync flag to true in a single read-then-write
	// store operation and returns the updated conversation (history not
	// loaded). Returns ErrNotFound when the id does not exist.
	MarkSynced(ctx context.Context, id int64) (*Conversation, error)

	// AttachTicket records the external ticket identifier. Returns
	// ErrNotFound when the id does not exist.
	AttachTicket(ctx context.Context, id int64, ticketID string) (*Conversation, error)

	ListPendingSync(ctx context.Context) ([]*Conversation, error)
	ListStale(ctx context.Context, cutoff time.Time) ([]*Conversation, error)
	ListRecent(ctx context.Context, since time.Time) ([]*Conversation, error)

	// Delete removes the given conversations and cascades to their messages
	// in one batch. Unknown ids are skipped. Returns the number deleted.
	Delete(ctx context.Context, ids []int64) (int64, error)

	Count(ctx context.Context) (int64, error)
	CountPendingSync(ctx context.Context) (int64, error)
}
