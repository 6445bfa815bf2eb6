package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatdesk/internal/domain/conversation"
)

// ConversationRepository persists conversations and their messages in two
// collections. All multi-document writes run inside a driver session
// transaction so a conversation and its new messages commit together.
type ConversationRepository struct {
	db            *mongo.Database
	conversations *mongo.Collection
	messages      *mongo.Collection
	counters      *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{
		db:            db,
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
		counters:      db.Collection("counters"),
	}
}

// EnsureIndexes creates the lookup indexes: unique chat_id plus the sync-flag
// and last-activity indexes the desk pull and the sweeper scan rely on.
func (r *ConversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "chat_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "synced", Value: 1}}},
		{Keys: bson.D{{Key: "last_message_time", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: conversation indexes: %w", err)
	}
	_, err = r.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}}},
		{Keys: bson.D{{Key: "provider_message_id", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: message indexes: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ByID(ctx context.Context, id int64) (*conversation.Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ConversationRepository) ByChatID(ctx context.Context, chatID string) (*conversation.Conversation, error) {
	return r.findOne(ctx, bson.M{"chat_id": chatID})
}

func (r *ConversationRepository) ByTicketID(ctx context.Context, ticketID string) (*conversation.Conversation, error) {
	return r.findOne(ctx, bson.M{"ticket_id": ticketID})
}

func (r *ConversationRepository) findOne(ctx context.Context, filter bson.M) (*conversation.Conversation, error) {
	var doc conversationDocument
	if err := r.conversations.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, conversation.ErrNotFound
		}
		return nil, err
	}
	conv := doc.toEntity()
	msgs, err := r.loadMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	conv.Messages = msgs
	return conv, nil
}

func (r *ConversationRepository) loadMessages(ctx context.Context, conversationID int64) ([]conversation.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	msgs := make([]conversation.Message, 0, len(docs))
	for _, d := range docs {
		msgs = append(msgs, d.toEntity())
	}
	return msgs, nil
}

// Save upserts the conversation row and inserts messages that have no ID yet,
// all in one transaction. IDs come from the counters collection so the
// surrogate keys stay numeric like the rest of the system expects.
func (r *ConversationRepository) Save(ctx context.Context, c *conversation.Conversation) error {
	if c.ID == 0 {
		id, err := r.nextID(ctx, "conversations")
		if err != nil {
			return err
		}
		c.ID = id
	}
	var fresh []*conversation.Message
	for i := range c.Messages {
		if c.Messages[i].ID != 0 {
			continue
		}
		id, err := r.nextID(ctx, "messages")
		if err != nil {
			return err
		}
		c.Messages[i].ID = id
		c.Messages[i].ConversationID = c.ID
		fresh = append(fresh, &c.Messages[i])
	}

	session, err := r.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		doc := newConversationDocument(c)
		opts := options.Replace().SetUpsert(true)
		if _, err := r.conversations.ReplaceOne(sc, bson.M{"_id": doc.ID}, doc, opts); err != nil {
			return nil, err
		}
		if len(fresh) > 0 {
			rows := make([]any, 0, len(fresh))
			for _, m := range fresh {
				rows = append(rows, newMessageDocument(m))
			}
			if _, err := r.messages.InsertMany(sc, rows); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("mongo: concurrent create for chat %s: %w", c.ChatID, err)
		}
		return err
	}
	return nil
}

func (r *ConversationRepository) MarkSynced(ctx context.Context, id int64) (*conversation.Conversation, error) {
	return r.updateOne(ctx, id, bson.M{"synced": true})
}

func (r *ConversationRepository) AttachTicket(ctx context.Context, id int64, ticketID string) (*conversation.Conversation, error) {
	return r.updateOne(ctx, id, bson.M{"ticket_id": ticketID})
}

// updateOne applies a field update as one atomic read-then-write and returns
// the post-update document, history not loaded.
func (r *ConversationRepository) updateOne(ctx context.Context, id int64, set bson.M) (*conversation.Conversation, error) {
	set["updated_at"] = time.Now().UnixMilli()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc conversationDocument
	err := r.conversations.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, conversation.ErrNotFound
		}
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *ConversationRepository) ListPendingSync(ctx context.Context) ([]*conversation.Conversation, error) {
	// Oldest activity first so the desk drains backlog in a sensible order;
	// callers must not rely on it.
	opts := options.Find().SetSort(bson.D{{Key: "last_message_time", Value: 1}})
	return r.list(ctx, bson.M{"synced": false}, opts)
}

func (r *ConversationRepository) ListStale(ctx context.Context, cutoff time.Time) ([]*conversation.Conversation, error) {
	return r.list(ctx, bson.M{"last_message_time": bson.M{"$lt": cutoff.UnixMilli()}}, nil)
}

func (r *ConversationRepository) ListRecent(ctx context.Context, since time.Time) ([]*conversation.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_time", Value: -1}})
	return r.list(ctx, bson.M{"last_message_time": bson.M{"$gte": since.UnixMilli()}}, opts)
}

func (r *ConversationRepository) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*conversation.Conversation, error) {
	var cur *mongo.Cursor
	var err error
	if opts != nil {
		cur, err = r.conversations.Find(ctx, filter, opts)
	} else {
		cur, err = r.conversations.Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	var docs []conversationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	convs := make([]*conversation.Conversation, 0, len(docs))
	for _, d := range docs {
		convs = append(convs, d.toEntity())
	}
	return convs, nil
}

// Delete removes the conversations and cascades to their messages in one
// transaction. The message cascade lives here, not in application logic.
func (r *ConversationRepository) Delete(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	session, err := r.db.Client().StartSession()
	if err != nil {
		return 0, err
	}
	defer session.EndSession(ctx)

	deleted, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := r.messages.DeleteMany(sc, bson.M{"conversation_id": bson.M{"$in": ids}}); err != nil {
			return nil, err
		}
		res, err := r.conversations.DeleteMany(sc, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return nil, err
		}
		return res.DeletedCount, nil
	})
	if err != nil {
		return 0, err
	}
	return deleted.(int64), nil
}

func (r *ConversationRepository) Count(ctx context.Context) (int64, error) {
	return r.conversations.CountDocuments(ctx, bson.M{})
}

func (r *ConversationRepository) CountPendingSync(ctx context.Context) (int64, error) {
	return r.conversations.CountDocuments(ctx, bson.M{"synced": false})
}

// nextID increments the named sequence in the counters collection.
func (r *ConversationRepository) nextID(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("mongo: next id for %s: %w", name, err)
	}
	return doc.Seq, nil
}

type conversationDocument struct {
	ID              int64  `bson:"_id"`
	ChatID          string `bson:"chat_id"`
	Username        string `bson:"username,omitempty"`
	FirstName       string `bson:"first_name,omitempty"`
	LastName        string `bson:"last_name,omitempty"`
	LastMessageTime int64  `bson:"last_message_time"`
	Synced          bool   `bson:"synced"`
	TicketID        string `bson:"ticket_id,omitempty"`
	CreatedAt       int64  `bson:"created_at"`
	UpdatedAt       int64  `bson:"updated_at"`
}

func newConversationDocument(c *conversation.Conversation) conversationDocument {
	return conversationDocument{
		ID:              c.ID,
		ChatID:          c.ChatID,
		Username:        c.Username,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		LastMessageTime: c.LastMessageTime.UnixMilli(),
		Synced:          c.Synced,
		TicketID:        c.TicketID,
		CreatedAt:       c.CreatedAt.UnixMilli(),
		UpdatedAt:       c.UpdatedAt.UnixMilli(),
	}
}

func (d conversationDocument) toEntity() *conversation.Conversation {
	return &conversation.Conversation{
		ID:              d.ID,
		ChatID:          d.ChatID,
		Username:        d.Username,
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		LastMessageTime: timestampToTime(d.LastMessageTime),
		Synced:          d.Synced,
		TicketID:        d.TicketID,
		CreatedAt:       timestampToTime(d.CreatedAt),
		UpdatedAt:       timestampToTime(d.UpdatedAt),
	}
}

type messageDocument struct {
	ID                int64  `bson:"_id"`
	ConversationID    int64  `bson:"conversation_id"`
	Text              string `bson:"text"`
	Sender            string `bson:"sender"`
	ProviderMessageID string `bson:"provider_message_id,omitempty"`
	Timestamp         int64  `bson:"timestamp"`
}

func newMessageDocument(m *conversation.Message) messageDocument {
	return messageDocument{
		ID:                m.ID,
		ConversationID:    m.ConversationID,
		Text:              m.Text,
		Sender:            string(m.Sender),
		ProviderMessageID: m.ProviderMessageID,
		Timestamp:         m.Timestamp.UnixMilli(),
	}
}

func (d messageDocument) toEntity() conversation.Message {
	return conversation.Message{
		ID:                d.ID,
		ConversationID:    d.ConversationID,
		Text:              d.Text,
		Sender:            conversation.Sender(d.Sender),
		ProviderMessageID: d.ProviderMessageID,
		Timestamp:         timestampToTime(d.Timestamp),
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
