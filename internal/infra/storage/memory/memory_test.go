package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatdesk/internal/domain/conversation"
	"chatdesk/internal/infra/cache/port"
)

func TestRepositoryAssignsIDs(t *testing.T) {
	repo := NewConversationRepository()
	ctx := context.Background()

	conv := conversation.New("chat-1", conversation.Metadata{}, time.Now())
	conv.Append(conversation.Message{Text: "hi", Sender: conversation.SenderUser, Timestamp: time.Now()})
	require.NoError(t, repo.Save(ctx, conv))

	require.NotZero(t, conv.ID)
	require.NotZero(t, conv.Messages[0].ID)
	require.Equal(t, conv.ID, conv.Messages[0].ConversationID)

	// a second save must not re-assign ids
	id, msgID := conv.ID, conv.Messages[0].ID
	require.NoError(t, repo.Save(ctx, conv))
	require.Equal(t, id, conv.ID)
	require.Equal(t, msgID, conv.Messages[0].ID)
}

func TestRepositoryIsolatesCallers(t *testing.T) {
	repo := NewConversationRepository()
	ctx := context.Background()

	conv := conversation.New("chat-1", conversation.Metadata{}, time.Now())
	conv.Append(conversation.Message{Text: "original", Timestamp: time.Now()})
	require.NoError(t, repo.Save(ctx, conv))

	loaded, err := repo.ByChatID(ctx, "chat-1")
	require.NoError(t, err)
	loaded.Messages[0].Text = "mutated"

	fresh, err := repo.ByChatID(ctx, "chat-1")
	require.NoError(t, err)
	require.Equal(t, "original", fresh.Messages[0].Text)
}

func TestRepositoryDelete(t *testing.T) {
	repo := NewConversationRepository()
	ctx := context.Background()

	a := conversation.New("a", conversation.Metadata{}, time.Now())
	b := conversation.New("b", conversation.Metadata{}, time.Now())
	require.NoError(t, repo.Save(ctx, a))
	require.NoError(t, repo.Save(ctx, b))

	deleted, err := repo.Delete(ctx, []int64{a.ID, 999})
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	_, err = repo.ByID(ctx, a.ID)
	require.ErrorIs(t, err, conversation.ErrNotFound)
	_, err = repo.ByID(ctx, b.ID)
	require.NoError(t, err)
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := NewCache()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Hour))

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)

	now = now.Add(2 * time.Hour)
	_, err = cache.Get(ctx, "k")
	require.ErrorIs(t, err, port.ErrMiss)
}

func TestCacheDelCountsExisting(t *testing.T) {
	cache := NewCache()
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "a", "1", 0))

	removed, err := cache.Del(ctx, "a", "missing")
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}
