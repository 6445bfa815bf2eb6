package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatdesk/internal/domain/conversation"
	"chatdesk/internal/infra/cache/port"
	"chatdesk/internal/infra/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *memory.ConversationRepository, *memory.Cache) {
	t.Helper()
	repo := memory.NewConversationRepository()
	cache := memory.NewCache()
	svc := NewService(repo, cache, testLogger())
	return svc, repo, cache
}

// downCache simulates an unreachable cache backend.
type downCache struct{}

func (downCache) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}
func (downCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}
func (downCache) Del(context.Context, ...string) (int64, error) {
	return 0, errors.New("connection refused")
}
func (downCache) Ping(context.Context) error { return errors.New("connection refused") }
func (downCache) Close() error               { return nil }

// failingRepo turns every Save into a store outage.
type failingRepo struct {
	*memory.ConversationRepository
}

func (failingRepo) Save(context.Context, *conversation.Conversation) error {
	return errors.New("store down")
}

func ingest(t *testing.T, svc *Service, chatID, text, providerID string) *conversation.Conversation {
	t.Helper()
	conv, err := svc.Ingest(context.Background(), IngestInput{
		ChatID:            chatID,
		Meta:              conversation.Metadata{Username: "alice"},
		Text:              text,
		ProviderMessageID: providerID,
	})
	require.NoError(t, err)
	return conv
}

func TestResolveIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	conv := ingest(t, svc, "chat-1", "hello", "m1")
	require.NotZero(t, conv.ID)

	first, err := svc.Resolve(ctx, "chat-1", conversation.Metadata{})
	require.NoError(t, err)
	second, err := svc.Resolve(ctx, "chat-1", conversation.Metadata{})
	require.NoError(t, err)
	require.Equal(t, conv.ID, first.ID)
	require.Equal(t, first.ID, second.ID)
}

func TestResolveMissDoesNotPersist(t *testing.T) {
	svc, repo, _ := newTestService(t)

	conv, err := svc.Resolve(context.Background(), "brand-new", conversation.Metadata{Username: "bob"})
	require.NoError(t, err)
	require.Zero(t, conv.ID)
	require.Equal(t, "bob", conv.Username)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestIngestAppearsInPendingSync(t *testing.T) {
	svc, _, _ := newTestService(t)

	conv := ingest(t, svc, "chat-1", "hello", "m1")

	pending, err := svc.ListPendingSync(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, conv.ID, pending[0].ID)
	require.Len(t, conv.Messages, 1)
	require.Equal(t, "hello", conv.Messages[0].Text)
}

func TestMarkSyncedRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	conv := ingest(t, svc, "chat-1", "hello", "m1")
	require.NoError(t, svc.MarkSynced(ctx, conv.ID))

	pending, err := svc.ListPendingSync(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	// a new message reintroduces the conversation into the pending set
	ingest(t, svc, "chat-1", "are you there?", "m2")
	pending, err = svc.ListPendingSync(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, conv.ID, pending[0].ID)
}

func TestMarkSyncedUnknownIDIsNoop(t *testing.T) {
	svc, repo, _ := newTestService(t)

	require.NoError(t, svc.MarkSynced(context.Background(), 12345))

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMarkSyncedInvalidatesCache(t *testing.T) {
	svc, _, cache := newTestService(t)
	ctx := context.Background()

	conv := ingest(t, svc, "chat-1", "hello", "m1")
	_, err := cache.Get(ctx, cacheKey("chat-1"))
	require.NoError(t, err, "ingest should have write-through cached the conversation")

	require.NoError(t, svc.MarkSynced(ctx, conv.ID))
	_, err = cache.Get(ctx, cacheKey("chat-1"))
	require.ErrorIs(t, err, port.ErrMiss, "cache entry must be dropped, not updated")

	// next resolve re-reads the store and sees the synced flag
	resolved, err := svc.Resolve(ctx, "chat-1", conversation.Metadata{})
	require.NoError(t, err)
	require.True(t, resolved.Synced)
}

func TestResolveSurvivesCacheOutage(t *testing.T) {
	repo := memory.NewConversationRepository()
	healthy := NewService(repo, memory.NewCache(), testLogger())
	conv := ingest(t, healthy, "chat-1", "hello", "m1")

	svc := NewService(repo, downCache{}, testLogger())
	resolved, err := svc.Resolve(context.Background(), "chat-1", conversation.Metadata{})
	require.NoError(t, err)
	require.Equal(t, conv.ID, resolved.ID)
	require.Len(t, resolved.Messages, 1)
}

func TestIngestSurvivesCacheOutage(t *testing.T) {
	repo := memory.NewConversationRepository()
	svc := NewService(repo, downCache{}, testLogger())

	conv := ingest(t, svc, "chat-1", "hello", "m1")
	require.NotZero(t, conv.ID)

	stored, err := repo.ByChatID(context.Background(), "chat-1")
	require.NoError(t, err)
	require.Len(t, stored.Messages, 1)
}

func TestResolveFallsBackOnCorruptCacheEntry(t *testing.T) {
	svc, _, cache := newTestService(t)
	ctx := context.Background()

	conv := ingest(t, svc, "chat-1", "hello", "m1")
	require.NoError(t, cache.Set(ctx, cacheKey("chat-1"), "{not json", time.Hour))

	resolved, err := svc.Resolve(ctx, "chat-1", conversation.Metadata{})
	require.NoError(t, err)
	require.Equal(t, conv.ID, resolved.ID)
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestInput{ChatID: "", Text: "hi"})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Ingest(ctx, IngestInput{ChatID: "chat-1", Text: "   "})
	require.ErrorIs(t, err, ErrInvalidInput)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count, "rejected input must not create state")
}

func TestIngestFailsWholeOnStoreOutage(t *testing.T) {
	cache := memory.NewCache()
	svc := NewService(failingRepo{memory.NewConversationRepository()}, cache, testLogger())

	_, err := svc.Ingest(context.Background(), IngestInput{ChatID: "chat-1", Text: "hello"})
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = cache.Get(context.Background(), cacheKey("chat-1"))
	require.ErrorIs(t, err, port.ErrMiss, "nothing may be cached when the store write failed")
}

func TestConcurrentIngestOnDistinctChats(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	const perChat = 20
	var wg sync.WaitGroup
	for _, chat := range []string{"chat-a", "chat-b"} {
		chat := chat
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perChat; i++ {
				_, err := svc.Ingest(ctx, IngestInput{
					ChatID:            chat,
					Text:              fmt.Sprintf("%s message %d", chat, i),
					ProviderMessageID: fmt.Sprintf("%s-%d", chat, i),
				})
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for _, chat := range []string{"chat-a", "chat-b"} {
		conv, err := repo.ByChatID(ctx, chat)
		require.NoError(t, err)
		require.Len(t, conv.Messages, perChat)
		for _, m := range conv.Messages {
			require.Contains(t, m.Text, chat, "messages must not leak across chats")
		}
	}
}

func TestIngestReadBackRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ingest(t, svc, "chat-7", "exact text", "prov-42")

	conv, err := svc.ByChatID(ctx, "chat-7")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	msg := conv.Messages[0]
	require.Equal(t, "exact text", msg.Text)
	require.Equal(t, conversation.SenderUser, msg.Sender)
	require.Equal(t, "prov-42", msg.ProviderMessageID)
}

func TestAttachTicket(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	conv := ingest(t, svc, "chat-1", "hello", "m1")

	updated, err := svc.AttachTicket(ctx, conv.ID, "T-99")
	require.NoError(t, err)
	require.Equal(t, "T-99", updated.TicketID)

	_, err = svc.AttachTicket(ctx, 777, "T-1")
	require.ErrorIs(t, err, conversation.ErrNotFound)

	_, err = svc.AttachTicket(ctx, conv.ID, "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a := ingest(t, svc, "chat-a", "hi", "m1")
	ingest(t, svc, "chat-b", "hi", "m2")
	require.NoError(t, svc.MarkSynced(ctx, a.ID))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.Total)
	require.EqualValues(t, 1, stats.PendingSync)
	require.Equal(t, 2, stats.Last24h)
}
