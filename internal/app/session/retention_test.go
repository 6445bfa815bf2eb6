package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatdesk/internal/domain/conversation"
	"chatdesk/internal/infra/storage/memory"
)

func seedConversation(t *testing.T, repo conversation.Repository, chatID string, last time.Time, synced bool, ticketID string) *conversation.Conversation {
	t.Helper()
	conv := &conversation.Conversation{
		ChatID:          chatID,
		LastMessageTime: last,
		Synced:          synced,
		TicketID:        ticketID,
		CreatedAt:       last,
		UpdatedAt:       last,
	}
	conv.Messages = []conversation.Message{{
		Text:      "seed",
		Sender:    conversation.SenderUser,
		Timestamp: last,
	}}
	require.NoError(t, repo.Save(context.Background(), conv))
	return conv
}

func newSweeper(repo conversation.Repository, now time.Time) *Sweeper {
	return &Sweeper{
		Repo:            repo,
		RetentionWindow: 7 * 24 * time.Hour,
		Enabled:         true,
		Logger:          testLogger(),
		Now:             func() time.Time { return now },
	}
}

func TestSweepDeletesOnlyEligible(t *testing.T) {
	repo := memory.NewConversationRepository()
	now := time.Date(2026, 8, 31, 2, 0, 0, 0, time.UTC)
	stale := now.Add(-10 * 24 * time.Hour)

	syncedStale := seedConversation(t, repo, "synced-stale", stale, true, "")
	ticketedUnsynced := seedConversation(t, repo, "ticketed-unsynced", stale, false, "T-1")
	neverTicketed := seedConversation(t, repo, "never-ticketed", stale, false, "")
	fresh := seedConversation(t, repo, "fresh", now.Add(-time.Hour), false, "")

	require.NoError(t, newSweeper(repo, now).Sweep(context.Background()))

	ctx := context.Background()
	_, err := repo.ByID(ctx, syncedStale.ID)
	require.ErrorIs(t, err, conversation.ErrNotFound, "stale synced conversation must be deleted")
	_, err = repo.ByID(ctx, neverTicketed.ID)
	require.ErrorIs(t, err, conversation.ErrNotFound, "stale never-ticketed conversation must be deleted")

	kept, err := repo.ByID(ctx, ticketedUnsynced.ID)
	require.NoError(t, err, "unsynced ticketed conversation must survive regardless of age")
	require.Equal(t, "T-1", kept.TicketID)
	_, err = repo.ByID(ctx, fresh.ID)
	require.NoError(t, err, "fresh conversation must survive")
}

func TestSweepCascadesMessages(t *testing.T) {
	repo := memory.NewConversationRepository()
	now := time.Date(2026, 8, 31, 2, 0, 0, 0, time.UTC)
	conv := seedConversation(t, repo, "synced-stale", now.Add(-30*24*time.Hour), true, "")
	require.NotEmpty(t, conv.Messages)

	require.NoError(t, newSweeper(repo, now).Sweep(context.Background()))

	_, err := repo.ByID(context.Background(), conv.ID)
	require.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestSweepDisabledIsNoop(t *testing.T) {
	repo := memory.NewConversationRepository()
	now := time.Date(2026, 8, 31, 2, 0, 0, 0, time.UTC)
	conv := seedConversation(t, repo, "synced-stale", now.Add(-30*24*time.Hour), true, "")

	sweeper := newSweeper(repo, now)
	sweeper.Enabled = false
	require.NoError(t, sweeper.Sweep(context.Background()))

	_, err := repo.ByID(context.Background(), conv.ID)
	require.NoError(t, err)
}

func TestNewMessageRemovesStaleness(t *testing.T) {
	repo := memory.NewConversationRepository()
	cache := memory.NewCache()
	svc := NewService(repo, cache, testLogger())
	now := time.Date(2026, 8, 31, 2, 0, 0, 0, time.UTC)

	conv := seedConversation(t, repo, "was-stale", now.Add(-30*24*time.Hour), true, "")

	// activity just before the sweep pulls the conversation back to active
	svc.Now = func() time.Time { return now }
	_, err := svc.Ingest(context.Background(), IngestInput{ChatID: "was-stale", Text: "ping", ProviderMessageID: "m9"})
	require.NoError(t, err)

	require.NoError(t, newSweeper(repo, now).Sweep(context.Background()))

	kept, err := repo.ByID(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, kept.Messages, 2)
}

type staleFailRepo struct {
	*memory.ConversationRepository
}

func (staleFailRepo) ListStale(context.Context, time.Time) ([]*conversation.Conversation, error) {
	return nil, errors.New("store down")
}

func TestSweepAbortsCycleOnStoreFailure(t *testing.T) {
	repo := staleFailRepo{memory.NewConversationRepository()}
	sweeper := newSweeper(repo, time.Now())

	err := sweeper.Sweep(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestLogStatsDoesNotMutate(t *testing.T) {
	repo := memory.NewConversationRepository()
	now := time.Date(2026, 8, 31, 2, 0, 0, 0, time.UTC)
	seedConversation(t, repo, "a", now.Add(-time.Hour), false, "")
	seedConversation(t, repo, "b", now.Add(-48*time.Hour), true, "")

	sweeper := newSweeper(repo, now)
	sweeper.LogStats(context.Background())

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	pending, err := repo.CountPendingSync(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, pending)
}
