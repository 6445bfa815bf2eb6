package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatdesk/internal/domain/conversation"
	"chatdesk/internal/infra/cache/port"
)

const defaultCacheTTL = time.Hour

// Service owns the conversation session lifecycle: locating or creating a
// session per chat, keeping the cache consistent with the store, and flipping
// the desk sync flag. The durable store is authoritative; the cache is a
// disposable accelerator and the service stays correct with Cache nil or down.
type Service struct {
	Repo        conversation.Repository
	Cache       port.Cache
	Events      Publisher
	TopicPrefix string
	CacheTTL    time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// NewService wires a Service with defaults for TTL, clock and logger.
func NewService(repo conversation.Repository, cache port.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Repo:     repo,
		Cache:    cache,
		CacheTTL: defaultCacheTTL,
		Logger:   logger,
		Now:      time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type lookupOutcome int

const (
	lookupHit lookupOutcome = iota
	lookupMiss
	lookupError
)

// lookupCache probes the cache for a chat and reports hit, miss or error as a
// tagged result instead of overloading error values.
func (s *Service) lookupCache(ctx context.Context, chatID string) (lookupOutcome, *conversation.Conversation) {
	if s.Cache == nil {
		return lookupMiss, nil
	}
	conv, err := s.fromCache(ctx, chatID)
	switch {
	case err == nil:
		return lookupHit, conv
	case errors.Is(err, port.ErrMiss):
		return lookupMiss, nil
	default:
		return lookupError, nil
	}
}

// Resolve returns the session for a chat, consulting the cache, then the
// store, and finally constructing a new unpersisted conversation from the
// webhook metadata. Cache trouble is logged and treated as a miss; a store hit
// repopulates the cache on the way out. Resolve never persists the new
// conversation itself.
func (s *Service) Resolve(ctx context.Context, chatID string, meta conversation.Metadata) (*conversation.Conversation, error) {
	outcome, cached := s.lookupCache(ctx, chatID)
	switch outcome {
	case lookupHit:
		s.Logger.Debug("conversation cache hit", "chat_id", chatID)
		return cached, nil
	case lookupError:
		s.Logger.Warn("conversation cache unavailable, falling back to store", "chat_id", chatID)
	}

	existing, err := s.Repo.ByChatID(ctx, chatID)
	if err == nil {
		s.cacheConversation(ctx, existing)
		return existing, nil
	}
	if !errors.Is(err, conversation.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.Logger.Info("creating new conversation", "chat_id", chatID)
	return conversation.New(chatID, meta, s.now()), nil
}

// ByChatID returns the conversation for a chat, cache first, or
// conversation.ErrNotFound.
func (s *Service) ByChatID(ctx context.Context, chatID string) (*conversation.Conversation, error) {
	if outcome, cached := s.lookupCache(ctx, chatID); outcome == lookupHit {
		return cached, nil
	}
	conv, err := s.Repo.ByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.cacheConversation(ctx, conv)
	return conv, nil
}

// ByID reads a conversation straight from the store.
func (s *Service) ByID(ctx context.Context, id int64) (*conversation.Conversation, error) {
	conv, err := s.Repo.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return conv, nil
}

// ByTicketID finds the conversation attached to a desk ticket.
func (s *Service) ByTicketID(ctx context.Context, ticketID string) (*conversation.Conversation, error) {
	if ticketID == "" {
		return nil, fmt.Errorf("%w: ticket id is required", ErrInvalidInput)
	}
	conv, err := s.Repo.ByTicketID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return conv, nil
}

// StatsResult aggregates the observability counters served by the desk API.
type StatsResult struct {
	Total       int64
	PendingSync int64
	Last24h     int
}

// Stats reads the aggregate conversation counters. Read-only.
func (s *Service) Stats(ctx context.Context) (StatsResult, error) {
	total, err := s.Repo.Count(ctx)
	if err != nil {
		return StatsResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	pending, err := s.Repo.CountPendingSync(ctx)
	if err != nil {
		return StatsResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	recent, err := s.Repo.ListRecent(ctx, s.now().AddDate(0, 0, -1))
	if err != nil {
		return StatsResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return StatsResult{Total: total, PendingSync: pending, Last24h: len(recent)}, nil
}

// ListRecent returns conversations active within the given number of days.
func (s *Service) ListRecent(ctx context.Context, days int) ([]*conversation.Conversation, error) {
	if days <= 0 {
		days = 1
	}
	since := s.now().AddDate(0, 0, -days)
	convs, err := s.Repo.ListRecent(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return convs, nil
}
