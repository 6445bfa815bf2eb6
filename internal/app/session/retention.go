package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatdesk/internal/domain/conversation"
)

// Sweeper retires conversations that are both stale and safe to drop. It runs
// against the durable store only; cached copies expire on their own TTL.
type Sweeper struct {
	Repo            conversation.Repository
	Events          Publisher
	TopicPrefix     string
	RetentionWindow time.Duration
	Enabled         bool
	Logger          *slog.Logger
	Now             func() time.Time
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Sweep deletes every stale conversation that is either already synced or was
// never escalated to a ticket. Ticketed-and-unsynced conversations are kept
// regardless of age. Any store failure aborts the cycle; the next scheduled
// run retries naturally.
//
// A stale conversation that is unsynced but never got a ticket is deleted
// too, which can drop unsynced data. Such deletions are counted and logged
// at WARN.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if !s.Enabled {
		s.Logger.Debug("conversation cleanup is disabled")
		return nil
	}

	s.Logger.Info("starting conversation cleanup", "retention", s.RetentionWindow)
	cutoff := s.now().Add(-s.RetentionWindow)

	stale, err := s.Repo.ListStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(stale) == 0 {
		s.Logger.Info("no conversations to clean up")
		return nil
	}

	var (
		ids           []int64
		unsyncedDrops int
	)
	for _, c := range stale {
		if !c.RetentionEligible(cutoff) {
			continue
		}
		if !c.Synced {
			unsyncedDrops++
		}
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		s.Logger.Info("no conversations eligible for cleanup, all have active tickets", "stale", len(stale))
		return nil
	}

	deleted, err := s.Repo.Delete(ctx, ids)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.Logger.Info("cleaned up old conversations", "deleted", deleted, "stale", len(stale))
	if unsyncedDrops > 0 {
		s.Logger.Warn("deleted stale conversations that were never synced or ticketed", "count", unsyncedDrops)
	}
	publishEvent(ctx, s.Events, s.TopicPrefix, s.Logger, eventSwept, "sweep", map[string]any{
		"deleted": deleted,
		"stale":   len(stale),
		"cutoff":  cutoff,
	})
	return nil
}

// LogStats reports aggregate conversation counts for observability. It never
// mutates anything and its failures are contained here so they cannot affect
// the sweep.
func (s *Sweeper) LogStats(ctx context.Context) {
	total, err := s.Repo.Count(ctx)
	if err != nil {
		s.Logger.Error("cannot read conversation statistics", "error", err)
		return
	}
	pending, err := s.Repo.CountPendingSync(ctx)
	if err != nil {
		s.Logger.Error("cannot read pending-sync count", "error", err)
		return
	}
	recent, err := s.Repo.ListRecent(ctx, s.now().AddDate(0, 0, -1))
	if err != nil {
		s.Logger.Error("cannot read recent conversations", "error", err)
		return
	}
	s.Logger.Info("conversation statistics",
		"total", total,
		"pending_sync", pending,
		"last_24h", len(recent))
}
