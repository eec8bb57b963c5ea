package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/aura/internal/memory"
)

// DefaultCompactionSchedule is the sweep interval used when none is set.
const DefaultCompactionSchedule = "*/10 * * * *"

// SessionCompactor is the subset of chat.Service needed by the compaction
// sweep. Defined here to keep cron free of the chat package.
type SessionCompactor interface {
	Sessions(ctx context.Context, userID string) ([]memory.Session, error)
	CompactPending(ctx context.Context, sessionID string) (bool, error)
}

// MemoryCompactionJob folds pending turns into session memory for every
// session that has reached the compaction threshold. It picks up sessions
// whose in-turn compaction failed, for example because the model was down.
type MemoryCompactionJob struct {
	Chat         SessionCompactor
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultCompactionSchedule
}

// Compile-time interface check.
var _ Job = (*MemoryCompactionJob)(nil)

// Name implements Job.
func (j *MemoryCompactionJob) Name() string { return "memory_compaction" }

// Schedule implements Job.
func (j *MemoryCompactionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultCompactionSchedule
}

// Run walks all sessions and compacts those with enough pending turns.
// A session deleted during the sweep is skipped. Other failures are
// collected and returned together once the sweep ends.
func (j *MemoryCompactionJob) Run(ctx context.Context) error {
	sessions, err := j.Chat.Sessions(ctx, "")
	if err != nil {
		return fmt.Errorf("cron: listing sessions: %w", err)
	}

	var (
		updated int
		errs    []error
	)
	for _, s := range sessions {
		if ctx.Err() != nil {
			return fmt.Errorf("cron: memory compaction cancelled: %w", ctx.Err())
		}
		ok, err := j.Chat.CompactPending(ctx, s.ID)
		switch {
		case errors.Is(err, memory.ErrSessionNotFound):
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		case ok:
			updated++
		}
	}

	if updated > 0 {
		j.logger().Info("cron: compacted session memory", "sessions", updated, "scanned", len(sessions))
	}
	return errors.Join(errs...)
}

func (j *MemoryCompactionJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
