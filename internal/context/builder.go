package ctxengine

import (
	"context"
	"fmt"

	"github.com/flemzord/aura/internal/memory"
	"github.com/flemzord/aura/internal/provider"
)

// TurnSource supplies the most recent turns of a session, newest first.
// memory.Store satisfies it.
type TurnSource interface {
	RecentTurns(ctx context.Context, sessionID string, n int) ([]memory.Turn, error)
}

// Builder fetches the recency window from storage and assembles the
// clamped message list for a turn.
type Builder struct {
	config ContextConfig
	turns  TurnSource
}

// NewBuilder creates a Builder. Zero-valued config fields take defaults.
func NewBuilder(cfg ContextConfig, turns TurnSource) *Builder {
	return &Builder{config: cfg.WithDefaults(), turns: turns}
}

// Config returns the effective configuration.
func (b *Builder) Config() ContextConfig {
	return b.config
}

// Build assembles the messages for current, a user turn of session that
// may already be persisted. A session without an ID has no stored turns
// yet and storage is not consulted.
func (b *Builder) Build(ctx context.Context, session memory.Session, current memory.Turn) ([]provider.LLMMessage, Stats, error) {
	var recent []memory.Turn
	if b.config.WindowSizeTurns > 0 && session.ID != "" {
		var err error
		// One extra turn so the window stays full after dropping current.
		recent, err = b.turns.RecentTurns(ctx, session.ID, b.config.WindowSizeTurns+1)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("ctxengine: loading recent turns: %w", err)
		}
	}

	msgs, stats := BuildContextMessages(WindowRequest{
		Memory:          session.Memory,
		RecentTurns:     recent,
		Current:         current,
		SystemPrompt:    b.config.SystemPrompt,
		WindowSizeTurns: b.config.WindowSizeTurns,
		MaxPromptChars:  b.config.MaxPromptChars,
	})
	return msgs, stats, nil
}
