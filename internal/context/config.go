// Package ctxengine assembles the bounded message list sent to the model:
// system prompt, session memory block, a recency window of the transcript
// and the current user message, clamped to a character budget.
package ctxengine

import "time"

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are Aura, a helpful assistant. Answer clearly and concisely."

// ContextConfig holds the tuning knobs for the context engine, read from
// the "context" config section.
type ContextConfig struct {
	// WindowSizeTurns is how many prior turns are replayed to the model.
	// Zero or an absent key means the default of 16; use a negative value
	// to send no transcript at all.
	WindowSizeTurns int `yaml:"window_size_turns"`

	// MemoryUpdateEveryTurns triggers memory compaction once this many
	// turns accumulated since the last one. Zero means the default of 10;
	// a negative value disables compaction.
	MemoryUpdateEveryTurns int `yaml:"memory_update_every_turns"`

	// MaxPromptChars caps the total characters sent to the model. Zero
	// means the default of 24000; a negative value disables clamping.
	MaxPromptChars int `yaml:"max_prompt_chars"`

	// CompactionTimeout bounds one memory compaction call.
	CompactionTimeout time.Duration `yaml:"compaction_timeout"`

	SystemPrompt string `yaml:"system_prompt"`
}

// WithDefaults returns a copy of cfg with zero-valued fields replaced by
// defaults. YAML cannot tell an explicit 0 from a missing key, so 0 never
// disables a feature; negative values do, and are kept as given.
func (cfg ContextConfig) WithDefaults() ContextConfig {
	if cfg.WindowSizeTurns == 0 {
		cfg.WindowSizeTurns = 16
	}
	if cfg.MemoryUpdateEveryTurns == 0 {
		cfg.MemoryUpdateEveryTurns = 10
	}
	if cfg.MaxPromptChars == 0 {
		cfg.MaxPromptChars = 24000
	}
	if cfg.CompactionTimeout == 0 {
		cfg.CompactionTimeout = 60 * time.Second
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return cfg
}
