package ctxengine

import (
	"slices"
	"strings"

	"github.com/flemzord/aura/internal/memory"
	"github.com/flemzord/aura/internal/provider"
)

// MemoryBlockPrefix starts the system message carrying session memory.
const MemoryBlockPrefix = "[MEMORY_JSON]\n"

// WindowRequest contains the inputs for one context assembly.
type WindowRequest struct {
	// Memory is the stored session memory. It is injected only when its
	// JSON validates.
	Memory memory.SessionMemory

	// RecentTurns are the most recent turns newest first, as returned by
	// memory.Store.RecentTurns with a limit of WindowSizeTurns+1.
	RecentTurns []memory.Turn

	// Current is the in-flight user turn. It may already be persisted, in
	// which case it is excluded from RecentTurns by ID.
	Current memory.Turn

	SystemPrompt    string
	WindowSizeTurns int
	MaxPromptChars  int
}

// SelectRecent applies the recency rule to turns fetched newest first:
// drop the turn whose ID is currentID, keep at most window turns, and
// return them oldest first. A currentID of 0 drops nothing. A window of
// zero or less selects nothing.
func SelectRecent(recentDesc []memory.Turn, currentID int64, window int) []memory.Turn {
	if window <= 0 {
		return nil
	}

	out := make([]memory.Turn, 0, min(window, len(recentDesc)))
	for _, t := range recentDesc {
		if currentID != 0 && t.ID == currentID {
			continue
		}
		out = append(out, t)
		if len(out) == window {
			break
		}
	}
	slices.Reverse(out)
	return out
}

// BuildContextMessages assembles the message list for one model call:
// the system prompt, the memory block when present and valid, the recency
// window oldest first, and the current user message. The result is then
// clamped to MaxPromptChars.
func BuildContextMessages(req WindowRequest) ([]provider.LLMMessage, Stats) {
	recent := SelectRecent(req.RecentTurns, req.Current.ID, req.WindowSizeTurns)

	msgs := make([]provider.LLMMessage, 0, len(recent)+3)
	msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleSystem, Content: req.SystemPrompt})

	if raw := req.Memory.JSON; strings.TrimSpace(raw) != "" && memory.IsValid(raw) {
		msgs = append(msgs, provider.LLMMessage{
			Role:    provider.MessageRoleSystem,
			Content: MemoryBlockPrefix + raw,
		})
	}

	for _, t := range recent {
		msgs = append(msgs, provider.LLMMessage{Role: messageRole(t.Role), Content: t.Text})
	}

	msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleUser, Content: req.Current.Text})

	return Clamp(msgs, req.MaxPromptChars)
}

func messageRole(r memory.Role) provider.MessageRole {
	if r == memory.RoleAssistant {
		return provider.MessageRoleAssistant
	}
	return provider.MessageRoleUser
}
