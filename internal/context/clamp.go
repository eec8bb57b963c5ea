package ctxengine

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/flemzord/aura/internal/provider"
)

// Stats describes what clamping did to a message list.
type Stats struct {
	Messages      int
	TotalChars    int
	HasMemory     bool
	DroppedTurns  int
	MemoryDropped bool
	Truncated     bool
}

// Clamp fits messages into maxChars characters. It works in three stages,
// each applied only while the list is still over budget:
//
//  1. drop transcript messages oldest first, keeping the system prompt,
//     the memory block and the final message;
//  2. drop the memory block;
//  3. truncate the final message to the remaining allowance.
//
// The system prompt and the final message are never removed, so a system
// prompt longer than maxChars leaves the result over budget with an empty
// final message. A maxChars of zero or less disables clamping. The input
// slice is never modified.
func Clamp(messages []provider.LLMMessage, maxChars int) ([]provider.LLMMessage, Stats) {
	out := slices.Clone(messages)
	stats := Stats{HasMemory: hasMemoryBlock(out)}

	if maxChars > 0 && provider.TotalChars(out) > maxChars {
		out, stats.DroppedTurns = dropTranscript(out, maxChars)
		out, stats.MemoryDropped = dropMemory(out, maxChars)
		out, stats.Truncated = truncateLast(out, maxChars)
	}

	stats.Messages = len(out)
	stats.TotalChars = provider.TotalChars(out)
	return out, stats
}

// dropTranscript removes messages between the leading system block and
// the final message, oldest first, until the list fits.
func dropTranscript(msgs []provider.LLMMessage, maxChars int) ([]provider.LLMMessage, int) {
	if len(msgs) < 3 {
		return msgs, 0
	}

	start := 1
	if hasMemoryBlock(msgs) {
		start = 2
	}
	last := len(msgs) - 1

	total := provider.TotalChars(msgs)
	end := start
	for ; end < last && total > maxChars; end++ {
		total -= charLen(msgs[end])
	}
	if end == start {
		return msgs, 0
	}
	return slices.Concat(msgs[:start], msgs[end:]), end - start
}

// dropMemory removes the memory block when the list is still over budget.
func dropMemory(msgs []provider.LLMMessage, maxChars int) ([]provider.LLMMessage, bool) {
	if provider.TotalChars(msgs) <= maxChars || !hasMemoryBlock(msgs) {
		return msgs, false
	}
	return slices.Delete(slices.Clone(msgs), 1, 2), true
}

// truncateLast cuts the final message to exactly the characters left once
// every other message is counted.
func truncateLast(msgs []provider.LLMMessage, maxChars int) ([]provider.LLMMessage, bool) {
	total := provider.TotalChars(msgs)
	if total <= maxChars || len(msgs) == 0 {
		return msgs, false
	}

	lastIdx := len(msgs) - 1
	last := msgs[lastIdx]
	keep := max(0, maxChars-(total-charLen(last)))
	if charLen(last) <= keep {
		return msgs, false
	}

	out := slices.Clone(msgs)
	out[lastIdx].Content = truncateRunes(last.Content, keep)
	return out, true
}

// hasMemoryBlock reports whether the second message is the memory block.
func hasMemoryBlock(msgs []provider.LLMMessage) bool {
	return len(msgs) > 1 &&
		msgs[1].Role == provider.MessageRoleSystem &&
		strings.HasPrefix(msgs[1].Content, MemoryBlockPrefix)
}

func charLen(m provider.LLMMessage) int {
	return utf8.RuneCountInString(m.Content)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
