package ctxengine_test

import (
	"slices"
	"strings"
	"testing"

	ctxengine "github.com/flemzord/aura/internal/context"
	"github.com/flemzord/aura/internal/provider"
)

func sys(content string) provider.LLMMessage {
	return provider.LLMMessage{Role: provider.MessageRoleSystem, Content: content}
}

func user(content string) provider.LLMMessage {
	return provider.LLMMessage{Role: provider.MessageRoleUser, Content: content}
}

func assistant(content string) provider.LLMMessage {
	return provider.LLMMessage{Role: provider.MessageRoleAssistant, Content: content}
}

func memBlock(body string) provider.LLMMessage {
	return sys(ctxengine.MemoryBlockPrefix + body)
}

func TestClamp_DropsTranscriptFirst(t *testing.T) {
	t.Parallel()

	in := []provider.LLMMessage{
		sys("12345"),
		assistant(strings.Repeat("x", 20)),
		user("abc"),
	}
	out, stats := ctxengine.Clamp(in, 10)

	if got, want := contents(out), []string{"12345", "abc"}; !slices.Equal(got, want) {
		t.Fatalf("contents = %v, want %v", got, want)
	}
	if stats.TotalChars != 8 || stats.DroppedTurns != 1 || stats.Truncated || stats.MemoryDropped {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClamp_WithinBudgetUnchanged(t *testing.T) {
	t.Parallel()

	in := []provider.LLMMessage{sys("s"), user("a"), assistant("b"), user("c")}
	out, stats := ctxengine.Clamp(in, 4)
	if !slices.Equal(out, in) || stats.DroppedTurns != 0 || stats.Truncated {
		t.Errorf("out = %v, stats = %+v", out, stats)
	}
}

func TestClamp_Disabled(t *testing.T) {
	t.Parallel()

	in := []provider.LLMMessage{sys(strings.Repeat("s", 100)), user(strings.Repeat("u", 100))}
	for _, limit := range []int{0, -1} {
		out, stats := ctxengine.Clamp(in, limit)
		if !slices.Equal(out, in) || stats.TotalChars != 200 {
			t.Errorf("limit %d: clamped to %d chars", limit, stats.TotalChars)
		}
	}
}

func TestClamp_DropsOldestOnly(t *testing.T) {
	t.Parallel()

	in := []provider.LLMMessage{
		sys("s"),
		memBlock("{}"),
		user("1111"),
		assistant("2222"),
		user("3333"),
		user("now"),
	}
	// total = 1 + 16 + 12 + 3 = 32; dropping "1111" reaches 28.
	out, stats := ctxengine.Clamp(in, 28)
	want := []string{"s", ctxengine.MemoryBlockPrefix + "{}", "2222", "3333", "now"}
	if got := contents(out); !slices.Equal(got, want) {
		t.Fatalf("contents = %v, want %v", got, want)
	}
	if stats.DroppedTurns != 1 || !stats.HasMemory || stats.MemoryDropped {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClamp_DropsMemoryAfterTranscript(t *testing.T) {
	t.Parallel()

	in := []provider.LLMMessage{
		sys("sys"),
		memBlock(`{"facts":["a"]}`),
		user("old"),
		user("now"),
	}
	out, stats := ctxengine.Clamp(in, 8)
	if got, want := contents(out), []string{"sys", "now"}; !slices.Equal(got, want) {
		t.Fatalf("contents = %v, want %v", got, want)
	}
	if !stats.MemoryDropped || stats.DroppedTurns != 1 || stats.Truncated {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClamp_TruncatesLastToExactAllowance(t *testing.T) {
	t.Parallel()

	in := []provider.LLMMessage{
		sys("sys"),
		memBlock("{}"),
		assistant("older"),
		user("0123456789"),
	}
	out, stats := ctxengine.Clamp(in, 7)
	if got, want := contents(out), []string{"sys", "0123"}; !slices.Equal(got, want) {
		t.Fatalf("contents = %v, want %v", got, want)
	}
	if !stats.Truncated || !stats.MemoryDropped || stats.TotalChars != 7 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClamp_TruncatesByCharacter(t *testing.T) {
	t.Parallel()

	out, _ := ctxengine.Clamp([]provider.LLMMessage{sys("ab"), user("éèêëē")}, 5)
	if got := out[1].Content; got != "éèê" {
		t.Errorf("last = %q, want %q", got, "éèê")
	}
}

func TestClamp_OversizedSystemPrompt(t *testing.T) {
	t.Parallel()

	in := []provider.LLMMessage{sys(strings.Repeat("s", 20)), assistant("old"), user("question")}
	out, stats := ctxengine.Clamp(in, 10)
	if len(out) != 2 || out[0].Content != in[0].Content || out[1].Content != "" {
		t.Fatalf("out = %v", contents(out))
	}
	if stats.TotalChars != 20 || !stats.Truncated {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClamp_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := []provider.LLMMessage{sys("sys"), memBlock("{}"), assistant("older"), user("0123456789")}
	snapshot := slices.Clone(in)
	ctxengine.Clamp(in, 7)
	if !slices.Equal(in, snapshot) {
		t.Errorf("input mutated: %v", contents(in))
	}
}

func TestClamp_MemoryOnlyDetectedAtSecondPosition(t *testing.T) {
	t.Parallel()

	// A user message that happens to start with the marker is transcript.
	in := []provider.LLMMessage{
		sys("s"),
		user(ctxengine.MemoryBlockPrefix + "fake"),
		user("now"),
	}
	out, stats := ctxengine.Clamp(in, 4)
	if stats.HasMemory || stats.MemoryDropped || stats.DroppedTurns != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if got, want := contents(out), []string{"s", "now"}; !slices.Equal(got, want) {
		t.Errorf("contents = %v, want %v", got, want)
	}
}
