package memory_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/aura/internal/memory"
	"github.com/flemzord/aura/internal/provider"
	"github.com/flemzord/aura/internal/provider/providertest"
)

const validMemory = `{"facts": ["user likes Go"]}`

func turns() []memory.Turn {
	return []memory.Turn{
		{ID: 11, Role: memory.RoleUser, Text: "I like Go"},
		{ID: 12, Role: memory.RoleAssistant, Text: "Noted."},
	}
}

func TestShouldCompact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pending, threshold int
		want               bool
	}{
		{0, 0, false},
		{50, 0, false},
		{5, -1, false},
		{9, 10, false},
		{10, 10, true},
		{11, 10, true},
	}
	for _, tt := range tests {
		if got := memory.ShouldCompact(tt.pending, tt.threshold); got != tt.want {
			t.Errorf("ShouldCompact(%d, %d) = %v, want %v", tt.pending, tt.threshold, got, tt.want)
		}
	}
}

func TestUpdateMemory_NoTurnsIsNoop(t *testing.T) {
	t.Parallel()

	mock := providertest.Reply(validMemory)
	c := memory.NewCompactor(mock)

	res := c.UpdateMemory(context.Background(), memory.SessionMemory{JSON: `{"facts": []}`}, nil)
	if res.Updated || res.MemoryJSON != `{"facts": []}` {
		t.Errorf("result = %+v, want unchanged", res)
	}
	if mock.Calls() != 0 {
		t.Errorf("model called %d times, want 0", mock.Calls())
	}
}

func TestUpdateMemory_Success(t *testing.T) {
	t.Parallel()

	mock := providertest.Reply(validMemory)
	c := memory.NewCompactor(mock)

	prev := memory.SessionMemory{JSON: `{"facts": ["old"]}`, LastCompactedTurnID: 10}
	res := c.UpdateMemory(context.Background(), prev, turns())
	if !res.Updated || res.MemoryJSON != validMemory {
		t.Fatalf("result = %+v, want updated with model output", res)
	}

	req, ok := mock.LastRequest()
	if !ok || len(req.Messages) != 2 {
		t.Fatalf("request = %+v", req)
	}
	if req.Messages[0].Role != provider.MessageRoleSystem ||
		!strings.HasPrefix(req.Messages[0].Content, "You are a memory extraction service") {
		t.Errorf("system message = %+v", req.Messages[0])
	}
	want := "[PREVIOUS_MEMORY_JSON]\n{\"facts\": [\"old\"]}\n\n[NEW_CONVERSATION]\nUSER: I like Go\nASSISTANT: Noted.\n"
	if req.Messages[1].Role != provider.MessageRoleUser || req.Messages[1].Content != want {
		t.Errorf("user message =\n%q\nwant\n%q", req.Messages[1].Content, want)
	}
}

func TestUpdateMemory_InvalidPreviousSentAsEmptyObject(t *testing.T) {
	t.Parallel()

	mock := providertest.Reply(validMemory)
	c := memory.NewCompactor(mock)

	for _, prev := range []string{"", "not json", `{"mood": "x"}`} {
		c.UpdateMemory(context.Background(), memory.SessionMemory{JSON: prev}, turns())
		req, _ := mock.LastRequest()
		if !strings.HasPrefix(req.Messages[1].Content, "[PREVIOUS_MEMORY_JSON]\n{}\n\n") {
			t.Errorf("previous %q sent as:\n%s", prev, req.Messages[1].Content)
		}
	}
}

func TestUpdateMemory_FailuresLeaveMemoryUnchanged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mock *providertest.MockProvider
	}{
		{"model error", providertest.Fail(provider.ErrProviderDown)},
		{"invalid json", providertest.Reply("Sure! Here is the memory: {}")},
		{"extra key", providertest.Reply(`{"facts": [], "mood": "ok"}`)},
		{"fenced", providertest.Reply("```json\n{}\n```")},
		{"empty", providertest.Reply("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			c := memory.NewCompactor(tt.mock, memory.WithCompactorLogger(logger))

			prev := memory.SessionMemory{JSON: `{"facts": ["keep"]}`}
			res := c.UpdateMemory(context.Background(), prev, turns())
			if res.Updated || res.MemoryJSON != prev.JSON {
				t.Errorf("result = %+v, want unchanged", res)
			}
			if !strings.Contains(logs.String(), "level=WARN") {
				t.Errorf("expected a warning, logs:\n%s", logs.String())
			}
		})
	}
}

func TestUpdateMemory_Timeout(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: func(ctx context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
			<-ctx.Done()
			return provider.CompletionResponse{}, ctx.Err()
		},
	}
	c := memory.NewCompactor(mock, memory.WithCompactionTimeout(20*time.Millisecond))

	done := make(chan memory.UpdateResult, 1)
	go func() { done <- c.UpdateMemory(context.Background(), memory.SessionMemory{}, turns()) }()

	select {
	case res := <-done:
		if res.Updated {
			t.Errorf("timed out compaction reported update: %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("UpdateMemory did not honor the timeout")
	}
}

func TestUpdateMemory_NilProvider(t *testing.T) {
	t.Parallel()

	c := memory.NewCompactor(nil)
	res := c.UpdateMemory(context.Background(), memory.SessionMemory{JSON: validMemory}, turns())
	if res.Updated || res.MemoryJSON != validMemory {
		t.Errorf("result = %+v", res)
	}
}
