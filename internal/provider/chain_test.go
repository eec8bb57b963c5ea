package provider_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/aura/internal/provider"
	"github.com/flemzord/aura/internal/provider/providertest"
)

// syncBuffer is a thread-safe bytes.Buffer for concurrent log assertions.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testLogger returns a slog.Logger that writes to a thread-safe buffer for assertions.
func testLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	h := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), buf
}

func TestNewChain_Empty(t *testing.T) {
	t.Parallel()
	_, err := provider.NewChain(nil)
	if !errors.Is(err, provider.ErrNoProvider) {
		t.Fatalf("err = %v, want ErrNoProvider", err)
	}
}

func TestNewChain_NilProvider(t *testing.T) {
	t.Parallel()
	_, err := provider.NewChain([]provider.ChainEntry{
		{Name: "broken", Provider: nil, Role: provider.RolePrimary},
	})
	if !errors.Is(err, provider.ErrNoProvider) {
		t.Fatalf("err = %v, want ErrNoProvider", err)
	}
}

func TestChain_SingleSuccess(t *testing.T) {
	t.Parallel()

	chain, err := provider.NewChain([]provider.ChainEntry{
		{Name: "ollama", Provider: providertest.Reply("hi"), Role: provider.RolePrimary},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := chain.Complete(context.Background(), provider.RolePrimary, provider.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hi" {
		t.Errorf("content = %q, want %q", resp.Content, "hi")
	}
}

func TestChain_Failover(t *testing.T) {
	t.Parallel()

	down := providertest.Fail(provider.ErrProviderDown)
	backup := providertest.Reply("backup")

	chain, err := provider.NewChain([]provider.ChainEntry{
		{Name: "local", Provider: down, Role: provider.RolePrimary},
		{Name: "remote", Provider: backup, Role: provider.RoleFallback},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := chain.Complete(context.Background(), provider.RolePrimary, provider.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "backup" {
		t.Errorf("content = %q, want backup", resp.Content)
	}
}

func TestChain_AllFail(t *testing.T) {
	t.Parallel()

	chain, err := provider.NewChain([]provider.ChainEntry{
		{Name: "p1", Provider: providertest.Fail(provider.ErrProviderDown), Role: provider.RolePrimary},
		{Name: "p2", Provider: providertest.Fail(provider.ErrRateLimit), Role: provider.RolePrimary},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = chain.Complete(context.Background(), provider.RolePrimary, provider.CompletionRequest{})
	if !errors.Is(err, provider.ErrAllProviders) {
		t.Fatalf("err = %v, want ErrAllProviders", err)
	}
	if !errors.Is(err, provider.ErrRateLimit) {
		t.Errorf("err = %v, want last error to be wrapped", err)
	}
}

func TestChain_EmptyResponseStopsFailover(t *testing.T) {
	t.Parallel()

	empty := providertest.Fail(provider.ErrEmptyResponse)
	backup := providertest.Reply("backup")

	chain, err := provider.NewChain([]provider.ChainEntry{
		{Name: "p1", Provider: empty, Role: provider.RolePrimary},
		{Name: "p2", Provider: backup, Role: provider.RolePrimary},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = chain.Complete(context.Background(), provider.RolePrimary, provider.CompletionRequest{})
	if !errors.Is(err, provider.ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
	if backup.Calls() != 0 {
		t.Error("backup should not be called after a non-retryable error")
	}
}

func TestChain_ContextCanceled(t *testing.T) {
	t.Parallel()

	p := providertest.Reply("x")
	chain, err := provider.NewChain([]provider.ChainEntry{
		{Name: "p", Provider: p, Role: provider.RolePrimary},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = chain.Complete(ctx, provider.RolePrimary, provider.CompletionRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if p.Calls() != 0 {
		t.Error("provider should not be called with a canceled context")
	}
}

func TestChain_RoleRouting(t *testing.T) {
	t.Parallel()

	chat := providertest.Reply("chat")
	memory := providertest.Reply("memory")

	chain, err := provider.NewChain([]provider.ChainEntry{
		{Name: "big", Provider: chat, Role: provider.RolePrimary},
		{Name: "small", Provider: memory, Role: provider.RoleInternal},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := chain.Bind(provider.RoleInternal).Complete(context.Background(), provider.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "memory" {
		t.Errorf("internal role routed to %q, want memory", resp.Content)
	}
	if chat.Calls() != 0 {
		t.Error("primary provider should not serve internal requests")
	}
}

func TestChain_FallbackRestricted(t *testing.T) {
	t.Parallel()

	fb := providertest.Reply("fb")
	chain, err := provider.NewChain([]provider.ChainEntry{
		{Name: "fb", Provider: fb, Role: provider.RoleFallback, FallbackFor: []provider.Role{provider.RolePrimary}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !chain.HasRole(provider.RolePrimary) {
		t.Error("fallback should serve primary")
	}
	if chain.HasRole(provider.RoleInternal) {
		t.Error("restricted fallback should not serve internal")
	}

	_, err = chain.Complete(context.Background(), provider.RoleInternal, provider.CompletionRequest{})
	if !errors.Is(err, provider.ErrNoProvider) {
		t.Fatalf("err = %v, want ErrNoProvider", err)
	}
}

func TestChain_BindModelName(t *testing.T) {
	t.Parallel()

	chain, err := provider.NewChain([]provider.ChainEntry{
		{Name: "ollama", Provider: &providertest.MockProvider{Model: "llama3.1"}, Role: provider.RolePrimary},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := chain.Bind(provider.RolePrimary).ModelName(); got != "llama3.1" {
		t.Errorf("ModelName = %q, want llama3.1", got)
	}
	if got := chain.Bind(provider.RoleInternal).ModelName(); got != "" {
		t.Errorf("ModelName for unserved role = %q, want empty", got)
	}
}

func TestChain_HealthReport(t *testing.T) {
	t.Parallel()

	chain, err := provider.NewChain([]provider.ChainEntry{
		{Name: "down", Provider: providertest.Fail(provider.ErrProviderDown), Role: provider.RolePrimary,
			Health: provider.HealthConfig{MaxFailures: 1}},
		{Name: "up", Provider: providertest.Reply("ok"), Role: provider.RolePrimary},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := chain.Complete(context.Background(), provider.RolePrimary, provider.CompletionRequest{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	report := chain.HealthReport()
	if len(report) != 2 {
		t.Fatalf("report len = %d, want 2", len(report))
	}
	if report[0].Available || report[0].State != "dead" {
		t.Errorf("down entry = %+v, want dead and unavailable", report[0])
	}
	if !report[1].Available || report[1].State != "healthy" {
		t.Errorf("up entry = %+v, want healthy", report[1])
	}
}

func TestChain_HealthReportCooldown(t *testing.T) {
	t.Parallel()

	chain, err := provider.NewChain([]provider.ChainEntry{
		{Name: "busy", Provider: providertest.Fail(provider.ErrRateLimit), Role: provider.RolePrimary,
			Health: provider.HealthConfig{InitialBackoff: time.Hour, MaxFailures: 1}},
		{Name: "up", Provider: providertest.Reply("ok"), Role: provider.RolePrimary},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := chain.Complete(context.Background(), provider.RolePrimary, provider.CompletionRequest{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	busy := chain.HealthReport()[0]
	if busy.State != "cooldown" {
		t.Errorf("state = %q, want cooldown: rate limits must not kill an entry", busy.State)
	}
	if busy.Failures != 0 {
		t.Errorf("failures = %d, want 0", busy.Failures)
	}
	if busy.CooldownUntil == nil || !busy.CooldownUntil.After(time.Now()) {
		t.Errorf("cooldown_until = %v, want a future deadline", busy.CooldownUntil)
	}
	if !strings.Contains(busy.LastError, "rate limit") {
		t.Errorf("last_error = %q", busy.LastError)
	}

	up := chain.HealthReport()[1]
	if up.CooldownUntil != nil || up.LastError != "" {
		t.Errorf("healthy entry = %+v", up)
	}
}

func TestChain_HealthCheckRevival(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	healthy := false
	p := &providertest.MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			mu.Lock()
			defer mu.Unlock()
			if !healthy {
				return provider.CompletionResponse{}, provider.ErrProviderDown
			}
			return provider.CompletionResponse{Content: "back"}, nil
		},
		HealthCheckFunc: func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			if !healthy {
				return provider.ErrProviderDown
			}
			return nil
		},
	}

	chain, err := provider.NewChain([]provider.ChainEntry{
		{Name: "p", Provider: p, Role: provider.RolePrimary, Health: provider.HealthConfig{
			MaxFailures:   1,
			CheckInterval: 10 * time.Millisecond,
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, _ = chain.Complete(context.Background(), provider.RolePrimary, provider.CompletionRequest{})

	chain.Start(context.Background())
	defer chain.Stop()

	mu.Lock()
	healthy = true
	mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if chain.HealthReport()[0].Available {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("provider was not revived by the health checker")
}

func TestChain_LogsFailover(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	chain, err := provider.NewChain([]provider.ChainEntry{
		{Name: "local", Provider: providertest.Fail(provider.ErrProviderDown), Role: provider.RolePrimary},
		{Name: "remote", Provider: providertest.Reply("ok"), Role: provider.RolePrimary},
	}, provider.WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := chain.Complete(context.Background(), provider.RolePrimary, provider.CompletionRequest{}); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "provider failed, failing over") || !strings.Contains(out, "provider=local") {
		t.Errorf("expected failover log for local, got:\n%s", out)
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", provider.ErrRateLimit, true},
		{"down", provider.ErrProviderDown, true},
		{"wrapped down", errors.Join(errors.New("dial"), provider.ErrProviderDown), true},
		{"empty", provider.ErrEmptyResponse, false},
		{"auth", provider.ErrAuthentication, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := provider.IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    provider.Role
		wantErr bool
	}{
		{"", provider.RolePrimary, false},
		{"primary", provider.RolePrimary, false},
		{"internal", provider.RoleInternal, false},
		{"fallback", provider.RoleFallback, false},
		{"secondary", "", true},
	}
	for _, tt := range tests {
		got, err := provider.ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTotalChars(t *testing.T) {
	t.Parallel()

	msgs := []provider.LLMMessage{
		{Role: provider.MessageRoleSystem, Content: "abc"},
		{Role: provider.MessageRoleUser, Content: "héllo"},
	}
	if got := provider.TotalChars(msgs); got != 8 {
		t.Errorf("TotalChars = %d, want 8", got)
	}
}
