package gateway

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/aura/internal/chat"
	"github.com/flemzord/aura/internal/document"
	"github.com/flemzord/aura/internal/memory"
	"github.com/flemzord/aura/internal/provider"
	"github.com/flemzord/aura/internal/security"
	"github.com/flemzord/aura/internal/telemetry"
)

// fakeProvider answers with its name, or fails with failErr.
type fakeProvider struct {
	name    string
	failErr error
}

func (p *fakeProvider) Complete(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	if p.failErr != nil {
		return provider.CompletionResponse{}, p.failErr
	}
	return provider.CompletionResponse{Content: p.name + ": " + req.Messages[len(req.Messages)-1].Content}, nil
}

func (p *fakeProvider) ModelName() string { return p.name }

func (p *fakeProvider) HealthCheck(context.Context) error { return p.failErr }

// newTestChain creates a Chain for testing.
func newTestChain(t *testing.T, entries []provider.ChainEntry) *provider.Chain {
	t.Helper()
	chain, err := provider.NewChain(entries)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	return chain
}

// testEnv is a gateway wired to a real chat service over an in-memory
// store, served by httptest.
type testEnv struct {
	gw     *Gateway
	store  *memory.InMemoryStore
	server *httptest.Server
}

func newTestEnv(t *testing.T, model provider.Provider, cfg Config) *testEnv {
	t.Helper()
	cfg.defaults()

	store := memory.NewInMemoryStore()
	metrics := telemetry.NewMetrics()
	svc := chat.NewService(store, model, chat.Config{},
		chat.WithExtractor(document.NewMux(document.DefaultLimits())),
		chat.WithMetrics(metrics))

	g := &Gateway{
		config:  cfg,
		logger:  slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		limiter: security.NewRateLimiter(cfg.RateLimit),
		chat:    svc,
		metrics: metrics,
	}
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return &testEnv{gw: g, store: store, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, e.server.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := e.gw.config.Auth.BearerToken; tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// mustYAMLNode parses YAML text into a *yaml.Node for Configure calls.
func mustYAMLNode(t *testing.T, text string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		t.Fatalf("YAML parse: %v", err)
	}
	if len(node.Content) > 0 {
		return node.Content[0]
	}
	return &node
}
