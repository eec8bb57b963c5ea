// Package openaicompat is the provider.openai_compatible module: a chat
// model reached through any /chat/completions API (OpenAI, OpenRouter,
// Groq, Mistral, vLLM, LiteLLM) selected by base_url.
package openaicompat

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/aura/internal/core"
	"github.com/flemzord/aura/internal/provider"
	"github.com/flemzord/aura/internal/provider/httpapi"
)

const moduleID = "provider.openai_compatible"

func init() {
	core.RegisterModule(&Provider{})
}

var (
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ provider.ChainMember   = (*Provider)(nil)
)

// Provider is one OpenAI-compatible endpoint and model.
type Provider struct {
	config Config
	api    *httpapi.Client
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  moduleID,
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return fmt.Errorf("%s: %w", moduleID, err)
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(_ *core.AppContext) error {
	p.connect()
	return nil
}

func (p *Provider) connect() {
	headers := map[string]string{}
	if p.config.Organization != "" {
		headers["OpenAI-Organization"] = p.config.Organization
	}
	for k, v := range p.config.Headers {
		headers[k] = v
	}
	p.api = httpapi.New(moduleID, p.config.BaseURL, p.config.Timeout,
		httpapi.WithBearer(p.config.APIKey),
		httpapi.WithHeaders(headers),
		httpapi.WithAuthErrors(),
		httpapi.WithErrorDecoder(decodeError),
	)
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// ChainEntry implements provider.ChainMember.
func (p *Provider) ChainEntry() (provider.ChainEntry, error) {
	return p.config.Entry("openai_compatible", p)
}

// Secrets returns the API key for log redaction.
func (p *Provider) Secrets() []string {
	return []string{p.config.APIKey}
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	var out completionResponse
	if err := p.api.PostJSON(ctx, "/chat/completions", newCompletionRequest(p.config, req), &out); err != nil {
		return provider.CompletionResponse{}, err
	}
	return out.toProvider()
}

// HealthCheck implements provider.HealthChecker by listing models. With
// health_path "none" the endpoint is assumed up.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if p.config.HealthPath == healthPathNone {
		return nil
	}
	return p.api.Probe(ctx, p.config.HealthPath)
}

// Wire types of /chat/completions. Only the fields aura reads are kept.

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// newCompletionRequest prefers per-request sampling values over the
// configured ones.
func newCompletionRequest(cfg Config, req provider.CompletionRequest) completionRequest {
	out := completionRequest{
		Model:       cfg.Model,
		Messages:    make([]message, 0, len(req.Messages)),
		MaxTokens:   cmp.Or(req.MaxTokens, cfg.MaxTokens),
		Temperature: req.Temperature,
	}
	if out.Temperature == nil {
		out.Temperature = cfg.Temperature
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// toProvider takes the first choice. No choice or blank content is
// ErrEmptyResponse, which the chain does not fail over on.
func (r completionResponse) toProvider() (provider.CompletionResponse, error) {
	out := provider.CompletionResponse{Usage: provider.TokenUsage{
		PromptTokens:     r.Usage.PromptTokens,
		CompletionTokens: r.Usage.CompletionTokens,
		TotalTokens:      r.Usage.TotalTokens,
	}}
	if len(r.Choices) == 0 {
		return out, fmt.Errorf("%w: no choices", provider.ErrEmptyResponse)
	}
	first := r.Choices[0]
	if strings.TrimSpace(first.Message.Content) == "" {
		return out, fmt.Errorf("%w: finish_reason %q", provider.ErrEmptyResponse, first.FinishReason)
	}
	out.Content = first.Message.Content
	return out, nil
}

// decodeError reads {"error": {"message": ...}}, the error shape shared
// by OpenAI and most compatible servers.
func decodeError(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error.Message
}
