// Package ollama provides a chat model module backed by a local or remote
// Ollama server through its /api/chat endpoint.
package ollama

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/aura/internal/core"
	"github.com/flemzord/aura/internal/provider"
	"github.com/flemzord/aura/internal/provider/httpapi"
)

const moduleID = "provider.ollama"

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

// Provider is an Ollama chat model.
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

// connect builds the API client. Ollama has no credentials of its own, so
// 401 and 403 from a fronting proxy stay plain errors.
func (p *Provider) connect() {
	p.api = httpapi.New(moduleID, p.config.BaseURL, p.config.Timeout,
		httpapi.WithHeaders(p.config.Headers),
		httpapi.WithErrorDecoder(decodeError),
	)
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// ChainEntry implements provider.ChainMember.
func (p *Provider) ChainEntry() (provider.ChainEntry, error) {
	return p.config.Entry("ollama", p)
}

// Complete implements provider.Provider with a non-streaming chat call.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	var out chatResponse
	if err := p.api.PostJSON(ctx, "/api/chat", newChatRequest(p.config, req), &out); err != nil {
		return provider.CompletionResponse{}, err
	}
	return out.toProvider()
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// HealthCheck implements provider.HealthChecker. The server must answer
// /api/tags and, unless skip_model_check is set, list the configured model.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if p.config.SkipModelCheck {
		return p.api.Probe(ctx, "/api/tags")
	}
	var tags tagsResponse
	if err := p.api.GetJSON(ctx, "/api/tags", &tags); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if !tags.has(p.config.Model) {
		return fmt.Errorf("%w: model %q is not pulled", provider.ErrProviderDown, p.config.Model)
	}
	return nil
}
