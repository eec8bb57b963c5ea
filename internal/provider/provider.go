package provider

import "context"

// Provider is the interface for communicating with a chat model.
// Concrete implementations live in separate packages (e.g., provider.ollama)
// and typically also implement core.Module for lifecycle management.
type Provider interface {
	// Complete sends the ordered message list and returns the single
	// assistant reply. An unreachable backend wraps ErrProviderDown; a reply
	// without content wraps ErrEmptyResponse.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}

// HealthChecker is an optional interface that providers may implement
// to support active health probing. When a provider is in cooldown,
// the health tracker will call HealthCheck periodically to determine
// if the provider has recovered.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ChainMember is implemented by provider modules. The host collects the
// entries of every loaded member into a single Chain.
type ChainMember interface {
	ChainEntry() (ChainEntry, error)
}
