// Package provider defines the Provider interface for talking to chat
// models, health tracking with exponential backoff, and a failover chain
// that routes each call by role.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// ChainServiceName is the AppContext service key of the *Chain.
const ChainServiceName = "provider.chain"

// ChainEntry configures a single provider in the chain.
type ChainEntry struct {
	Name        string
	Provider    Provider
	Role        Role
	Health      HealthConfig
	FallbackFor []Role // empty = fallback for all roles
}

// member is a ChainEntry with its health state.
type member struct {
	ChainEntry
	health *healthTracker
}

// serves reports whether m answers requests for role, directly or as a
// fallback.
func (m *member) serves(role Role) (direct, fallback bool) {
	if m.Role == role {
		return true, false
	}
	return false, m.Role == RoleFallback && (len(m.FallbackFor) == 0 || slices.Contains(m.FallbackFor, role))
}

// ChainOption configures optional Chain behavior.
type ChainOption func(*Chain)

// WithLogger sets the chain's logger. Without it nothing is logged.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// Status is a point-in-time view of one chain entry, served by the
// gateway health endpoint.
type Status struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Role      Role   `json:"role"`
	State     string `json:"state"`
	Available bool   `json:"available"`
	Failures  int    `json:"failures"`

	// CooldownUntil is set while requests wait for the backoff.
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// Chain routes each call to the members serving a role: members with that
// role first, in configuration order, then fallback members. Retryable
// failures move on to the next member; anything else is returned as is.
type Chain struct {
	members []*member
	routes  map[Role][]*member
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewChain builds a chain from entries, in order.
func NewChain(entries []ChainEntry, opts ...ChainOption) (*Chain, error) {
	if len(entries) == 0 {
		return nil, ErrNoProvider
	}

	c := &Chain{routes: make(map[Role][]*member)}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	for _, e := range entries {
		if e.Provider == nil {
			return nil, fmt.Errorf("%w: entry %q has nil provider", ErrNoProvider, e.Name)
		}
		m := &member{ChainEntry: e, health: newHealthTracker(e.Health)}
		m.health.onStateChange = c.logTransition(m)
		c.members = append(c.members, m)
	}

	for _, role := range []Role{RolePrimary, RoleInternal, RoleFallback} {
		var direct, fallback []*member
		for _, m := range c.members {
			switch d, f := m.serves(role); {
			case d:
				direct = append(direct, m)
			case f:
				fallback = append(fallback, m)
			}
		}
		if route := append(direct, fallback...); len(route) > 0 {
			c.routes[role] = route
		}
	}
	return c, nil
}

func (c *Chain) logTransition(m *member) func(from, to healthState) {
	return func(from, to healthState) {
		snap := m.health.snapshot()
		switch to {
		case stateCooldown:
			c.logger.Warn("provider entered cooldown",
				"provider", m.Name, "backoff", snap.backoff, "failures", snap.failures, "error", snap.lastErr)
		case stateDead:
			c.logger.Error("provider marked dead", "provider", m.Name, "total_failures", snap.failures)
		case stateHealthy:
			c.logger.Info("provider revived", "provider", m.Name, "previous_state", from.String())
		}
	}
}

// Complete sends req to the first available member serving role.
func (c *Chain) Complete(ctx context.Context, role Role, req CompletionRequest) (CompletionResponse, error) {
	route := c.routes[role]
	if len(route) == 0 {
		return CompletionResponse{}, fmt.Errorf("%w for role %q", ErrNoProvider, role)
	}

	var lastErr error
	for _, m := range route {
		if err := ctx.Err(); err != nil {
			return CompletionResponse{}, err
		}
		if !m.health.available() {
			continue
		}

		resp, err := m.Provider.Complete(ctx, req)
		if err == nil {
			m.health.recordSuccess()
			return resp, nil
		}
		if !IsRetryable(err) {
			return CompletionResponse{}, err
		}
		m.health.recordFailure(err)
		lastErr = err
		c.logger.Warn("provider failed, failing over", "provider", m.Name, "role", role, "error", err)
	}

	c.logger.Error("all providers exhausted", "role", role, "last_error", lastErr)
	if lastErr == nil {
		return CompletionResponse{}, fmt.Errorf("%w for role %q: all candidates unavailable", ErrAllProviders, role)
	}
	return CompletionResponse{}, fmt.Errorf("%w: last error: %w", ErrAllProviders, lastErr)
}

// Bind returns a Provider that sends every request through the chain
// under the given role.
func (c *Chain) Bind(role Role) Provider {
	return &boundProvider{chain: c, role: role}
}

// HasRole reports whether any member serves role.
func (c *Chain) HasRole(role Role) bool {
	return len(c.routes[role]) > 0
}

// HealthReport returns the status of every member in configuration order.
func (c *Chain) HealthReport() []Status {
	out := make([]Status, 0, len(c.members))
	for _, m := range c.members {
		snap := m.health.snapshot()
		st := Status{
			Name:      m.Name,
			Model:     m.Provider.ModelName(),
			Role:      m.Role,
			State:     snap.state.String(),
			Available: snap.available,
			Failures:  snap.failures,
		}
		if snap.state == stateCooldown && !snap.available {
			until := snap.until
			st.CooldownUntil = &until
		}
		if snap.lastErr != nil {
			st.LastError = snap.lastErr.Error()
		}
		out = append(out, st)
	}
	return out
}

// boundProvider adapts a Chain to the Provider interface for one role.
type boundProvider struct {
	chain *Chain
	role  Role
}

func (b *boundProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return b.chain.Complete(ctx, b.role, req)
}

// ModelName names the model that would answer now: the first available
// member, or the first member when none is.
func (b *boundProvider) ModelName() string {
	route := b.chain.routes[b.role]
	for _, m := range route {
		if m.health.available() {
			return m.Provider.ModelName()
		}
	}
	if len(route) > 0 {
		return route[0].Provider.ModelName()
	}
	return ""
}
