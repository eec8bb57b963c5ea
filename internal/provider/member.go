package provider

import "fmt"

// MemberConfig is the chain placement block embedded in provider module
// configs.
type MemberConfig struct {
	// Role is primary, internal or fallback. Empty means primary.
	Role string `yaml:"role"`

	// FallbackFor limits a fallback entry to the listed roles. Empty
	// means every role.
	FallbackFor []string `yaml:"fallback_for"`

	Health HealthConfig `yaml:"health"`
}

// Entry builds the chain entry of p under name.
func (c MemberConfig) Entry(name string, p Provider) (ChainEntry, error) {
	role, err := ParseRole(c.Role)
	if err != nil {
		return ChainEntry{}, fmt.Errorf("%s: %w", name, err)
	}
	if err := c.Health.validate(); err != nil {
		return ChainEntry{}, fmt.Errorf("%s: health: %w", name, err)
	}
	entry := ChainEntry{Name: name, Provider: p, Role: role, Health: c.Health}
	for _, s := range c.FallbackFor {
		r, err := ParseRole(s)
		if err != nil {
			return ChainEntry{}, fmt.Errorf("%s: fallback_for: %w", name, err)
		}
		entry.FallbackFor = append(entry.FallbackFor, r)
	}
	if len(entry.FallbackFor) > 0 && role != RoleFallback {
		return ChainEntry{}, fmt.Errorf("%s: fallback_for requires role %q", name, RoleFallback)
	}
	return entry, nil
}
