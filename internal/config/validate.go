package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/aura/internal/core"
)

// Module namespaces with cardinality rules.
const (
	ProviderPrefix = "provider."
	StorePrefix    = "store."
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present and
// registered, enforces at least one provider module and at most one store
// module, and validates the global sections.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, unknownModule(id))
		}
	}

	if len(cfg.Modules) > 0 && len(ModulesWithPrefix(cfg, ProviderPrefix)) == 0 {
		errs = append(errs, errors.New("config: at least one provider.* module is required"))
	}
	if stores := ModulesWithPrefix(cfg, StorePrefix); len(stores) > 1 {
		errs = append(errs, fmt.Errorf("config: at most one store.* module may be configured, got %s", strings.Join(stores, ", ")))
	}

	errs = append(errs, validateSections(cfg)...)

	return errors.Join(errs...)
}

// unknownModule names the compiled-in modules of the same namespace, which
// is usually enough to spot a typo.
func unknownModule(id string) error {
	ns := core.ModuleID(id).Namespace()
	var known []string
	for _, info := range core.GetModulesByNamespace(ns) {
		known = append(known, string(info.ID))
	}
	if len(known) == 0 {
		return fmt.Errorf("config: unknown module %q", id)
	}
	return fmt.Errorf("config: unknown module %q (available %s modules: %s)", id, ns, strings.Join(known, ", "))
}

func validateSections(cfg *Config) []error {
	var errs []error

	if _, err := cfg.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format must be text or json, got %q", cfg.Log.Format))
	}

	if cfg.Context.CompactionTimeout < 0 {
		errs = append(errs, errors.New("config: context.compaction_timeout must not be negative"))
	}
	if err := cfg.Grounding.WithDefaults().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	if r := cfg.Telemetry.Tracing.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("config: telemetry.tracing.sample_ratio must be within [0, 1], got %v", r))
	}

	return errs
}
