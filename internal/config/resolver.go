package config

import (
	"cmp"
	"slices"
	"strings"

	"github.com/flemzord/aura/internal/core"
)

// loadOrder ranks module namespaces. Stores come first so their service
// exists before anything resolves it; the gateway comes last so it only
// accepts traffic once the rest of the host is up. App.Stop runs in
// reverse, which drains the gateway before the store is closed.
var loadOrder = map[string]int{
	"store":    0,
	"provider": 1,
	"cron":     2,
	"gateway":  3,
}

// Resolve returns the configured module IDs in load order: by namespace
// rank, then by ID. Unranked namespaces load before the gateway.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(cmp.Compare(rank(a), rank(b)), strings.Compare(a, b))
	})
	return ids
}

func rank(id string) int {
	if r, ok := loadOrder[core.ModuleID(id).Namespace()]; ok {
		return r
	}
	return loadOrder["gateway"] - 1
}

// ModulesWithPrefix returns the configured module IDs in the given
// namespace, e.g. "provider." or "store.", sorted by ID.
func ModulesWithPrefix(cfg *Config, prefix string) []string {
	var ids []string
	for id := range cfg.Modules {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
