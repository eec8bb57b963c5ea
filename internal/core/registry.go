package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// registry holds the modules compiled into the binary. Modules add
// themselves from init(); the set is read-only once main runs.
type registry struct {
	mu   sync.RWMutex
	byID map[ModuleID]ModuleInfo
}

var defaultRegistry = &registry{byID: make(map[ModuleID]ModuleInfo)}

// RegisterModule adds a module to the registry. IDs take the form
// "namespace.name". It panics on a malformed ID, a nil constructor or a
// duplicate, since all three are programming errors caught at init.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if err := checkID(info.ID); err != nil {
		panic(err.Error())
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}
	defaultRegistry.add(info)
}

func checkID(id ModuleID) error {
	if id == "" {
		return fmt.Errorf("module ID must not be empty")
	}
	ns, name, ok := strings.Cut(string(id), ".")
	if !ok || ns == "" || name == "" {
		return fmt.Errorf("module ID %q must have the form namespace.name", id)
	}
	return nil
}

func (r *registry) add(info ModuleInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[info.ID]; exists {
		panic(fmt.Sprintf("module already registered: %s", info.ID))
	}
	r.byID[info.ID] = info
}

// GetModule returns the ModuleInfo for the given ID, or false if not found.
func GetModule(id string) (ModuleInfo, bool) {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	info, ok := defaultRegistry.byID[ModuleID(id)]
	return info, ok
}

// GetModules returns all registered modules sorted by ID.
func GetModules() []ModuleInfo {
	return defaultRegistry.list(func(ModuleID) bool { return true })
}

// GetModulesByNamespace returns the modules of one namespace sorted by ID
// ("store" yields store.postgres and store.sqlite).
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return defaultRegistry.list(func(id ModuleID) bool { return id.Namespace() == namespace })
}

func (r *registry) list(keep func(ModuleID) bool) []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ModuleInfo
	for id, info := range r.byID {
		if keep(id) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.byID = make(map[ModuleID]ModuleInfo)
}
