package core

import "strings"

// ModuleID is the dotted identifier of a module, for example
// "provider.ollama" or "store.sqlite". The part before the first dot is
// its namespace.
type ModuleID string

// Namespace returns the namespace portion of the ID ("provider" for
// "provider.ollama"). IDs without a dot are their own namespace.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID uniquely identifies the module in the registry and in config.
	ID ModuleID

	// New returns a fresh, unconfigured instance.
	New func() Module
}

// Module is implemented by every pluggable component. Optional lifecycle
// behavior is expressed through the interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
