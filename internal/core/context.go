// Package core provides the module system foundation for aura.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// AppContext is what a module sees while it is provisioned: a logger
// scoped to the module, the data directory and the shared service table.
type AppContext struct {
	// Logger carries a "module" attribute inside a module's Provision.
	Logger *slog.Logger

	// DataDir holds persistent state such as the SQLite database.
	DataDir string

	base    *slog.Logger
	configs map[string]yaml.Node
	svc     *services
}

// services is shared by every AppContext derived from one root.
type services struct {
	mu     sync.RWMutex
	byName map[string]any
}

// NewAppContext returns a root context. A nil logger means slog.Default.
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:  logger,
		DataDir: dataDir,
		base:    logger,
		svc:     &services{byName: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy that hands configs[id] to each
// module's Configure.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.configs = configs
	return &cp
}

// ForModule returns a copy whose Logger is tagged with id.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	cp := *ctx
	cp.Logger = ctx.base.With("module", string(id))
	return &cp
}

// RegisterService publishes svc under name. The last registration wins.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.svc.mu.Lock()
	ctx.svc.byName[name] = svc
	ctx.svc.mu.Unlock()
}

// Service returns the value published under name.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.svc.mu.RLock()
	defer ctx.svc.mu.RUnlock()
	v, ok := ctx.svc.byName[name]
	return v, ok
}

// ServiceAs returns the service under name if it is a T.
func ServiceAs[T any](ctx *AppContext, name string) (T, bool) {
	v, _ := ctx.Service(name)
	t, ok := v.(T)
	return t, ok
}

// LoadModule builds the module registered as id and takes it through
// Configure, Provision and Validate, skipping the steps it does not
// implement. Configure only runs when the config has a section for id.
// A module that fails Validate after a successful Provision is stopped
// before the error is returned, so resources it opened are released.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}
	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, found := ctx.configs[id]; found {
			if err := c.Configure(&node); err != nil {
				return nil, fmt.Errorf("configuring module %s: %w", id, err)
			}
		}
	}

	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}

	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			release(mod)
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}
	return mod, nil
}

func release(mod Module) {
	s, ok := mod.(Stopper)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.Stop(ctx)
}
