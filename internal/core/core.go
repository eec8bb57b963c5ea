package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// stopBudget bounds a whole shutdown pass, not each module.
const stopBudget = 30 * time.Second

// App owns the lifecycle of the loaded modules. Modules start in load
// order and stop in reverse.
type App struct {
	ctx    *AppContext
	logger *slog.Logger
	mods   []*loaded
}

// loaded is one module in the lifecycle. live is true while Stop still
// has to reach it: from a successful Start or, for modules without Start,
// from Provision.
type loaded struct {
	id   ModuleID
	mod  Module
	live bool
}

// NewApp returns an App that loads modules through ctx.
func NewApp(ctx *AppContext) *App {
	return &App{ctx: ctx, logger: ctx.Logger.With("component", "core")}
}

// LoadModules configures, provisions and validates the modules in ids
// order. On the first failure every module loaded so far is stopped and
// the App is left empty.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.unwind()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.add(mod.ModuleInfo().ID, mod)
	}
	return nil
}

// AppendModule adds a module assembled outside the registry, such as the
// provider chain or the chat service, to the end of the lifecycle.
func (a *App) AppendModule(id ModuleID, mod Module) {
	a.add(id, mod)
}

func (a *App) add(id ModuleID, mod Module) {
	_, hasStart := mod.(Starter)
	a.mods = append(a.mods, &loaded{id: id, mod: mod, live: !hasStart})
	a.logger.Info("module loaded", "module", string(id))
}

// Start runs Start on every Starter in load order. If one fails, every
// live module is stopped, including modules after it that hold resources
// from Provision.
func (a *App) Start() error {
	for _, m := range a.mods {
		s, ok := m.mod.(Starter)
		if !ok {
			continue
		}
		a.logger.Info("starting module", "module", string(m.id))
		if err := s.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(m.id), "error", err)
			a.Stop()
			return fmt.Errorf("starting module %s: %w", m.id, err)
		}
		m.live = true
	}
	a.logger.Info("all modules started", "count", len(a.mods))
	return nil
}

// Stop stops live modules in reverse order. It is safe to call twice.
func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), stopBudget)
	defer cancel()

	for i := len(a.mods) - 1; i >= 0; i-- {
		m := a.mods[i]
		if !m.live {
			continue
		}
		m.live = false
		s, ok := m.mod.(Stopper)
		if !ok {
			continue
		}
		a.logger.Info("stopping module", "module", string(m.id))
		if err := s.Stop(ctx); err != nil {
			a.logger.Error("module stop error", "module", string(m.id), "error", err)
		}
	}
}

// unwind stops every loaded module regardless of state and forgets them.
func (a *App) unwind() {
	for _, m := range a.mods {
		m.live = true
	}
	a.Stop()
	a.mods = nil
}

// Module returns the loaded module with the given ID.
func (a *App) Module(id string) (Module, bool) {
	for _, m := range a.mods {
		if string(m.id) == id {
			return m.mod, true
		}
	}
	return nil, false
}

// Modules returns the loaded modules in load order.
func (a *App) Modules() []Module {
	out := make([]Module, 0, len(a.mods))
	for _, m := range a.mods {
		out = append(out, m.mod)
	}
	return out
}
