package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/aura/internal/chat"
	"github.com/flemzord/aura/internal/config"
	"github.com/flemzord/aura/internal/core"
	"github.com/flemzord/aura/internal/document"
	"github.com/flemzord/aura/internal/memory"
	"github.com/flemzord/aura/internal/provider"
	"github.com/flemzord/aura/internal/security"
)

// secretSource is implemented by modules holding credentials.
type secretSource interface {
	Secrets() []string
}

// collectSecrets feeds every module credential to the log redactor.
func collectSecrets(app *core.App, redactor *security.Redactor) {
	for _, mod := range app.Modules() {
		if src, ok := mod.(secretSource); ok {
			for _, s := range src.Secrets() {
				redactor.AddLiteral(s)
			}
		}
	}
}

// chainModule wraps the provider chain to satisfy core.Starter and
// core.Stopper, so its health probes follow the App lifecycle.
type chainModule struct {
	chain *provider.Chain
	ctx   context.Context
}

func (m *chainModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "provider.chain"}
}

func (m *chainModule) Start() error {
	m.chain.Start(m.ctx)
	return nil
}

func (m *chainModule) Stop(_ context.Context) error {
	m.chain.Stop()
	return nil
}

// buildChain collects the entries of every loaded provider module into one
// failover chain.
func buildChain(app *core.App, logger *slog.Logger) (*provider.Chain, error) {
	var entries []provider.ChainEntry
	for _, mod := range app.Modules() {
		member, ok := mod.(provider.ChainMember)
		if !ok {
			continue
		}
		entry, err := member.ChainEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		logger.Info("provider joined chain", "provider", entry.Name, "role", entry.Role)
	}
	chain, err := provider.NewChain(entries, provider.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("building provider chain: %w", err)
	}
	return chain, nil
}

// resolveStore returns the store registered by the store.* module, or a
// process-local store when none is configured.
func resolveStore(appCtx *core.AppContext, logger *slog.Logger) memory.Store {
	if store, ok := core.ServiceAs[memory.Store](appCtx, memory.StoreServiceName); ok {
		return store
	}
	logger.Warn("no store module configured, sessions will not survive a restart")
	return memory.NewInMemoryStore()
}

// wireChat builds the provider chain and the chat service and registers
// both as services. Must be called after LoadModules and before Start so
// the gateway and the cron scheduler find them.
func wireChat(rt *Runtime, cfg *config.Config) error {
	logger := rt.Logger
	chain, err := buildChain(rt.App, logger)
	if err != nil {
		return err
	}
	rt.Chain = chain
	rt.AppCtx.RegisterService(provider.ChainServiceName, chain)
	rt.App.AppendModule("provider.chain", &chainModule{chain: chain, ctx: context.Background()})

	// Compaction goes to the internal role when one is configured so it
	// never competes with user turns on the primary model.
	compactRole := provider.RolePrimary
	if chain.HasRole(provider.RoleInternal) {
		compactRole = provider.RoleInternal
	}
	ctxCfg := cfg.Context.WithDefaults()
	compactor := memory.NewCompactor(chain.Bind(compactRole),
		memory.WithCompactorLogger(logger.With("component", "compactor")),
		memory.WithCompactionTimeout(ctxCfg.CompactionTimeout),
	)

	svc := chat.NewService(
		resolveStore(rt.AppCtx, logger),
		chain.Bind(provider.RolePrimary),
		chat.Config{Context: ctxCfg, Grounding: cfg.Grounding},
		chat.WithLogger(logger.With("component", "chat")),
		chat.WithMetrics(rt.Metrics),
		chat.WithExtractor(document.NewMux(cfg.DocumentLimits())),
		chat.WithCompactor(compactor),
	)
	rt.Chat = svc
	rt.AppCtx.RegisterService(chat.ServiceName, svc)

	logger.Info("chat host wired", "compaction_role", compactRole)
	return nil
}
