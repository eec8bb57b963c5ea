// Package sqlite implements the store.sqlite module: a persistent
// memory.Store on modernc.org/sqlite (pure Go, no CGO) in WAL mode.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/aura/internal/core"
	"github.com/flemzord/aura/internal/memory"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// setupTimeout bounds opening, migrating and pinging the database while the
// host boots.
const setupTimeout = 30 * time.Second

// Module owns one SQLite file and publishes it as the memory.store service.
type Module struct {
	config Config
	logger *slog.Logger
	store  *Store
}

func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	return nil
}

// Provision opens the database below the data directory unless the path
// is absolute, and migrates it to the current schema.
func (m *Module) Provision(app *core.AppContext) error {
	m.config.defaults()
	m.config.resolvePath(app.DataDir)
	m.logger = app.Logger

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	store, err := Open(ctx, m.config)
	if err != nil {
		return err
	}
	m.store = store
	app.RegisterService(memory.StoreServiceName, store)

	m.logger.Info("sqlite store ready",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
		"schema", schemaVersion,
	)
	return nil
}

func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if m.store == nil {
		return fmt.Errorf("sqlite: store not provisioned")
	}
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	if err := m.store.Ping(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.store == nil {
		return nil
	}
	err := m.store.Close()
	m.store = nil
	return err
}

// Store returns the provisioned store, nil before Provision.
func (m *Module) Store() memory.Store {
	if m.store == nil {
		return nil
	}
	return m.store
}
