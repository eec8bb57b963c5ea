package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/aura/internal/chat"
	"github.com/flemzord/aura/internal/core"
)

func init() {
	core.RegisterModule(&Module{})
}

// Config is the "cron.scheduler" module section.
type Config struct {
	// CompactionSchedule is the cron expression of the memory compaction
	// sweep. "off" disables the sweep.
	CompactionSchedule string `yaml:"compaction_schedule"`
}

func (c *Config) defaults() {
	if c.CompactionSchedule == "" {
		c.CompactionSchedule = DefaultCompactionSchedule
	}
}

// Module runs the background jobs of the chat service.
type Module struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *Scheduler
}

// Compile-time interface checks.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "cron.scheduler",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.scheduler = NewScheduler(ctx.Logger)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.CompactionSchedule == Off {
		return nil
	}
	if _, err := ParseSchedule(m.config.CompactionSchedule); err != nil {
		return fmt.Errorf("compaction_schedule: %w", err)
	}
	return nil
}

// Start implements core.Starter. It registers the compaction sweep
// against the chat service and starts the scheduler.
func (m *Module) Start() error {
	if m.config.CompactionSchedule != Off {
		svc, ok := core.ServiceAs[SessionCompactor](m.appCtx, chat.ServiceName)
		if !ok {
			return errors.New("cron: chat service not registered")
		}
		job := &MemoryCompactionJob{
			Chat:         svc,
			Logger:       m.logger,
			ScheduleExpr: m.config.CompactionSchedule,
		}
		if err := m.scheduler.RegisterJob(job); err != nil {
			return err
		}
	}
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}
