// Package app provides the shared entry point of the aura binary: it loads
// the configuration, assembles the modules into a running host and blocks
// until shutdown.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flemzord/aura/internal/chat"
	"github.com/flemzord/aura/internal/config"
	"github.com/flemzord/aura/internal/core"
	"github.com/flemzord/aura/internal/provider"
	"github.com/flemzord/aura/internal/security"
	"github.com/flemzord/aura/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the data_dir setting and the default directory.
	DataDir string

	// Debug forces the debug log level regardless of log.level.
	Debug bool

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Runtime is a fully wired host. Build returns it unstarted.
type Runtime struct {
	App     *core.App
	AppCtx  *core.AppContext
	Chat    *chat.Service
	Chain   *provider.Chain
	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	shutdownTracing telemetry.ShutdownFunc
}

// Run loads configuration, starts all modules, and blocks until a shutdown
// signal or ctx cancellation.
func Run(ctx context.Context, params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	rt, err := Build(ctx, cfg, params)
	if err != nil {
		return err
	}
	rt.AppCtx.RegisterService("config.path", cfgPath)

	if err := rt.Start(); err != nil {
		rt.Stop()
		return err
	}
	rt.Logger.Info("aura started", "version", params.Version, "config", cfgPath)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	rt.Logger.Info("shutdown signal received")
	rt.Stop()
	rt.Logger.Info("shutdown complete")
	return nil
}

// Build creates the logger, tracing, metrics and modules described by cfg
// and wires the chat host between them. cfg must already be validated.
func Build(ctx context.Context, cfg *config.Config, params RunParams) (*Runtime, error) {
	redactor := security.NewRedactor()
	logger, err := newLogger(cfg.Log, params, redactor)
	if err != nil {
		return nil, err
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing, logger)
	if err != nil {
		return nil, err
	}

	metrics := telemetry.NewMetrics()
	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(telemetry.MetricsServiceName, metrics)

	application := core.NewApp(appCtx)
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	// Module secrets are only known once every module is configured.
	collectSecrets(application, redactor)

	rt := &Runtime{
		App:             application,
		AppCtx:          appCtx,
		Metrics:         metrics,
		Logger:          logger,
		shutdownTracing: shutdownTracing,
	}
	if err := wireChat(rt, cfg); err != nil {
		rt.Stop()
		return nil, err
	}
	return rt, nil
}

// Start starts every module in load order, then the appended ones.
func (rt *Runtime) Start() error {
	return rt.App.Start()
}

// Stop stops the modules in reverse order and flushes pending spans.
func (rt *Runtime) Stop() {
	rt.App.Stop()
	if rt.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.shutdownTracing(ctx); err != nil {
			rt.Logger.Warn("tracing shutdown failed", "error", err)
		}
	}
}

// newLogger builds the text or JSON handler selected by cfg and wraps it
// in a redacting handler so secrets never reach the output.
func newLogger(cfg config.LogConfig, params RunParams, redactor *security.Redactor) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if params.Debug {
		level = slog.LevelDebug
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if cfg.JSON() {
		inner = slog.NewJSONHandler(out, opts)
	} else {
		inner = slog.NewTextHandler(out, opts)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/aura/aura.yaml → ~/.config/aura/aura.yaml → ./aura.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "aura", "aura.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "aura", "aura.yaml"))
	}

	candidates = append(candidates, "aura.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/aura if set, otherwise ~/.local/share/aura per the XDG spec.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "aura")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "aura")
}
