// Package gateway exposes the chat service over HTTP: chat turns with
// optional document upload, session inspection, health and Prometheus
// metrics. It binds to loopback by default and follows the module system
// pattern.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/aura/internal/chat"
	"github.com/flemzord/aura/internal/core"
	"github.com/flemzord/aura/internal/memory"
	"github.com/flemzord/aura/internal/provider"
	"github.com/flemzord/aura/internal/security"
	"github.com/flemzord/aura/internal/telemetry"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// ChatService is the part of chat.Service the gateway serves.
type ChatService interface {
	Chat(ctx context.Context, req chat.Request) (chat.Response, error)
	Session(ctx context.Context, sessionID, userID string) (memory.Session, error)
	Sessions(ctx context.Context, userID string) ([]memory.Session, error)
	Messages(ctx context.Context, sessionID, userID string) ([]memory.Turn, error)
	CompactPending(ctx context.Context, sessionID string) (bool, error)
}

var _ ChatService = (*chat.Service)(nil)

// Gateway is the HTTP gateway module. It is a leaf module; nothing
// imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	limiter   *security.RateLimiter
	audit     *security.AuditLogger
	auditFile *os.File
	startedAt time.Time

	// Resolved lazily at Start() via the service registry.
	chat    ChatService
	chain   *provider.Chain
	metrics *telemetry.Metrics
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.limiter = security.NewRateLimiter(g.config.RateLimit)

	if g.config.AuditLog != "" {
		f, err := os.OpenFile(g.config.AuditLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("gateway: opening audit log: %w", err)
		}
		g.auditFile = f
		g.audit = security.NewAuditLogger(security.AuditLoggerConfig{
			Writer:   f,
			Redactor: security.NewRedactor(g.config.Auth.BearerToken, g.config.Auth.BasicPass),
		})
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if (g.config.Auth.BasicUser == "") != (g.config.Auth.BasicPass == "") {
		return errors.New("gateway: auth.basic_user and auth.basic_pass must be set together")
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	if g.chat == nil {
		g.logger.Warn("chat service not registered, /api/chat will answer 503")
	}
	if !g.config.Auth.IsConfigured() && !isLoopback(g.config.Bind) {
		g.logger.Warn("gateway exposed without authentication", "addr", g.config.Bind)
	}

	g.startedAt = time.Now()
	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	var err error
	if g.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
		defer cancel()
		g.logger.Info("gateway shutting down")
		err = g.server.Shutdown(shutdownCtx)
	}
	if g.auditFile != nil {
		err = errors.Join(err, g.auditFile.Close())
	}
	return err
}

// Secrets returns the credentials to redact from logs.
func (g *Gateway) Secrets() []string {
	return []string{g.config.Auth.BearerToken, g.config.Auth.BasicPass}
}

// resolveServices binds optional collaborators; missing ones degrade
// gracefully.
func (g *Gateway) resolveServices() {
	if svc, ok := core.ServiceAs[ChatService](g.appCtx, chat.ServiceName); ok {
		g.chat = svc
	}
	if chain, ok := core.ServiceAs[*provider.Chain](g.appCtx, provider.ChainServiceName); ok {
		g.chain = chain
	}
	if m, ok := core.ServiceAs[*telemetry.Metrics](g.appCtx, telemetry.MetricsServiceName); ok {
		g.metrics = m
	}
}

func isLoopback(bind string) bool {
	host, _, err := net.SplitHostPort(bind)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
