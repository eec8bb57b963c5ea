package gateway

import (
	"net/http"
	"runtime"
	"time"

	"github.com/flemzord/aura/internal/core"
	"github.com/flemzord/aura/internal/provider"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	StartedAt  time.Time         `json:"started_at"`
	Uptime     int64             `json:"uptime_seconds"`
	GoVersion  string            `json:"go_version"`
	Goroutines int               `json:"goroutines"`
	Modules    []string          `json:"modules"`
	Providers  []provider.Status `json:"providers"`

	// AuditWriteErrors counts audit events lost to a failing audit log.
	AuditWriteErrors int64 `json:"audit_write_errors"`
}

func (g *Gateway) status() StatusResponse {
	st := StatusResponse{
		StartedAt:        g.startedAt.UTC(),
		Uptime:           int64(time.Since(g.startedAt) / time.Second),
		GoVersion:        runtime.Version(),
		Goroutines:       runtime.NumGoroutine(),
		Providers:        []provider.Status{},
		AuditWriteErrors: g.audit.WriteErrors(),
	}
	for _, info := range core.GetModules() {
		st.Modules = append(st.Modules, string(info.ID))
	}
	if g.chain != nil {
		st.Providers = g.chain.HealthReport()
	}
	return st
}

func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, g.status())
	}
}
