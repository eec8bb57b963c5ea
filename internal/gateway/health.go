package gateway

import (
	"net/http"

	"github.com/flemzord/aura/internal/provider"
)

// Health states reported by GET /health.
const (
	healthOK          = "ok"
	healthDegraded    = "degraded"
	healthUnavailable = "unavailable"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Chat      bool              `json:"chat"`
	Available int               `json:"available"`
	Providers []provider.Status `json:"providers"`
}

// handleHealth answers 200 while chat turns can be served: "ok" when every
// provider is available, "degraded" when failover is in use. Without a chat
// service or with no available provider it answers 503 "unavailable".
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Chat: g.chat != nil, Providers: []provider.Status{}}
		if g.chain != nil {
			resp.Providers = g.chain.HealthReport()
		}
		for _, p := range resp.Providers {
			if p.Available {
				resp.Available++
			}
		}

		switch {
		case !resp.Chat || (g.chain != nil && resp.Available == 0):
			resp.Status = healthUnavailable
		case resp.Available < len(resp.Providers):
			resp.Status = healthDegraded
		default:
			resp.Status = healthOK
		}

		code := http.StatusOK
		if resp.Status == healthUnavailable {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
