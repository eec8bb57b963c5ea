// Package securitytest provides test doubles for the security package.
package securitytest

import (
	"sync"

	"github.com/flemzord/aura/internal/security"
)

// AuditRecorder keeps every event logged through Logger in memory.
type AuditRecorder struct {
	Logger *security.AuditLogger

	mu     sync.Mutex
	events []security.AuditEvent
}

// NewAuditRecorder returns a recorder whose Logger writes nowhere else.
func NewAuditRecorder() *AuditRecorder {
	r := &AuditRecorder{}
	r.Logger = security.NewAuditLogger(security.AuditLoggerConfig{OnEvent: r.record})
	return r
}

func (r *AuditRecorder) record(e security.AuditEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Types returns the recorded event types in order.
func (r *AuditRecorder) Types() []security.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]security.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Events returns a copy of the recorded events.
func (r *AuditRecorder) Events() []security.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]security.AuditEvent(nil), r.events...)
}
