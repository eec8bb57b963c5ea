package provider

import (
	"context"
	"time"
)

// Start runs health probes in the background until Stop or ctx ends.
// Calling it twice is a no-op.
func (c *Chain) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	go c.probeLoop(ctx, probeInterval(c.members))
}

// Stop ends background health probes.
func (c *Chain) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Chain) probeLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			probe(ctx, c.members, every)
		}
	}
}

// probeInterval is the shortest check interval among members, so every
// member is probed at least as often as it asks.
func probeInterval(members []*member) time.Duration {
	every := defaultCheckInterval
	for i, m := range members {
		if d := m.Health.withDefaults().CheckInterval; i == 0 || d < every {
			every = d
		}
	}
	return every
}

// probe checks every member waiting out a cooldown or marked dead. Each
// check may take at most limit. Members without a HealthChecker recover
// when their cooldown expires.
func probe(ctx context.Context, members []*member, limit time.Duration) {
	for _, m := range members {
		if !m.health.needsProbe() {
			continue
		}
		hc, ok := m.Provider.(HealthChecker)
		if !ok {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, limit)
		err := hc.HealthCheck(pctx)
		cancel()
		if err != nil {
			m.health.recordProbeFailure(err)
			continue
		}
		m.health.recordSuccess()
	}
}
