package provider

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Health defaults applied to zero HealthConfig fields.
const (
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = time.Minute
	defaultMaxFailures    = 5
	defaultCheckInterval  = 10 * time.Second
)

type healthState int

const (
	stateHealthy healthState = iota
	// stateCooldown: the last call failed, requests wait for the backoff.
	stateCooldown
	// stateDead: MaxFailures consecutive outages, only a probe revives it.
	stateDead
)

func (s healthState) String() string {
	switch s {
	case stateHealthy:
		return "healthy"
	case stateCooldown:
		return "cooldown"
	case stateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// HealthConfig is the optional "health" block of a provider module.
type HealthConfig struct {
	// InitialBackoff is the first cooldown. Default 1s.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	// MaxBackoff caps the doubling cooldown. Default 1m.
	MaxBackoff time.Duration `yaml:"max_backoff"`
	// MaxFailures consecutive outages mark the provider dead. Rate
	// limiting never counts. Default 5.
	MaxFailures int `yaml:"max_failures"`
	// CheckInterval is the probe period for unavailable providers.
	// Default 10s.
	CheckInterval time.Duration `yaml:"check_interval"`
}

func (c HealthConfig) withDefaults() HealthConfig {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = defaultMaxFailures
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	return c
}

func (c HealthConfig) validate() error {
	var errs []error
	if c.InitialBackoff < 0 {
		errs = append(errs, errors.New("initial_backoff must not be negative"))
	}
	if c.MaxBackoff < 0 {
		errs = append(errs, errors.New("max_backoff must not be negative"))
	}
	if c.MaxFailures < 0 {
		errs = append(errs, errors.New("max_failures must not be negative"))
	}
	if c.CheckInterval < 0 {
		errs = append(errs, errors.New("check_interval must not be negative"))
	}
	if c.InitialBackoff > 0 && c.MaxBackoff > 0 && c.MaxBackoff < c.InitialBackoff {
		errs = append(errs, fmt.Errorf("max_backoff %v is below initial_backoff %v", c.MaxBackoff, c.InitialBackoff))
	}
	return errors.Join(errs...)
}

// healthSnapshot is a consistent view of a tracker taken under one lock.
type healthSnapshot struct {
	state     healthState
	available bool
	failures  int
	backoff   time.Duration
	until     time.Time
	lastErr   error
}

// healthTracker is the circuit of one chain entry. Outages back off
// exponentially and, after MaxFailures in a row, mark the entry dead.
// Rate limits back off the same way but leave the failure count alone:
// a throttled backend is busy, not broken.
type healthTracker struct {
	cfg HealthConfig

	// onStateChange runs outside the lock on every transition.
	onStateChange func(from, to healthState)
	now           func() time.Time

	mu       sync.Mutex
	state    healthState
	failures int
	backoff  time.Duration
	until    time.Time
	lastErr  error
}

func newHealthTracker(cfg HealthConfig) *healthTracker {
	return &healthTracker{cfg: cfg.withDefaults(), now: time.Now}
}

func (h *healthTracker) availableLocked() bool {
	switch h.state {
	case stateHealthy:
		return true
	case stateCooldown:
		return !h.now().Before(h.until)
	default:
		return false
	}
}

// available reports whether requests may be sent. A cooldown ends at its
// deadline inclusive.
func (h *healthTracker) available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.availableLocked()
}

// needsProbe is true for dead entries and for expired cooldowns. A dead
// entry only comes back through a passing probe.
func (h *healthTracker) needsProbe() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case stateDead:
		return true
	case stateCooldown:
		return !h.now().Before(h.until)
	default:
		return false
	}
}

func (h *healthTracker) recordSuccess() {
	h.mu.Lock()
	prev := h.state
	h.state = stateHealthy
	h.failures = 0
	h.backoff = 0
	h.until = time.Time{}
	h.lastErr = nil
	h.mu.Unlock()

	h.notify(prev, stateHealthy)
}

// recordFailure registers a retryable error from a completion call.
func (h *healthTracker) recordFailure(err error) {
	h.mu.Lock()
	prev := h.state
	h.lastErr = err
	if !errors.Is(err, ErrRateLimit) {
		h.failures++
	}
	if h.failures >= h.cfg.MaxFailures {
		h.state = stateDead
		h.until = time.Time{}
	} else {
		h.state = stateCooldown
		h.armLocked(true)
	}
	next := h.state
	h.mu.Unlock()

	h.notify(prev, next)
}

// recordProbeFailure keeps a dead entry dead and restarts the current
// cooldown of a cooling one, without growing the backoff.
func (h *healthTracker) recordProbeFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastErr = err
	if h.state == stateCooldown {
		h.armLocked(false)
	}
}

// armLocked sets the cooldown deadline, doubling the backoff first when
// grow is set.
func (h *healthTracker) armLocked(grow bool) {
	switch {
	case h.backoff == 0:
		h.backoff = h.cfg.InitialBackoff
	case grow:
		h.backoff *= 2
	}
	h.backoff = min(h.backoff, h.cfg.MaxBackoff)
	h.until = h.now().Add(h.backoff)
}

func (h *healthTracker) snapshot() healthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return healthSnapshot{
		state:     h.state,
		available: h.availableLocked(),
		failures:  h.failures,
		backoff:   h.backoff,
		until:     h.until,
		lastErr:   h.lastErr,
	}
}

func (h *healthTracker) notify(from, to healthState) {
	if from != to && h.onStateChange != nil {
		h.onStateChange(from, to)
	}
}
