package provider

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func trackerAt(cfg HealthConfig) (*healthTracker, *clock) {
	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	h := newHealthTracker(cfg)
	h.now = c.Now
	return h, c
}

var errDown = errors.New("connection refused: " + ErrProviderDown.Error())

func TestHealthConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	got := HealthConfig{}.withDefaults()
	want := HealthConfig{
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		MaxFailures:    defaultMaxFailures,
		CheckInterval:  defaultCheckInterval,
	}
	if got != want {
		t.Errorf("withDefaults() = %+v, want %+v", got, want)
	}

	custom := HealthConfig{InitialBackoff: 3 * time.Second, MaxFailures: 2}.withDefaults()
	if custom.InitialBackoff != 3*time.Second || custom.MaxFailures != 2 {
		t.Errorf("explicit values overridden: %+v", custom)
	}
}

func TestHealthConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     HealthConfig
		wantErr bool
	}{
		{"zero", HealthConfig{}, false},
		{"explicit", HealthConfig{InitialBackoff: time.Second, MaxBackoff: time.Minute, MaxFailures: 3}, false},
		{"only max backoff", HealthConfig{MaxBackoff: 500 * time.Millisecond}, false},
		{"negative initial", HealthConfig{InitialBackoff: -time.Second}, true},
		{"negative max", HealthConfig{MaxBackoff: -time.Second}, true},
		{"negative failures", HealthConfig{MaxFailures: -2}, true},
		{"negative interval", HealthConfig{CheckInterval: -time.Second}, true},
		{"max below initial", HealthConfig{InitialBackoff: time.Minute, MaxBackoff: time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.cfg.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHealthTracker_NewIsHealthy(t *testing.T) {
	t.Parallel()

	h, _ := trackerAt(HealthConfig{})
	snap := h.snapshot()
	if snap.state != stateHealthy || !snap.available || snap.failures != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
	if h.needsProbe() {
		t.Error("healthy tracker should not need a probe")
	}
}

func TestHealthTracker_BackoffLadder(t *testing.T) {
	t.Parallel()

	h, c := trackerAt(HealthConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, MaxFailures: 10})

	for i, want := range []time.Duration{1, 2, 4, 5, 5} {
		want *= time.Second
		h.recordFailure(errDown)
		snap := h.snapshot()
		if snap.backoff != want {
			t.Fatalf("failure %d: backoff = %v, want %v", i+1, snap.backoff, want)
		}
		if !snap.until.Equal(c.Now().Add(want)) {
			t.Fatalf("failure %d: until = %v", i+1, snap.until)
		}
		c.Advance(want)
	}
}

func TestHealthTracker_CooldownBoundary(t *testing.T) {
	t.Parallel()

	h, c := trackerAt(HealthConfig{InitialBackoff: 2 * time.Second})
	h.recordFailure(errDown)

	c.Advance(2*time.Second - time.Nanosecond)
	if h.available() || h.needsProbe() {
		t.Fatal("available before the deadline")
	}
	c.Advance(time.Nanosecond)
	if !h.available() {
		t.Error("cooldown deadline is inclusive")
	}
	if !h.needsProbe() {
		t.Error("expired cooldown should be probed")
	}
}

func TestHealthTracker_DeadAfterMaxFailures(t *testing.T) {
	t.Parallel()

	h, c := trackerAt(HealthConfig{MaxFailures: 3})
	var transitions []string
	h.onStateChange = func(from, to healthState) {
		transitions = append(transitions, from.String()+">"+to.String())
	}

	for range 3 {
		h.recordFailure(errDown)
	}
	c.Advance(time.Hour)

	snap := h.snapshot()
	if snap.state != stateDead || snap.available {
		t.Fatalf("snapshot = %+v, want dead", snap)
	}
	if !snap.until.IsZero() {
		t.Errorf("dead entry keeps a deadline: %v", snap.until)
	}
	if !h.needsProbe() {
		t.Error("dead entry should be probed")
	}
	want := []string{"healthy>cooldown", "cooldown>dead"}
	if len(transitions) != 2 || transitions[0] != want[0] || transitions[1] != want[1] {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}
}

func TestHealthTracker_RateLimitNeverKills(t *testing.T) {
	t.Parallel()

	h, c := trackerAt(HealthConfig{InitialBackoff: time.Second, MaxBackoff: 4 * time.Second, MaxFailures: 2})
	for range 10 {
		h.recordFailure(ErrRateLimit)
		c.Advance(4 * time.Second)
	}

	snap := h.snapshot()
	if snap.state != stateCooldown {
		t.Fatalf("state = %v, want cooldown", snap.state)
	}
	if snap.failures != 0 {
		t.Errorf("failures = %d, want 0", snap.failures)
	}
	if snap.backoff != 4*time.Second {
		t.Errorf("backoff = %v, want capped 4s", snap.backoff)
	}
	if !errors.Is(snap.lastErr, ErrRateLimit) {
		t.Errorf("lastErr = %v", snap.lastErr)
	}

	// An outage after throttling still counts from zero.
	h.recordFailure(errDown)
	if got := h.snapshot().state; got != stateCooldown {
		t.Errorf("state after first outage = %v, want cooldown", got)
	}
}

func TestHealthTracker_SuccessResets(t *testing.T) {
	t.Parallel()

	h, _ := trackerAt(HealthConfig{MaxFailures: 2})
	var revived bool
	h.onStateChange = func(_, to healthState) { revived = to == stateHealthy }

	h.recordFailure(errDown)
	h.recordFailure(errDown)
	h.recordSuccess()

	snap := h.snapshot()
	if snap.state != stateHealthy || snap.failures != 0 || snap.backoff != 0 || snap.lastErr != nil {
		t.Errorf("snapshot after success = %+v", snap)
	}
	if !revived {
		t.Error("revival transition not reported")
	}

	// The next outage restarts the ladder.
	h.recordFailure(errDown)
	if got := h.snapshot().backoff; got != defaultInitialBackoff {
		t.Errorf("backoff = %v, want %v", got, defaultInitialBackoff)
	}
}

func TestHealthTracker_SuccessWhileHealthyIsSilent(t *testing.T) {
	t.Parallel()

	h, _ := trackerAt(HealthConfig{})
	h.onStateChange = func(from, to healthState) {
		t.Errorf("unexpected transition %v > %v", from, to)
	}
	h.recordSuccess()
}

func TestHealthTracker_ProbeFailure(t *testing.T) {
	t.Parallel()

	t.Run("cooldown re-armed without growth", func(t *testing.T) {
		t.Parallel()
		h, c := trackerAt(HealthConfig{InitialBackoff: time.Second, MaxFailures: 5})
		h.recordFailure(errDown)
		h.recordFailure(errDown)
		c.Advance(2 * time.Second)

		h.recordProbeFailure(errDown)
		snap := h.snapshot()
		if snap.backoff != 2*time.Second {
			t.Errorf("backoff = %v, want unchanged 2s", snap.backoff)
		}
		if snap.available || !snap.until.Equal(c.Now().Add(2*time.Second)) {
			t.Errorf("cooldown not restarted: %+v", snap)
		}
		if snap.failures != 2 {
			t.Errorf("failures = %d, want 2", snap.failures)
		}
	})

	t.Run("dead stays dead", func(t *testing.T) {
		t.Parallel()
		h, _ := trackerAt(HealthConfig{MaxFailures: 1})
		h.recordFailure(errDown)
		probeErr := errors.New("probe: 503")
		h.recordProbeFailure(probeErr)

		snap := h.snapshot()
		if snap.state != stateDead || !snap.until.IsZero() {
			t.Errorf("snapshot = %+v", snap)
		}
		if snap.lastErr != probeErr {
			t.Errorf("lastErr = %v, want probe error", snap.lastErr)
		}
	})
}

func TestHealthTracker_Concurrent(t *testing.T) {
	t.Parallel()

	h, _ := trackerAt(HealthConfig{MaxFailures: 1000})
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			switch i % 3 {
			case 0:
				h.recordFailure(errDown)
			case 1:
				h.recordFailure(ErrRateLimit)
			default:
				_ = h.available()
				_ = h.snapshot()
			}
		})
	}
	wg.Wait()

	if got := h.snapshot().failures; got > 17 {
		t.Errorf("failures = %d, counted more outages than recorded", got)
	}
}

func TestHealthState_String(t *testing.T) {
	t.Parallel()

	for state, want := range map[healthState]string{
		stateHealthy:   "healthy",
		stateCooldown:  "cooldown",
		stateDead:      "dead",
		healthState(9): "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
