package chat

import "sync"

// LaneLock provides per-session serialization: turns and compactions of
// one session run one at a time, while different sessions proceed in
// parallel.
//
// A global mutex protects the lane map and is held only to look up or
// create a lane. Lanes are reference counted and removed as soon as no
// goroutine holds or waits on them, so the map never outgrows the set of
// sessions in flight.
type LaneLock struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// lane is the per-session mutex. refs counts goroutines that acquired or
// are waiting on it.
type lane struct {
	mu   sync.Mutex
	refs int
}

// NewLaneLock creates a ready-to-use LaneLock.
func NewLaneLock() *LaneLock {
	return &LaneLock{lanes: make(map[string]*lane)}
}

// Acquire locks the lane of sessionID and returns the function that
// releases it. The release function must be called exactly once.
func (l *LaneLock) Acquire(sessionID string) (release func()) {
	l.mu.Lock()
	ln, ok := l.lanes[sessionID]
	if !ok {
		ln = &lane{}
		l.lanes[sessionID] = ln
	}
	ln.refs++
	l.mu.Unlock()

	// Lock outside the global mutex so other sessions are not blocked.
	ln.mu.Lock()

	return func() {
		l.mu.Lock()
		ln.refs--
		if ln.refs == 0 {
			delete(l.lanes, sessionID)
		}
		l.mu.Unlock()
		ln.mu.Unlock()
	}
}

// Len returns the number of lanes currently held or awaited.
func (l *LaneLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
