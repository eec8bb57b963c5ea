package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// sessionData holds one session and its turns.
type sessionData struct {
	session Session
	turns   []Turn
}

// InMemoryStore is a thread-safe, in-memory implementation of Store.
// Turn IDs are global to the store, as with an autoincrement column.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionData
	lastID   int64
	now      func() time.Time
}

// NewInMemoryStore creates a new empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*sessionData),
		now:      time.Now,
	}
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

// CreateSession starts an empty session for userID.
func (s *InMemoryStore) CreateSession(_ context.Context, userID, title string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	sess := Session{
		ID:        NewSessionID(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = &sessionData{session: sess}
	return sess, nil
}

// GetSession returns the session or ErrSessionNotFound.
func (s *InMemoryStore) GetSession(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sd, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sd.session, nil
}

// ListSessions returns every session, most recently updated first.
func (s *InMemoryStore) ListSessions(_ context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))
	for _, sd := range s.sessions {
		out = append(out, sd.session)
	}
	slices.SortFunc(out, func(a, b Session) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

// AppendTurn persists a turn and returns it with its assigned ID.
func (s *InMemoryStore) AppendTurn(_ context.Context, sessionID string, role Role, text string) (Turn, error) {
	if !role.Valid() {
		return Turn{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sd, ok := s.sessions[sessionID]
	if !ok {
		return Turn{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.lastID++
	turn := Turn{ID: s.lastID, Role: role, Text: text, CreatedAt: s.now().UTC()}
	sd.turns = append(sd.turns, turn)
	sd.session.UpdatedAt = turn.CreatedAt
	return turn, nil
}

// RecentTurns returns up to n turns, newest first.
func (s *InMemoryStore) RecentTurns(_ context.Context, sessionID string, n int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sd, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if n <= 0 {
		return nil, nil
	}

	start := max(0, len(sd.turns)-n)
	out := slices.Clone(sd.turns[start:])
	slices.Reverse(out)
	return out, nil
}

// TurnsAfter returns turns with ID > afterID, oldest first.
func (s *InMemoryStore) TurnsAfter(_ context.Context, sessionID string, afterID int64) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sd, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	var out []Turn
	for _, t := range sd.turns {
		if t.ID > afterID {
			out = append(out, t)
		}
	}
	return out, nil
}

// AllTurns returns every turn of the session, oldest first.
func (s *InMemoryStore) AllTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	return s.TurnsAfter(ctx, sessionID, 0)
}

// SaveMemory replaces the session memory.
func (s *InMemoryStore) SaveMemory(_ context.Context, sessionID string, mem SessionMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sd, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	sd.session.Memory = mem
	sd.session.UpdatedAt = s.now().UTC()
	return nil
}
