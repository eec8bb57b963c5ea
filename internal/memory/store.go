// Package memory holds the durable side of a conversation: sessions, their
// turns, and the compacted session memory object that summarizes older
// turns as closed-schema JSON.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// StoreServiceName is the AppContext service key of the Store registered
// by the store.* module.
const StoreServiceName = "memory.store"

// Sentinel errors returned by Store implementations.
var (
	ErrSessionNotFound = errors.New("memory: session not found")
	ErrInvalidRole     = errors.New("memory: invalid turn role")
)

// Role identifies who authored a turn.
type Role string

// Turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one persisted message of a conversation. IDs are assigned by the
// store and strictly increase within a session.
type Turn struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionMemory is the compacted memory of a session. JSON is empty until
// the first successful compaction; LastCompactedTurnID is 0 until then.
type SessionMemory struct {
	JSON                string `json:"json,omitempty"`
	LastCompactedTurnID int64  `json:"last_compacted_turn_id,omitempty"`
}

// Session is a conversation owned by one user.
type Session struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Title     string        `json:"title,omitempty"`
	Memory    SessionMemory `json:"memory"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Store persists sessions, turns and session memory.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateSession starts an empty session for userID.
	CreateSession(ctx context.Context, userID, title string) (Session, error)

	// GetSession returns the session or ErrSessionNotFound.
	GetSession(ctx context.Context, id string) (Session, error)

	// ListSessions returns every session, most recently updated first.
	ListSessions(ctx context.Context) ([]Session, error)

	// AppendTurn persists a turn and returns it with its assigned ID.
	AppendTurn(ctx context.Context, sessionID string, role Role, text string) (Turn, error)

	// RecentTurns returns up to n turns, newest first.
	RecentTurns(ctx context.Context, sessionID string, n int) ([]Turn, error)

	// TurnsAfter returns turns with ID > afterID, oldest first.
	// An afterID of 0 returns every turn.
	TurnsAfter(ctx context.Context, sessionID string, afterID int64) ([]Turn, error)

	// AllTurns returns every turn of the session, oldest first.
	AllTurns(ctx context.Context, sessionID string) ([]Turn, error)

	// SaveMemory replaces the session memory.
	SaveMemory(ctx context.Context, sessionID string, mem SessionMemory) error
}

// NewSessionID returns a time-ordered session identifier.
func NewSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
