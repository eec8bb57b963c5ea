package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/aura/internal/memory"
)

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements memory.Store on a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ memory.Store = (*Store)(nil)

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) timestamp() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CreateSession implements memory.Store.
func (s *Store) CreateSession(ctx context.Context, userID, title string) (memory.Session, error) {
	now := s.timestamp()
	sess := memory.Session{
		ID:        memory.NewSessionID(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Title, formatTime(now), formatTime(now),
	)
	if err != nil {
		return memory.Session{}, fmt.Errorf("sqlite: create session: %w", err)
	}
	return sess, nil
}

const sessionColumns = `id, user_id, title, memory_json, last_compacted_turn_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (memory.Session, error) {
	var (
		sess             memory.Session
		created, updated string
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Title,
		&sess.Memory.JSON, &sess.Memory.LastCompactedTurnID, &created, &updated)
	if err != nil {
		return memory.Session{}, err
	}
	sess.CreatedAt = parseTime(created)
	sess.UpdatedAt = parseTime(updated)
	return sess, nil
}

// GetSession implements memory.Store.
func (s *Store) GetSession(ctx context.Context, id string) (memory.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Session{}, fmt.Errorf("%w: %s", memory.ErrSessionNotFound, id)
	}
	if err != nil {
		return memory.Session{}, fmt.Errorf("sqlite: get session: %w", err)
	}
	return sess, nil
}

// ListSessions implements memory.Store.
func (s *Store) ListSessions(ctx context.Context) ([]memory.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []memory.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate sessions: %w", err)
	}
	return out, nil
}

// AppendTurn implements memory.Store. The turn insert and the session
// touch commit together.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, role memory.Role, text string) (memory.Turn, error) {
	if !role.Valid() {
		return memory.Turn{}, fmt.Errorf("%w: %q", memory.ErrInvalidRole, role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return memory.Turn{}, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.timestamp()
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, formatTime(now), sessionID)
	if err != nil {
		return memory.Turn{}, fmt.Errorf("sqlite: touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return memory.Turn{}, fmt.Errorf("%w: %s", memory.ErrSessionNotFound, sessionID)
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO turns (session_id, role, text, created_at)
		VALUES (?, ?, ?, ?)`,
		sessionID, string(role), text, formatTime(now),
	)
	if err != nil {
		return memory.Turn{}, fmt.Errorf("sqlite: insert turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return memory.Turn{}, fmt.Errorf("sqlite: turn id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return memory.Turn{}, fmt.Errorf("sqlite: commit turn: %w", err)
	}
	return memory.Turn{ID: id, Role: role, Text: text, CreatedAt: now}, nil
}

// RecentTurns implements memory.Store.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, n int) ([]memory.Turn, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	return s.queryTurns(ctx, `
		SELECT id, role, text, created_at FROM turns
		WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, n,
	)
}

// TurnsAfter implements memory.Store.
func (s *Store) TurnsAfter(ctx context.Context, sessionID string, afterID int64) ([]memory.Turn, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.queryTurns(ctx, `
		SELECT id, role, text, created_at FROM turns
		WHERE session_id = ? AND id > ? ORDER BY id ASC`,
		sessionID, afterID,
	)
}

// AllTurns implements memory.Store.
func (s *Store) AllTurns(ctx context.Context, sessionID string) ([]memory.Turn, error) {
	return s.TurnsAfter(ctx, sessionID, 0)
}

// SaveMemory implements memory.Store.
func (s *Store) SaveMemory(ctx context.Context, sessionID string, mem memory.SessionMemory) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET memory_json = ?, last_compacted_turn_id = ?, updated_at = ?
		WHERE id = ?`,
		mem.JSON, mem.LastCompactedTurnID, formatTime(s.timestamp()), sessionID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", memory.ErrSessionNotFound, sessionID)
	}
	return nil
}

func (s *Store) requireSession(ctx context.Context, sessionID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", memory.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: lookup session: %w", err)
	}
	return nil
}

func (s *Store) queryTurns(ctx context.Context, query string, args ...any) ([]memory.Turn, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []memory.Turn
	for rows.Next() {
		var (
			t       memory.Turn
			role    string
			created string
		)
		if err := rows.Scan(&t.ID, &role, &t.Text, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan turn: %w", err)
		}
		t.Role = memory.Role(role)
		t.CreatedAt = parseTime(created)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate turns: %w", err)
	}
	return out, nil
}
