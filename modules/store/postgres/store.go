package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flemzord/aura/internal/memory"
)

// Store implements memory.Store on a PostgreSQL pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ memory.Store = (*Store)(nil)

// Open connects to cfg.DSN and creates the schema if needed.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS aura_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			memory_json TEXT NOT NULL DEFAULT '',
			last_compacted_turn_id BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_aura_sessions_updated ON aura_sessions (updated_at DESC, id DESC);`,
		`CREATE TABLE IF NOT EXISTS aura_turns (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES aura_sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_aura_turns_session ON aura_turns (session_id, id);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks that a connection can be acquired.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateSession implements memory.Store.
func (s *Store) CreateSession(ctx context.Context, userID, title string) (memory.Session, error) {
	now := time.Now().UTC()
	sess := memory.Session{
		ID:        memory.NewSessionID(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO aura_sessions (id, user_id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.UserID, sess.Title, now, now,
	)
	if err != nil {
		return memory.Session{}, fmt.Errorf("postgres: create session: %w", err)
	}
	return sess, nil
}

const sessionColumns = `id, user_id, title, memory_json, last_compacted_turn_id, created_at, updated_at`

func scanSession(row pgx.Row) (memory.Session, error) {
	var sess memory.Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Title,
		&sess.Memory.JSON, &sess.Memory.LastCompactedTurnID, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return memory.Session{}, err
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.UpdatedAt = sess.UpdatedAt.UTC()
	return sess, nil
}

// GetSession implements memory.Store.
func (s *Store) GetSession(ctx context.Context, id string) (memory.Session, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM aura_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return memory.Session{}, fmt.Errorf("%w: %s", memory.ErrSessionNotFound, id)
	}
	if err != nil {
		return memory.Session{}, fmt.Errorf("postgres: get session: %w", err)
	}
	return sess, nil
}

// ListSessions implements memory.Store.
func (s *Store) ListSessions(ctx context.Context) ([]memory.Session, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sessionColumns+` FROM aura_sessions ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sessions: %w", err)
	}
	defer rows.Close()

	out := []memory.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate sessions: %w", err)
	}
	return out, nil
}

// AppendTurn implements memory.Store.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, role memory.Role, text string) (memory.Turn, error) {
	if !role.Valid() {
		return memory.Turn{}, fmt.Errorf("%w: %q", memory.ErrInvalidRole, role)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return memory.Turn{}, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `UPDATE aura_sessions SET updated_at = $1 WHERE id = $2`, now, sessionID)
	if err != nil {
		return memory.Turn{}, fmt.Errorf("postgres: touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return memory.Turn{}, fmt.Errorf("%w: %s", memory.ErrSessionNotFound, sessionID)
	}

	turn := memory.Turn{Role: role, Text: text, CreatedAt: now}
	err = tx.QueryRow(ctx,
		`INSERT INTO aura_turns (session_id, role, text, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		sessionID, string(role), text, now,
	).Scan(&turn.ID)
	if err != nil {
		return memory.Turn{}, fmt.Errorf("postgres: insert turn: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return memory.Turn{}, fmt.Errorf("postgres: commit turn: %w", err)
	}
	return turn, nil
}

// RecentTurns implements memory.Store.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, n int) ([]memory.Turn, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	return s.queryTurns(ctx,
		`SELECT id, role, text, created_at FROM aura_turns
		 WHERE session_id = $1 ORDER BY id DESC LIMIT $2`,
		sessionID, n,
	)
}

// TurnsAfter implements memory.Store.
func (s *Store) TurnsAfter(ctx context.Context, sessionID string, afterID int64) ([]memory.Turn, error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.queryTurns(ctx,
		`SELECT id, role, text, created_at FROM aura_turns
		 WHERE session_id = $1 AND id > $2 ORDER BY id ASC`,
		sessionID, afterID,
	)
}

// AllTurns implements memory.Store.
func (s *Store) AllTurns(ctx context.Context, sessionID string) ([]memory.Turn, error) {
	return s.TurnsAfter(ctx, sessionID, 0)
}

// SaveMemory implements memory.Store.
func (s *Store) SaveMemory(ctx context.Context, sessionID string, mem memory.SessionMemory) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE aura_sessions SET memory_json = $1, last_compacted_turn_id = $2, updated_at = $3
		 WHERE id = $4`,
		mem.JSON, mem.LastCompactedTurnID, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("postgres: save memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", memory.ErrSessionNotFound, sessionID)
	}
	return nil
}

func (s *Store) requireSession(ctx context.Context, sessionID string) error {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM aura_sessions WHERE id = $1`, sessionID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", memory.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("postgres: lookup session: %w", err)
	}
	return nil
}

func (s *Store) queryTurns(ctx context.Context, query string, args ...any) ([]memory.Turn, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query turns: %w", err)
	}
	defer rows.Close()

	var out []memory.Turn
	for rows.Next() {
		var (
			t    memory.Turn
			role string
		)
		if err := rows.Scan(&t.ID, &role, &t.Text, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan turn: %w", err)
		}
		t.Role = memory.Role(role)
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate turns: %w", err)
	}
	return out, nil
}
