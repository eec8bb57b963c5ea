package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/aura/internal/core"
	"github.com/flemzord/aura/internal/memory"
	"github.com/flemzord/aura/internal/memory/memorytest"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()

	dir := t.TempDir()
	m := &Module{
		config: Config{
			Path:        filepath.Join(dir, "test.db"),
			BusyTimeout: defaultBusyTimeout,
		},
	}
	m.config.defaults()

	ctx := core.NewAppContext(slog.Default(), dir)

	if err := m.Provision(ctx); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	t.Cleanup(func() {
		_ = m.Stop(context.Background())
	})

	return m
}

func TestConformance(t *testing.T) {
	memorytest.RunStoreTests(t, func(t *testing.T) memory.Store {
		return newTestModule(t).store
	})
}

func TestProvisionRegistersService(t *testing.T) {
	dir := t.TempDir()
	m := &Module{}
	m.config.defaults()
	ctx := core.NewAppContext(slog.Default(), dir)

	if err := m.Provision(ctx); err != nil {
		t.Fatalf("provision: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	if want := filepath.Join(dir, defaultDBFile); m.config.Path != want {
		t.Errorf("Path = %q, want %q", m.config.Path, want)
	}
	svc, ok := core.ServiceAs[memory.Store](ctx, memory.StoreServiceName)
	if !ok || svc != m.Store() {
		t.Errorf("service %q = %v, want the module store", memory.StoreServiceName, svc)
	}
}

func TestListSessionsOrder(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := base
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	older, _ := s.CreateSession(ctx, "u", "older")
	newer, _ := s.CreateSession(ctx, "u", "newer")

	list, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("ListSessions = %+v, want newer first", list)
	}

	// A new turn moves the older session to the front.
	if _, err := s.AppendTurn(ctx, older.ID, memory.RoleUser, "bump"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	list, _ = s.ListSessions(ctx)
	if list[0].ID != older.ID {
		t.Errorf("ListSessions[0] = %s, want %s", list[0].ID, older.ID)
	}
	if !list[0].UpdatedAt.After(list[0].CreatedAt) {
		t.Errorf("UpdatedAt %v not after CreatedAt %v", list[0].UpdatedAt, list[0].CreatedAt)
	}
}

func TestTimestampsRoundTrip(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()

	at := time.Date(2026, 5, 4, 3, 2, 1, 123456789, time.UTC)
	s.now = func() time.Time { return at }

	sess, _ := s.CreateSession(ctx, "u", "")
	turn, err := s.AppendTurn(ctx, sess.ID, memory.RoleUser, "hi")
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	got, _ := s.GetSession(ctx, sess.ID)
	if !got.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, at)
	}
	turns, _ := s.AllTurns(ctx, sess.ID)
	if len(turns) != 1 || !turns[0].CreatedAt.Equal(turn.CreatedAt) {
		t.Errorf("turns = %+v, want CreatedAt %v", turns, turn.CreatedAt)
	}
}

func TestConcurrentAppend(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "u", "")

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Go(func() {
			if _, err := s.AppendTurn(ctx, sess.ID, memory.RoleUser, fmt.Sprintf("message %d", i)); err != nil {
				t.Errorf("concurrent append: %v", err)
			}
		})
	}
	wg.Wait()

	turns, err := s.AllTurns(ctx, sess.ID)
	if err != nil {
		t.Fatalf("AllTurns: %v", err)
	}
	if len(turns) != 10 {
		t.Errorf("len = %d, want 10", len(turns))
	}
}

func TestRoleConstraint(t *testing.T) {
	s := newTestModule(t).store
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "u", "")

	// Bypass the Go-side check to hit the CHECK constraint.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (session_id, role, text, created_at) VALUES (?, 'tool', 'x', '')`, sess.ID)
	if err == nil {
		t.Error("CHECK constraint accepted role 'tool'")
	}
}

// --- Infrastructure tests ---

func TestWALMode(t *testing.T) {
	m := newTestModule(t)

	var mode string
	if err := m.store.db.QueryRowContext(context.TODO(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("pragma journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestWALDisabled(t *testing.T) {
	off := false
	s, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "x.db"), WAL: &off})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()

	var mode string
	if err := s.db.QueryRowContext(context.TODO(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("pragma journal_mode: %v", err)
	}
	if mode == "wal" {
		t.Error("journal_mode = wal with wal: false")
	}
}

func TestMigrationIdempotent(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	if err := migrate(ctx, m.store.db); err != nil {
		t.Fatalf("second migration: %v", err)
	}
	var version int
	if err := m.store.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != schemaVersion {
		t.Errorf("user_version = %d, want %d", version, schemaVersion)
	}

	sess, err := m.store.CreateSession(ctx, "u", "")
	if err != nil {
		t.Fatalf("create after re-migration: %v", err)
	}
	if _, err := m.store.AppendTurn(ctx, sess.ID, memory.RoleUser, "test"); err != nil {
		t.Fatalf("append after re-migration: %v", err)
	}
}

func TestMigrate_RefusesNewerSchema(t *testing.T) {
	m := newTestModule(t)
	ctx := context.Background()

	if _, err := m.store.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion+1)); err != nil {
		t.Fatal(err)
	}
	if err := migrate(ctx, m.store.db); err == nil {
		t.Fatal("migrate accepted a schema from a newer build")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantErr bool
	}{
		{"default", 0, false},
		{"seconds", 2 * time.Second, false},
		{"negative", -time.Second, true},
		{"sub millisecond", time.Microsecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{BusyTimeout: tt.timeout}
			if err := c.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigResolvePath(t *testing.T) {
	tests := []struct {
		name, path, dataDir, want string
	}{
		{"default", "", "/var/lib/aura", filepath.Join("/var/lib/aura", defaultDBFile)},
		{"relative", "db/chat.db", "/var/lib/aura", filepath.Join("/var/lib/aura", "db/chat.db")},
		{"absolute", "/srv/aura.db", "/var/lib/aura", "/srv/aura.db"},
		{"relative without data dir", "chat.db", "", "chat.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{Path: tt.path}
			c.resolvePath(tt.dataDir)
			if c.Path != tt.want {
				t.Errorf("Path = %q, want %q", c.Path, tt.want)
			}
		})
	}
}

func TestBusyTimeoutApplied(t *testing.T) {
	s, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "x.db"), BusyTimeout: 1500 * time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()

	var ms int
	if err := s.db.QueryRowContext(context.Background(), "PRAGMA busy_timeout").Scan(&ms); err != nil {
		t.Fatalf("pragma busy_timeout: %v", err)
	}
	if ms != 1500 {
		t.Errorf("busy_timeout = %d, want 1500", ms)
	}
}
