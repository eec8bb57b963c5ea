// Package memorytest provides a conformance suite for memory.Store
// implementations.
package memorytest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/flemzord/aura/internal/memory"
)

// RunStoreTests exercises the memory.Store contract against stores built by
// newStore. Each subtest gets a fresh store.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) memory.Store) {
	t.Helper()

	t.Run("SessionRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		sess, err := store.CreateSession(ctx, "alice", "groceries")
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		got, err := store.GetSession(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		if got.ID != sess.ID || got.UserID != "alice" || got.Title != "groceries" {
			t.Errorf("GetSession = %+v, want %+v", got, sess)
		}
		if got.Memory != (memory.SessionMemory{}) {
			t.Errorf("new session has memory %+v", got.Memory)
		}
	})

	t.Run("SessionNotFound", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		if _, err := store.GetSession(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, memory.ErrSessionNotFound) {
			t.Errorf("GetSession error = %v, want ErrSessionNotFound", err)
		}
		if _, err := store.AppendTurn(ctx, "00000000-0000-0000-0000-000000000000", memory.RoleUser, "x"); !errors.Is(err, memory.ErrSessionNotFound) {
			t.Errorf("AppendTurn error = %v, want ErrSessionNotFound", err)
		}
		if err := store.SaveMemory(ctx, "00000000-0000-0000-0000-000000000000", memory.SessionMemory{}); !errors.Is(err, memory.ErrSessionNotFound) {
			t.Errorf("SaveMemory error = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("TurnOrdering", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		sess, err := store.CreateSession(ctx, "u", "")
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}

		ids := make([]int64, 0, 6)
		for i := range 6 {
			role := memory.RoleUser
			if i%2 == 1 {
				role = memory.RoleAssistant
			}
			turn, err := store.AppendTurn(ctx, sess.ID, role, fmt.Sprintf("turn %d", i))
			if err != nil {
				t.Fatalf("AppendTurn: %v", err)
			}
			if turn.Role != role || turn.Text != fmt.Sprintf("turn %d", i) {
				t.Errorf("AppendTurn returned %+v", turn)
			}
			if len(ids) > 0 && turn.ID <= ids[len(ids)-1] {
				t.Fatalf("turn ID %d not greater than %d", turn.ID, ids[len(ids)-1])
			}
			ids = append(ids, turn.ID)
		}

		recent, err := store.RecentTurns(ctx, sess.ID, 4)
		if err != nil {
			t.Fatalf("RecentTurns: %v", err)
		}
		if len(recent) != 4 {
			t.Fatalf("RecentTurns returned %d turns, want 4", len(recent))
		}
		for i, turn := range recent {
			if turn.ID != ids[5-i] {
				t.Errorf("RecentTurns[%d].ID = %d, want %d", i, turn.ID, ids[5-i])
			}
		}

		after, err := store.TurnsAfter(ctx, sess.ID, ids[3])
		if err != nil {
			t.Fatalf("TurnsAfter: %v", err)
		}
		if len(after) != 2 || after[0].ID != ids[4] || after[1].ID != ids[5] {
			t.Errorf("TurnsAfter = %+v", after)
		}

		all, err := store.AllTurns(ctx, sess.ID)
		if err != nil {
			t.Fatalf("AllTurns: %v", err)
		}
		if len(all) != 6 || all[0].ID != ids[0] || all[5].ID != ids[5] {
			t.Errorf("AllTurns = %+v", all)
		}
		if zero, _ := store.TurnsAfter(ctx, sess.ID, 0); len(zero) != 6 {
			t.Errorf("TurnsAfter(0) returned %d turns, want 6", len(zero))
		}
	})

	t.Run("SessionsIsolated", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		a, _ := store.CreateSession(ctx, "u", "")
		b, _ := store.CreateSession(ctx, "u", "")

		if _, err := store.AppendTurn(ctx, a.ID, memory.RoleUser, "for a"); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
		turns, err := store.AllTurns(ctx, b.ID)
		if err != nil {
			t.Fatalf("AllTurns: %v", err)
		}
		if len(turns) != 0 {
			t.Errorf("session b sees %d turns of session a", len(turns))
		}

		list, err := store.ListSessions(ctx)
		if err != nil {
			t.Fatalf("ListSessions: %v", err)
		}
		if len(list) != 2 {
			t.Errorf("ListSessions returned %d sessions, want 2", len(list))
		}
	})

	t.Run("SaveMemory", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		sess, _ := store.CreateSession(ctx, "u", "")
		turn, _ := store.AppendTurn(ctx, sess.ID, memory.RoleUser, "hello")

		mem := memory.SessionMemory{JSON: `{"facts":["greets people"]}`, LastCompactedTurnID: turn.ID}
		if err := store.SaveMemory(ctx, sess.ID, mem); err != nil {
			t.Fatalf("SaveMemory: %v", err)
		}
		got, err := store.GetSession(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		if got.Memory != mem {
			t.Errorf("Memory = %+v, want %+v", got.Memory, mem)
		}
	})

	t.Run("InvalidRole", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		sess, _ := store.CreateSession(ctx, "u", "")

		if _, err := store.AppendTurn(ctx, sess.ID, memory.Role("tool"), "x"); !errors.Is(err, memory.ErrInvalidRole) {
			t.Errorf("AppendTurn error = %v, want ErrInvalidRole", err)
		}
	})
}
