package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/aura/internal/memory"
)

// sessionJSON is a serializable session summary.
type sessionJSON struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Title     string    `json:"title"`
	HasMemory bool      `json:"has_memory"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSessionJSON(s memory.Session) sessionJSON {
	return sessionJSON{
		ID:        s.ID,
		UserID:    s.UserID,
		Title:     s.Title,
		HasMemory: s.Memory.JSON != "",
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// messageJSON is one stored turn.
type messageJSON struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// memoryJSON is the compacted memory of a session. Memory is null until
// the first successful compaction.
type memoryJSON struct {
	SessionID           string          `json:"session_id"`
	Memory              json.RawMessage `json:"memory"`
	LastCompactedTurnID int64           `json:"last_compacted_turn_id,omitempty"`
}

// userScope returns the user a read is restricted to. An empty scope is
// an administrative read across users.
func userScope(r *http.Request) string {
	return r.URL.Query().Get("user_id")
}

// handleListSessions lists sessions, most recently updated first.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.chat == nil {
			writeError(w, errChatUnavailable)
			return
		}
		sessions, err := g.chat.Sessions(r.Context(), userScope(r))
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]sessionJSON, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, toSessionJSON(s))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGetSession returns one session summary.
func (g *Gateway) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.chat == nil {
			writeError(w, errChatUnavailable)
			return
		}
		sess, err := g.chat.Session(r.Context(), chi.URLParam(r, "id"), userScope(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionJSON(sess))
	}
}

// handleListMessages returns the transcript, oldest first.
func (g *Gateway) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.chat == nil {
			writeError(w, errChatUnavailable)
			return
		}
		turns, err := g.chat.Messages(r.Context(), chi.URLParam(r, "id"), userScope(r))
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]messageJSON, 0, len(turns))
		for _, t := range turns {
			out = append(out, messageJSON{ID: t.ID, Role: string(t.Role), Content: t.Text, CreatedAt: t.CreatedAt})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleGetMemory returns the session memory document.
func (g *Gateway) handleGetMemory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.chat == nil {
			writeError(w, errChatUnavailable)
			return
		}
		sess, err := g.chat.Session(r.Context(), chi.URLParam(r, "id"), userScope(r))
		if err != nil {
			writeError(w, err)
			return
		}
		resp := memoryJSON{SessionID: sess.ID, LastCompactedTurnID: sess.Memory.LastCompactedTurnID}
		if sess.Memory.JSON != "" {
			resp.Memory = json.RawMessage(sess.Memory.JSON)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleCompact compacts pending turns now instead of waiting for the
// next turn or the cron sweep.
func (g *Gateway) handleCompact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.chat == nil {
			writeError(w, errChatUnavailable)
			return
		}
		id := chi.URLParam(r, "id")
		if _, err := g.chat.Session(r.Context(), id, userScope(r)); err != nil {
			writeError(w, err)
			return
		}
		updated, err := g.chat.CompactPending(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "updated": updated})
	}
}
