// Package chat orchestrates a conversation turn: optional document
// grounding, bounded context assembly, the model call, persistence and
// periodic memory compaction.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ctxengine "github.com/flemzord/aura/internal/context"
	"github.com/flemzord/aura/internal/document"
	"github.com/flemzord/aura/internal/grounding"
	"github.com/flemzord/aura/internal/memory"
	"github.com/flemzord/aura/internal/provider"
	"github.com/flemzord/aura/internal/telemetry"
)

// ServiceName is the AppContext service key of the chat Service.
const ServiceName = "chat.service"

const titleMaxChars = 60

// Sentinel errors.
var (
	ErrBlankMessage = errors.New("chat: message must not be blank")
	ErrNoExtractor  = errors.New("chat: document uploads are not enabled")
)

// Request is one user turn.
type Request struct {
	// SessionID selects the session; empty starts a new one.
	SessionID string
	// UserID owns new sessions and, when set, must own existing ones.
	UserID   string
	Message  string
	Document *document.Input
}

// Grounding summarizes how an attached document was used.
type Grounding struct {
	DirectInject bool `json:"direct_inject"`
	TotalChunks  int  `json:"total_chunks"`
	Selected     int  `json:"selected_chunks"`
}

// Response is the outcome of a successful turn.
type Response struct {
	SessionID       string     `json:"session_id"`
	UserTurnID      int64      `json:"user_message_id"`
	AssistantTurnID int64      `json:"assistant_message_id"`
	Reply           string     `json:"assistant_reply"`
	Timestamp       time.Time  `json:"timestamp"`
	NewSession      bool       `json:"new_session"`
	MemoryUpdated   bool       `json:"memory_updated"`
	Grounding       *Grounding `json:"grounding,omitempty"`
}

// Config holds the chat-level settings.
type Config struct {
	Context   ctxengine.ContextConfig
	Grounding grounding.Config
}

// Service runs chat turns. It is safe for concurrent use; turns of the
// same session are serialized.
type Service struct {
	store     memory.Store
	model     provider.Provider
	compactor *memory.Compactor
	builder   *ctxengine.Builder
	extractor document.Extractor
	grounding grounding.Config
	threshold int

	lanes   *LaneLock
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records turn, prompt and compaction metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithExtractor enables document uploads.
func WithExtractor(e document.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithCompactor overrides the memory compactor, typically to route
// compaction to the internal provider role.
func WithCompactor(c *memory.Compactor) Option {
	return func(s *Service) { s.compactor = c }
}

// NewService creates a Service answering with model and persisting to
// store. Without WithCompactor, compaction also uses model.
func NewService(store memory.Store, model provider.Provider, cfg Config, opts ...Option) *Service {
	ctxCfg := cfg.Context.WithDefaults()
	s := &Service{
		store:     store,
		model:     model,
		builder:   ctxengine.NewBuilder(ctxCfg, store),
		grounding: cfg.Grounding.WithDefaults(),
		threshold: ctxCfg.MemoryUpdateEveryTurns,
		lanes:     NewLaneLock(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.compactor == nil {
		s.compactor = memory.NewCompactor(model,
			memory.WithCompactorLogger(s.logger),
			memory.WithCompactionTimeout(ctxCfg.CompactionTimeout),
		)
	}
	return s
}

// Chat runs one turn.
//
// Document extraction happens first so a rejected upload leaves no trace.
// The session (when new) and both turns are persisted once the model has
// replied; a failed model call persists nothing. Memory compaction runs
// afterwards and never fails the turn.
func (s *Service) Chat(ctx context.Context, req Request) (resp Response, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "chat.turn")
	defer func() {
		s.metrics.ObserveTurn(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if strings.TrimSpace(req.Message) == "" {
		return Response{}, ErrBlankMessage
	}

	var grounded *grounding.Result
	if req.Document != nil {
		res, err := s.ground(ctx, req.Message, *req.Document)
		if err != nil {
			return Response{}, err
		}
		grounded = &res
	}

	// A new session is only created once the model has replied, so a
	// failed first turn leaves nothing behind.
	isNew := req.SessionID == ""
	session := memory.Session{UserID: req.UserID}
	if !isNew {
		if session, err = s.Session(ctx, req.SessionID, req.UserID); err != nil {
			return Response{}, err
		}
		release := s.lanes.Acquire(session.ID)
		defer release()
		// Re-read under the lane so a compaction that just finished is visible.
		if session, err = s.store.GetSession(ctx, session.ID); err != nil {
			return Response{}, fmt.Errorf("chat: reloading session: %w", err)
		}
	}

	msgs, stats, err := s.builder.Build(ctx, session, memory.Turn{Role: memory.RoleUser, Text: req.Message})
	if err != nil {
		return Response{}, err
	}
	if grounded != nil {
		overrideLastUserMessage(msgs, grounded.Prompt)
	}
	s.metrics.ObservePrompt(provider.TotalChars(msgs), stats.DroppedTurns > 0 || stats.MemoryDropped || stats.Truncated)
	s.logger.Debug("context assembled",
		"session", session.ID,
		"messages", stats.Messages,
		"chars", stats.TotalChars,
		"dropped_turns", stats.DroppedTurns,
		"memory_dropped", stats.MemoryDropped,
		"truncated", stats.Truncated,
	)

	reply, err := s.complete(ctx, msgs)
	if err != nil {
		return Response{}, err
	}

	if isNew {
		if session, err = s.store.CreateSession(ctx, req.UserID, titleFrom(req.Message)); err != nil {
			return Response{}, fmt.Errorf("chat: creating session: %w", err)
		}
		release := s.lanes.Acquire(session.ID)
		defer release()
	}
	span.SetAttributes(attribute.String("session.id", session.ID), attribute.Bool("session.new", isNew))

	userTurn, err := s.store.AppendTurn(ctx, session.ID, memory.RoleUser, req.Message)
	if err != nil {
		return Response{}, fmt.Errorf("chat: saving user turn: %w", err)
	}
	botTurn, err := s.store.AppendTurn(ctx, session.ID, memory.RoleAssistant, reply)
	if err != nil {
		return Response{}, fmt.Errorf("chat: saving assistant turn: %w", err)
	}

	updated := s.maybeCompact(ctx, session.ID)

	resp = Response{
		SessionID:       session.ID,
		UserTurnID:      userTurn.ID,
		AssistantTurnID: botTurn.ID,
		Reply:           reply,
		Timestamp:       botTurn.CreatedAt,
		NewSession:      isNew,
		MemoryUpdated:   updated,
	}
	if grounded != nil {
		resp.Grounding = &Grounding{
			DirectInject: grounded.DirectInject,
			TotalChunks:  grounded.TotalChunks,
			Selected:     len(grounded.Selected),
		}
	}
	return resp, nil
}

// Messages returns the transcript of a session, oldest first.
func (s *Service) Messages(ctx context.Context, sessionID, userID string) ([]memory.Turn, error) {
	if _, err := s.Session(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.store.AllTurns(ctx, sessionID)
}

// Session returns a session, enforcing ownership when userID is set.
func (s *Service) Session(ctx context.Context, sessionID, userID string) (memory.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return memory.Session{}, err
	}
	if userID != "" && sess.UserID != userID {
		return memory.Session{}, fmt.Errorf("%w: %s", memory.ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

// Sessions lists sessions, restricted to userID when set.
func (s *Service) Sessions(ctx context.Context, userID string) ([]memory.Session, error) {
	all, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return all, nil
	}
	out := all[:0:0]
	for _, sess := range all {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out, nil
}

// CompactPending compacts sessionID if enough turns accumulated since the
// last compaction. It retries batches whose previous compaction failed.
func (s *Service) CompactPending(ctx context.Context, sessionID string) (bool, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return false, err
	}
	release := s.lanes.Acquire(sessionID)
	defer release()
	return s.maybeCompact(ctx, sessionID), nil
}

// ground extracts the document text and selects what to show the model.
func (s *Service) ground(ctx context.Context, message string, in document.Input) (grounding.Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "chat.ground", trace.WithAttributes(
		attribute.String("document.content_type", in.ContentType),
		attribute.Int("document.bytes", len(in.Data)),
	))
	defer span.End()

	if s.extractor == nil {
		return grounding.Result{}, ErrNoExtractor
	}
	text, err := s.extractor.Extract(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return grounding.Result{}, err
	}

	res := grounding.Ground(s.grounding, message, text)
	span.SetAttributes(
		attribute.Bool("grounding.direct_inject", res.DirectInject),
		attribute.Int("grounding.total_chunks", res.TotalChunks),
		attribute.Int("grounding.selected", len(res.Selected)),
	)
	s.metrics.ObserveGrounding(res.TotalChunks)
	s.logger.Info("document grounded",
		"file", in.Filename,
		"chars", len([]rune(text)),
		"direct_inject", res.DirectInject,
		"chunks", res.TotalChunks,
		"selected", len(res.Selected),
	)
	return res, nil
}

// complete calls the chat model.
func (s *Service) complete(ctx context.Context, msgs []provider.LLMMessage) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "chat.model", trace.WithAttributes(
		attribute.String("model", s.model.ModelName()),
		attribute.Int("messages", len(msgs)),
	))
	defer span.End()

	start := time.Now()
	resp, err := s.model.Complete(ctx, provider.CompletionRequest{Messages: msgs})
	s.metrics.ObserveModelCall(string(provider.RolePrimary), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		s.logger.Error("model call failed", "model", s.model.ModelName(), "error", err)
		return "", fmt.Errorf("chat: model call: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("chat: model call: %w", provider.ErrEmptyResponse)
	}
	return resp.Content, nil
}

// maybeCompact folds turns since the last compaction into the session
// memory once they reach the threshold. Failures are logged and leave
// memory untouched; the caller must hold the session lane.
func (s *Service) maybeCompact(ctx context.Context, sessionID string) bool {
	if s.threshold <= 0 {
		return false
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		s.logger.Warn("compaction skipped: loading session", "session", sessionID, "error", err)
		return false
	}
	pending, err := s.store.TurnsAfter(ctx, sessionID, sess.Memory.LastCompactedTurnID)
	if err != nil {
		s.logger.Warn("compaction skipped: loading turns", "session", sessionID, "error", err)
		return false
	}
	if !memory.ShouldCompact(len(pending), s.threshold) {
		return false
	}

	ctx, span := telemetry.Tracer().Start(ctx, "memory.compact", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("turns", len(pending)),
	))
	defer span.End()

	start := time.Now()
	res := s.compactor.UpdateMemory(ctx, sess.Memory, pending)
	s.metrics.ObserveModelCall(string(provider.RoleInternal), time.Since(start))
	s.metrics.ObserveCompaction(res.Updated)
	span.SetAttributes(attribute.Bool("updated", res.Updated))
	if !res.Updated {
		return false
	}

	mem := memory.SessionMemory{JSON: res.MemoryJSON, LastCompactedTurnID: pending[len(pending)-1].ID}
	if err := s.store.SaveMemory(ctx, sessionID, mem); err != nil {
		s.logger.Warn("compaction result not saved", "session", sessionID, "error", err)
		return false
	}
	s.logger.Info("session memory updated", "session", sessionID, "turns", len(pending))
	return true
}

// overrideLastUserMessage replaces the content of the final user message.
func overrideLastUserMessage(msgs []provider.LLMMessage, content string) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == provider.MessageRoleUser {
			msgs[i].Content = content
			return
		}
	}
}

// titleFrom derives a session title from the first line of message.
func titleFrom(message string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	runes := []rune(strings.TrimSpace(line))
	if len(runes) > titleMaxChars {
		return string(runes[:titleMaxChars]) + "…"
	}
	return string(runes)
}
