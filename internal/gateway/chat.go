package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/flemzord/aura/internal/chat"
	"github.com/flemzord/aura/internal/document"
	"github.com/flemzord/aura/internal/security"
)

// maxChatBody bounds the JSON body of POST /api/chat.
const maxChatBody = 1 << 20

// chatRequest is the JSON body of POST /api/chat.
type chatRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

// handleChat runs one text-only turn.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := decodeJSONBody(w, r, maxChatBody, &req); err != nil {
			writeError(w, err)
			return
		}
		g.runTurn(w, r, chat.Request{
			SessionID: req.SessionID,
			UserID:    req.UserID,
			Message:   req.Message,
		}, security.BucketChat)
	}
}

// handleChatDocument runs a turn grounded on an uploaded file. Form
// fields: session_id, user_id, message and file.
func (g *Gateway) handleChatDocument() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, g.config.maxUploadBytes())
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			writeError(w, bodyError(err))
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, errMissingFile)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, bodyError(err))
			return
		}

		in := &document.Input{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
		g.audit.Log(security.AuditEvent{
			Type:   security.EventDocumentUpload,
			UserID: r.FormValue("user_id"),
			Detail: in.Filename,
			Metadata: map[string]string{
				"content_type": in.ContentType,
				"bytes":        strconv.Itoa(len(data)),
			},
		})

		g.runTurn(w, r, chat.Request{
			SessionID: r.FormValue("session_id"),
			UserID:    r.FormValue("user_id"),
			Message:   r.FormValue("message"),
			Document:  in,
		}, security.BucketUpload)
	}
}

// runTurn applies the rate limit for bucket, runs req and writes the
// response.
func (g *Gateway) runTurn(w http.ResponseWriter, r *http.Request, req chat.Request, bucket string) {
	if g.chat == nil {
		writeError(w, errChatUnavailable)
		return
	}
	if err := errors.Join(
		security.ValidateIdentifier("session_id", req.SessionID),
		security.ValidateIdentifier("user_id", req.UserID),
	); err != nil {
		writeError(w, err)
		return
	}
	if err := g.limiter.Allow(bucket); err != nil {
		auditRequest(g.audit, r, security.EventRateLimit, bucket)
		writeError(w, err)
		return
	}

	resp, err := g.chat.Chat(r.Context(), req)
	if err != nil {
		status, code, _ := classify(err)
		if status >= http.StatusInternalServerError {
			g.logger.Error("chat turn failed", "session", req.SessionID, "code", code, "error", err)
		} else {
			g.logger.Debug("chat turn rejected", "session", req.SessionID, "code", code, "error", err)
		}
		writeError(w, err)
		return
	}

	if resp.NewSession {
		g.audit.Log(security.AuditEvent{Type: security.EventSessionCreate, SessionID: resp.SessionID, UserID: req.UserID})
	}
	g.audit.Log(security.AuditEvent{
		Type:      security.EventChatTurn,
		SessionID: resp.SessionID,
		UserID:    req.UserID,
		Metadata:  map[string]string{"grounded": strconv.FormatBool(resp.Grounding != nil)},
	})
	if resp.MemoryUpdated {
		g.audit.Log(security.AuditEvent{Type: security.EventMemoryUpdate, SessionID: resp.SessionID})
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeJSONBody reads at most limit bytes, rejects deeply nested input
// and decodes into v.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return bodyError(err)
	}
	if err := security.ValidateJSONDepth(body, 0); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

// bodyError classifies a request body read failure.
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	return fmt.Errorf("%w: %w", errBadRequest, err)
}
