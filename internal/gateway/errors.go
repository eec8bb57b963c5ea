package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/flemzord/aura/internal/chat"
	"github.com/flemzord/aura/internal/document"
	"github.com/flemzord/aura/internal/memory"
	"github.com/flemzord/aura/internal/provider"
	"github.com/flemzord/aura/internal/security"
)

// Gateway-level request errors.
var (
	errUnauthorized    = errors.New("unauthorized")
	errBadRequest      = errors.New("malformed request")
	errMissingFile     = errors.New("multipart field \"file\" is required")
	errBodyTooLarge    = errors.New("request body too large")
	errChatUnavailable = errors.New("chat service not available")
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// errorMapping maps a sentinel to its HTTP status and stable error code.
type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is matched in order with errors.Is.
var errorMappings = []errorMapping{
	{errUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{security.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{security.ErrInvalidJSON, http.StatusBadRequest, "bad_request"},
	{security.ErrJSONTooDeep, http.StatusBadRequest, "bad_request"},
	{security.ErrInvalidIdentifier, http.StatusBadRequest, "invalid_identifier"},
	{errMissingFile, http.StatusBadRequest, "bad_request"},
	{errBodyTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
	{chat.ErrBlankMessage, http.StatusBadRequest, "blank_message"},
	{chat.ErrNoExtractor, http.StatusNotImplemented, "uploads_disabled"},
	{memory.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{document.ErrInvalidType, http.StatusBadRequest, "invalid_file_type"},
	{document.ErrTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
	{document.ErrTooManyPages, http.StatusUnprocessableEntity, "too_many_pages"},
	{document.ErrEncrypted, http.StatusUnprocessableEntity, "encrypted_document"},
	{document.ErrParseFailed, http.StatusUnprocessableEntity, "parse_failed"},
	{document.ErrParseTimeout, http.StatusUnprocessableEntity, "parse_timeout"},
	{errChatUnavailable, http.StatusServiceUnavailable, "unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
	{provider.ErrRateLimit, http.StatusBadGateway, "model_unavailable"},
	{provider.ErrProviderDown, http.StatusBadGateway, "model_unavailable"},
	{provider.ErrAllProviders, http.StatusBadGateway, "model_unavailable"},
	{provider.ErrNoProvider, http.StatusBadGateway, "model_unavailable"},
	{provider.ErrAuthentication, http.StatusBadGateway, "model_unavailable"},
	{provider.ErrEmptyResponse, http.StatusBadGateway, "model_empty_reply"},
}

// classify returns the status and code for err. Unknown errors are 500s
// and their text is not exposed.
func classify(err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, err.Error()
		}
	}
	return http.StatusInternalServerError, "internal_error", "internal error"
}

// writeError replies with the JSON error body for err. Rate limit
// rejections carry a Retry-After header.
func writeError(w http.ResponseWriter, err error) {
	status, code, msg := classify(err)
	var le *security.LimitError
	if errors.As(err, &le) {
		w.Header().Set("Retry-After", strconv.Itoa(le.RetryAfterSeconds()))
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg, Timestamp: time.Now().UTC()})
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
