package ollama

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flemzord/aura/internal/provider"
)

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream"`
	Options   *chatOptions  `json:"options,omitempty"`
	KeepAlive string        `json:"keep_alive,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumCtx      int      `json:"num_ctx,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Message         *chatMessage `json:"message"`
	Done            bool         `json:"done"`
	DoneReason      string       `json:"done_reason"`
	PromptEvalCount int          `json:"prompt_eval_count"`
	EvalCount       int          `json:"eval_count"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// has reports whether model is listed. A model configured without a tag
// matches its ":latest" entry.
func (t tagsResponse) has(model string) bool {
	if !strings.Contains(model, ":") {
		model += ":latest"
	}
	for _, m := range t.Models {
		name := m.Name
		if !strings.Contains(name, ":") {
			name += ":latest"
		}
		if name == model {
			return true
		}
	}
	return false
}

// newChatRequest builds a non-streaming request. Request values win over
// the configured options; options is omitted when nothing is set.
func newChatRequest(cfg Config, req provider.CompletionRequest) chatRequest {
	out := chatRequest{
		Model:     cfg.Model,
		Messages:  make([]chatMessage, 0, len(req.Messages)),
		KeepAlive: cfg.KeepAlive,
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	opts := chatOptions{Temperature: cfg.Temperature, NumCtx: cfg.NumCtx, NumPredict: req.MaxTokens}
	if req.Temperature != nil {
		opts.Temperature = req.Temperature
	}
	if opts != (chatOptions{}) {
		out.Options = &opts
	}
	return out
}

// toProvider extracts the assistant reply. A missing message or blank
// content is provider.ErrEmptyResponse.
func (r chatResponse) toProvider() (provider.CompletionResponse, error) {
	if r.Message == nil || strings.TrimSpace(r.Message.Content) == "" {
		return provider.CompletionResponse{}, fmt.Errorf("%w: done_reason %q", provider.ErrEmptyResponse, r.DoneReason)
	}
	return provider.CompletionResponse{
		Content: r.Message.Content,
		Usage: provider.TokenUsage{
			PromptTokens:     r.PromptEvalCount,
			CompletionTokens: r.EvalCount,
			TotalTokens:      r.PromptEvalCount + r.EvalCount,
		},
	}, nil
}

// decodeError reads Ollama's {"error": "..."} body.
func decodeError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}
