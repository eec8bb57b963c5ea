package document

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// TextExtractor accepts plain text and markdown uploads.
type TextExtractor struct {
	limits Limits
}

// NewTextExtractor creates a TextExtractor enforcing the size and
// character limits.
func NewTextExtractor(limits Limits) *TextExtractor {
	return &TextExtractor{limits: limits}
}

// Compile-time interface check.
var _ Extractor = (*TextExtractor)(nil)

// Extract returns the upload as text. Content that is not valid UTF-8 is
// rejected as an invalid type.
func (e *TextExtractor) Extract(_ context.Context, in Input) (string, error) {
	if err := checkSize(in, e.limits); err != nil {
		return "", err
	}
	if !isTextType(in.ContentType) {
		return "", fmt.Errorf("%w: expected text content, got %q", ErrInvalidType, in.ContentType)
	}
	if !utf8.Valid(in.Data) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidType)
	}
	return clampChars(string(in.Data), e.limits.MaxExtractedChars), nil
}

func isTextType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/plain") || strings.HasPrefix(ct, "text/markdown")
}
