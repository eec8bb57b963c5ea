// Package document turns uploaded files into plain text for grounding.
// Extraction runs under size, page, character and time ceilings and fails
// with a typed error instead of returning partial text.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Sentinel errors for extraction failures. Apart from context
// cancellation, every error returned by an Extractor wraps one of them.
var (
	ErrInvalidType  = errors.New("document: unsupported or invalid file type")
	ErrTooLarge     = errors.New("document: file exceeds maximum size")
	ErrTooManyPages = errors.New("document: too many pages")
	ErrEncrypted    = errors.New("document: encrypted documents are not supported")
	ErrParseFailed  = errors.New("document: parsing failed")
	ErrParseTimeout = errors.New("document: parsing timed out")
)

// Input is an uploaded document.
type Input struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Extractor returns the plain text of a document.
type Extractor interface {
	Extract(ctx context.Context, in Input) (string, error)
}

// Limits bounds extraction, read from the "document" config section.
// Zero or negative values disable the matching ceiling.
type Limits struct {
	MaxFileSizeMB     int64         `yaml:"max_file_size_mb"`
	MaxPages          int           `yaml:"max_pages"`
	MaxExtractedChars int           `yaml:"max_extracted_chars"`
	ParseTimeout      time.Duration `yaml:"parse_timeout"`
}

// DefaultLimits returns the limits used when the config section is absent.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSizeMB:     25,
		MaxPages:          200,
		MaxExtractedChars: 200_000,
		ParseTimeout:      10 * time.Second,
	}
}

// MaxBytes returns the size ceiling in bytes, or 0 when unlimited.
func (l Limits) MaxBytes() int64 {
	if l.MaxFileSizeMB <= 0 {
		return 0
	}
	return l.MaxFileSizeMB * 1024 * 1024
}

// clampChars cuts text to at most maxChars characters.
func clampChars(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}

// checkSize rejects empty and oversized inputs.
func checkSize(in Input, l Limits) error {
	if len(in.Data) == 0 {
		return fmt.Errorf("%w: empty file", ErrInvalidType)
	}
	if maxBytes := l.MaxBytes(); maxBytes > 0 && int64(len(in.Data)) > maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(in.Data), maxBytes)
	}
	return nil
}
