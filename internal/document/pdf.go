package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var pdfHeader = []byte("%PDF")

// PDFExtractor extracts text from PDF files with github.com/ledongthuc/pdf.
type PDFExtractor struct {
	limits Limits
	parse  func(data []byte, maxPages int) (string, error)
}

// NewPDFExtractor creates a PDFExtractor enforcing limits.
func NewPDFExtractor(limits Limits) *PDFExtractor {
	return &PDFExtractor{limits: limits, parse: parsePDF}
}

// Compile-time interface check.
var _ Extractor = (*PDFExtractor)(nil)

// Extract validates the upload, parses it under the configured timeout and
// returns its text clamped to MaxExtractedChars.
func (e *PDFExtractor) Extract(ctx context.Context, in Input) (string, error) {
	if err := checkSize(in, e.limits); err != nil {
		return "", err
	}
	if !strings.Contains(strings.ToLower(in.ContentType), "pdf") {
		return "", fmt.Errorf("%w: only PDF files are supported, got %q", ErrInvalidType, in.ContentType)
	}
	if !bytes.HasPrefix(in.Data, pdfHeader) {
		return "", fmt.Errorf("%w: invalid PDF header", ErrInvalidType)
	}

	if e.limits.ParseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.limits.ParseTimeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	// Buffered so an abandoned parse can still finish and exit.
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %v", ErrParseFailed, r)}
			}
		}()
		text, err := e.parse(in.Data, e.limits.MaxPages)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrParseTimeout
		}
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return clampChars(res.text, e.limits.MaxExtractedChars), nil
	}
}

// parsePDF reads every page of data. It rejects encrypted documents and
// documents with more than maxPages pages before extracting any text.
func parsePDF(data []byte, maxPages int) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return "", ErrEncrypted
		}
		return "", fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	if pages := r.NumPage(); maxPages > 0 && pages > maxPages {
		return "", fmt.Errorf("%w: %d pages, limit %d", ErrTooManyPages, pages, maxPages)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return string(text), nil
}
