package document

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

type route struct {
	match string
	ext   Extractor
}

// Mux dispatches an upload to the first Extractor whose pattern is
// contained in the lower-cased content type.
type Mux struct {
	routes []route
}

// NewMux returns a Mux serving PDF, plain text and markdown uploads.
func NewMux(limits Limits) *Mux {
	m := &Mux{}
	m.Handle("pdf", NewPDFExtractor(limits))
	m.Handle("text/plain", NewTextExtractor(limits))
	m.Handle("text/markdown", NewTextExtractor(limits))
	return m
}

// Handle registers ext for content types containing match.
func (m *Mux) Handle(match string, ext Extractor) {
	m.routes = append(m.routes, route{match: strings.ToLower(match), ext: ext})
}

// Compile-time interface check.
var _ Extractor = (*Mux)(nil)

// Extract routes in by content type. A missing or generic content type is
// inferred from the file extension.
func (m *Mux) Extract(ctx context.Context, in Input) (string, error) {
	ct := strings.ToLower(in.ContentType)
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(in.Filename))); byExt != "" {
			ct = strings.ToLower(byExt)
			in.ContentType = byExt
		}
	}

	for _, r := range m.routes {
		if strings.Contains(ct, r.match) {
			return r.ext.Extract(ctx, in)
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, in.ContentType)
}
