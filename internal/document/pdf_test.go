package document_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/flemzord/aura/internal/document"
)

// buildPDF writes a minimal uncompressed PDF with one Helvetica text line
// per page and a correct cross-reference table.
func buildPDF(pages ...string) []byte {
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func pdfInput(data []byte) document.Input {
	return document.Input{Filename: "doc.pdf", ContentType: "application/pdf", Data: data}
}

func TestPDFExtractor_ExtractsText(t *testing.T) {
	t.Parallel()

	ext := document.NewPDFExtractor(document.DefaultLimits())
	text, err := ext.Extract(context.Background(), pdfInput(buildPDF("Hello grounding", "Second page")))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "Hello grounding") || !strings.Contains(text, "Second page") {
		t.Errorf("text = %q", text)
	}
}

func TestPDFExtractor_ClampsCharacters(t *testing.T) {
	t.Parallel()

	limits := document.DefaultLimits()
	limits.MaxExtractedChars = 5
	text, err := document.NewPDFExtractor(limits).Extract(context.Background(), pdfInput(buildPDF("Hello grounding")))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if n := len([]rune(text)); n > 5 {
		t.Errorf("text has %d characters, want at most 5: %q", n, text)
	}
}

func TestPDFExtractor_Errors(t *testing.T) {
	t.Parallel()

	oneMB := document.DefaultLimits()
	oneMB.MaxFileSizeMB = 1
	twoPages := document.DefaultLimits()
	twoPages.MaxPages = 2

	big := append([]byte("%PDF-1.4\n"), make([]byte, 1024*1024)...)

	tests := []struct {
		name   string
		limits document.Limits
		in     document.Input
		want   error
	}{
		{"empty", document.DefaultLimits(), pdfInput(nil), document.ErrInvalidType},
		{"too large", oneMB, pdfInput(big), document.ErrTooLarge},
		{"wrong content type", document.DefaultLimits(),
			document.Input{ContentType: "image/png", Data: buildPDF("x")}, document.ErrInvalidType},
		{"missing content type", document.DefaultLimits(),
			document.Input{Data: buildPDF("x")}, document.ErrInvalidType},
		{"bad header", document.DefaultLimits(), pdfInput([]byte("hello world")), document.ErrInvalidType},
		{"too many pages", twoPages, pdfInput(buildPDF("a", "b", "c")), document.ErrTooManyPages},
		{"corrupt body", document.DefaultLimits(), pdfInput([]byte("%PDF-1.4\nthis is not a pdf")), document.ErrParseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			text, err := document.NewPDFExtractor(tt.limits).Extract(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Extract error = %v, want %v", err, tt.want)
			}
			if text != "" {
				t.Errorf("failed extraction returned text %q", text)
			}
		})
	}
}

func TestPDFExtractor_SizeCheckedBeforeType(t *testing.T) {
	t.Parallel()

	limits := document.DefaultLimits()
	limits.MaxFileSizeMB = 1
	in := document.Input{ContentType: "image/png", Data: make([]byte, 1024*1024+1)}
	if _, err := document.NewPDFExtractor(limits).Extract(context.Background(), in); !errors.Is(err, document.ErrTooLarge) {
		t.Errorf("Extract error = %v, want ErrTooLarge", err)
	}
}
