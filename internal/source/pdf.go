package source

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/waycore/waykb/internal/chunk"
)

// PageExtractor extracts per-page plain text from a PDF file.
type PageExtractor interface {
	Pages(path string) ([]string, error)
}

// PDFExtractor extracts text with the ledongthuc/pdf reader.
type PDFExtractor struct{}

var _ PageExtractor = PDFExtractor{}

// Pages returns the plain text of every page, in order. Pages that
// cannot be decoded come back empty rather than failing the document.
func (PDFExtractor) Pages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	total := r.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// Document is the cleaned text of a PDF with enough page bookkeeping to
// attribute a chunk back to the page it starts on.
type Document struct {
	// Text is the whole document, each page cleaned individually and
	// pages joined with a blank line.
	Text string

	// pageStarts[i] is the byte offset in Text where page i+1 begins.
	pageStarts []int
}

// pageProbeLen is how much of a chunk's prefix is used to locate it in
// the document text.
const pageProbeLen = 50

// ReadPDF extracts and cleans a PDF into a Document.
func ReadPDF(path string, ex PageExtractor) (*Document, error) {
	raw, err := ex.Pages(path)
	if err != nil {
		return nil, err
	}
	return newDocument(raw), nil
}

func newDocument(rawPages []string) *Document {
	var (
		b      strings.Builder
		starts []int
	)
	for _, raw := range rawPages {
		cleaned := chunk.Clean(raw)
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		starts = append(starts, b.Len())
		b.WriteString(cleaned)
	}
	return &Document{Text: b.String(), pageStarts: starts}
}

// PageFor locates a chunk's first page by searching for its prefix in
// the document text. Unlocatable chunks attribute to page 1.
func (d *Document) PageFor(chunkText string) int {
	if len(d.pageStarts) == 0 {
		return 1
	}
	probe := chunkText
	if len(probe) > pageProbeLen {
		probe = trimToRune(probe, pageProbeLen)
	}
	off := strings.Index(d.Text, probe)
	if off < 0 {
		return 1
	}
	// Last page starting at or before the offset.
	i := sort.Search(len(d.pageStarts), func(i int) bool {
		return d.pageStarts[i] > off
	})
	return i // pages are 1-based; i is the count of starts <= off
}

// trimToRune cuts s to at most n bytes without splitting a rune.
func trimToRune(s string, n int) string {
	for n > 0 && n < len(s) {
		r := s[n]
		if r < 0x80 || r >= 0xC0 {
			break
		}
		n--
	}
	if n >= len(s) {
		return s
	}
	return s[:n]
}
