// Package chunk splits cleaned document text into overlapping,
// size-bounded segments. Segmentation is paragraph-greedy: paragraphs
// are packed into a buffer up to a soft target size, with a fixed
// character overlap carried across chunk boundaries.
package chunk

import (
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Params configures a Chunker. The invariant Overlap < MinSize < TargetSize
// must hold; Validate on the build config enforces it before construction.
type Params struct {
	// TargetSize is the soft maximum chunk size in bytes. A buffer below
	// MinSize may grow past it: the minimum-size invariant takes
	// precedence over the size target.
	TargetSize int

	// Overlap is the number of trailing bytes of an emitted chunk that
	// seed the next buffer. Zero disables overlap.
	Overlap int

	// MinSize is the minimum chunk size. A trailing buffer below it is
	// dropped, not emitted.
	MinSize int
}

// Chunker produces text segments from cleaned document text.
type Chunker struct {
	params Params
}

// New creates a Chunker with the given parameters.
func New(params Params) *Chunker {
	return &Chunker{params: params}
}

var (
	horizontalWS = regexp.MustCompile(`[ \t]+`)
	crlf         = regexp.MustCompile(`\r\n?`)
	excessLines  = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes extracted text: CRLF to LF, runs of spaces and tabs
// to a single space, three or more consecutive newlines to exactly two,
// and leading/trailing whitespace trimmed. Clean is idempotent.
func Clean(text string) string {
	text = crlf.ReplaceAllString(text, "\n")
	text = horizontalWS.ReplaceAllString(text, " ")
	text = excessLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Split returns a lazy, finite sequence of chunks over the given text.
// The text is cleaned first; input shorter than MinSize after cleaning
// yields an empty sequence.
//
// Every emitted chunk except possibly the last has length >= MinSize; a
// buffer is emitted once appending the next paragraph would push it past
// TargetSize. A trailing buffer below MinSize is silently dropped. This
// loses short end-of-document remainders and is the documented policy,
// not an accident; see the boundary tests.
func (c *Chunker) Split(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		text := Clean(text)
		if len(text) < c.params.MinSize {
			return
		}

		var buf string
		for para := range strings.SplitSeq(text, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}

			// The +2 accounts for the paragraph separator.
			if len(buf)+len(para)+2 > c.params.TargetSize && len(buf) >= c.params.MinSize {
				if !yield(buf) {
					return
				}
				if c.params.Overlap > 0 {
					buf = tailBytes(buf, c.params.Overlap) + " " + para
				} else {
					buf = para
				}
				continue
			}

			// Below MinSize the paragraph is appended even past
			// TargetSize: the size cap is soft.
			if buf != "" {
				buf += "\n\n" + para
			} else {
				buf = para
			}
		}

		if len(buf) >= c.params.MinSize {
			yield(buf)
		}
	}
}

// tailBytes returns the suffix of s that is at most n bytes long,
// shortened to the nearest rune boundary so multi-byte characters are
// never split.
func tailBytes(s string, n int) string {
	if n >= len(s) {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
