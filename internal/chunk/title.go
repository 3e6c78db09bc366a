package chunk

import (
	"regexp"
	"strings"
)

const (
	// titleMaxLength is the longest title returned by TitleFromChunk;
	// longer lines are truncated with an ellipsis marker.
	titleMaxLength = 100

	// titleMinLineLength is the shortest line considered a title.
	titleMinLineLength = 10

	// UntitledEntry is the placeholder when no line qualifies.
	UntitledEntry = "Untitled Entry"
)

// pageNumberPattern matches lines that are bare page numbers,
// optionally prefixed with "page".
var pageNumberPattern = regexp.MustCompile(`^(page\s+)?\d+$`)

// TitleFromChunk derives a title from the first meaningful line of a
// chunk. Lines under 10 characters or matching a bare page-number
// pattern are skipped; the first qualifying line is truncated to 100
// characters with "..." if needed.
func TitleFromChunk(text string) string {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if len(line) < titleMinLineLength {
			continue
		}
		if pageNumberPattern.MatchString(strings.ToLower(line)) {
			continue
		}
		if len(line) > titleMaxLength {
			return tailSafeTruncate(line, titleMaxLength-3) + "..."
		}
		return line
	}
	return UntitledEntry
}

// tailSafeTruncate cuts s to at most n bytes without splitting a rune.
func tailSafeTruncate(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
