package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(c *Chunker, text string) []string {
	var out []string
	for s := range c.Split(text) {
		out = append(out, s)
	}
	return out
}

func TestClean_CollapsesWhitespace(t *testing.T) {
	in := "a  \t b\r\ncc\n\n\n\n\ndd  "
	got := Clean(in)

	assert.Equal(t, "a b\ncc\n\ndd", got)
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"plain text",
		"a  b\t\tc",
		"para one\n\n\n\npara two\r\npara three",
		"  leading and trailing  \n\n",
	}

	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "Clean must be a no-op on cleaned text: %q", in)
	}
}

func TestChunker_Split_ShortInputYieldsNothing(t *testing.T) {
	c := New(Params{TargetSize: 512, Overlap: 64, MinSize: 100})

	chunks := collect(c, "too short to matter")
	assert.Empty(t, chunks)
}

func TestChunker_Split_SingleChunkWhenUnderTarget(t *testing.T) {
	c := New(Params{TargetSize: 512, Overlap: 64, MinSize: 100})

	text := strings.Repeat("survival knowledge ", 10) // ~190 chars, one paragraph
	chunks := collect(c, text)

	require.Len(t, chunks, 1)
	assert.GreaterOrEqual(t, len(chunks[0]), 100)
}

func TestChunker_Split_SizeBounds(t *testing.T) {
	const (
		target = 200
		overlap = 20
		minSize = 50
	)
	c := New(Params{TargetSize: target, Overlap: overlap, MinSize: minSize})

	// 40 paragraphs of ~60 chars each.
	var paras []string
	for i := 0; i < 40; i++ {
		paras = append(paras, fmt.Sprintf("paragraph %02d "+strings.Repeat("x", 45), i))
	}
	text := strings.Join(paras, "\n\n")

	chunks := collect(c, text)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, len(ch), minSize, "interior chunk %d below min", i)
			assert.Less(t, len(ch), target+minSize, "interior chunk %d above soft bound", i)
		}
	}
	// The final chunk, when emitted, is never below the minimum.
	assert.GreaterOrEqual(t, len(chunks[len(chunks)-1]), minSize)
}

func TestChunker_Split_ParagraphOrderPreserved(t *testing.T) {
	c := New(Params{TargetSize: 150, Overlap: 10, MinSize: 40})

	var paras []string
	for i := 0; i < 12; i++ {
		paras = append(paras, fmt.Sprintf("marker%02d "+strings.Repeat("y", 50), i))
	}
	text := strings.Join(paras, "\n\n")

	joined := strings.Join(collect(c, text), "\n")

	// Every marker appears, in input order.
	last := -1
	for i := 0; i < 12; i++ {
		pos := strings.Index(joined, fmt.Sprintf("marker%02d", i))
		require.GreaterOrEqual(t, pos, 0, "marker%02d missing", i)
		assert.Greater(t, pos, last, "marker%02d out of order", i)
		last = pos
	}
}

func TestChunker_Split_OverlapSeedsNextChunk(t *testing.T) {
	c := New(Params{TargetSize: 120, Overlap: 15, MinSize: 40})

	paras := []string{
		strings.Repeat("a", 100),
		strings.Repeat("b", 100),
	}
	chunks := collect(c, strings.Join(paras, "\n\n"))
	require.Len(t, chunks, 2)

	// Second chunk starts with the last 15 characters of the first.
	tail := chunks[0][len(chunks[0])-15:]
	assert.True(t, strings.HasPrefix(chunks[1], tail+" "),
		"second chunk should be seeded with the previous tail")
}

func TestChunker_Split_ZeroOverlapStartsFresh(t *testing.T) {
	c := New(Params{TargetSize: 120, Overlap: 0, MinSize: 40})

	paras := []string{
		strings.Repeat("a", 100),
		strings.Repeat("b", 100),
	}
	chunks := collect(c, strings.Join(paras, "\n\n"))
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("b", 100), chunks[1])
}

// The trailing-remainder drop is deliberate: a final buffer under the
// minimum size is discarded rather than merged into the previous chunk.
func TestChunker_Split_TrailingRemainderDropped(t *testing.T) {
	c := New(Params{TargetSize: 120, Overlap: 0, MinSize: 50})

	paras := []string{
		strings.Repeat("a", 110), // emitted
		"tiny tail paragraph",    // 19 chars, below MinSize: dropped
	}
	chunks := collect(c, strings.Join(paras, "\n\n"))

	require.Len(t, chunks, 1)
	assert.NotContains(t, chunks[0], "tiny tail")
}

func TestChunker_Split_SoftCapBelowMinSize(t *testing.T) {
	// A buffer under MinSize absorbs the next paragraph even when that
	// pushes it past TargetSize.
	c := New(Params{TargetSize: 100, Overlap: 0, MinSize: 80})

	paras := []string{
		strings.Repeat("a", 60), // below MinSize, cannot be emitted
		strings.Repeat("b", 60), // appended anyway
	}
	chunks := collect(c, strings.Join(paras, "\n\n"))

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], strings.Repeat("a", 60))
	assert.Contains(t, chunks[0], strings.Repeat("b", 60))
}

func TestChunker_Split_LazyStopsEarly(t *testing.T) {
	c := New(Params{TargetSize: 100, Overlap: 0, MinSize: 30})

	var paras []string
	for i := 0; i < 20; i++ {
		paras = append(paras, strings.Repeat("z", 90))
	}

	count := 0
	for range c.Split(strings.Join(paras, "\n\n")) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestTitleFromChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "first meaningful line",
			text: "Fire Starting Basics\nRub two sticks together.",
			want: "Fire Starting Basics",
		},
		{
			name: "skips short lines",
			text: "ok\nIntro\nBuilding a Shelter in Winter",
			want: "Building a Shelter in Winter",
		},
		{
			name: "skips page numbers",
			text: "1234567890\nNavigation by the Stars",
			// a bare number line is skipped even when long enough
			want: "Navigation by the Stars",
		},
		{
			name: "skips page prefix",
			text: "page 41241\nReading Topographic Maps",
			want: "Reading Topographic Maps",
		},
		{
			name: "nothing qualifies",
			text: "a\nbb\n77",
			want: UntitledEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleFromChunk(tt.text))
		})
	}
}

func TestTitleFromChunk_TruncatesLongLines(t *testing.T) {
	line := strings.Repeat("long title ", 20)
	got := TitleFromChunk(line)

	assert.Len(t, got, 100)
	assert.True(t, strings.HasSuffix(got, "..."))
}
