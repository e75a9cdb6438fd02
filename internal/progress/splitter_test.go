package progress

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect() (*Splitter, *[]string) {
	var lines []string
	s := NewSplitter(func(line []byte) {
		lines = append(lines, string(line))
	})
	return s, &lines
}

func TestSplitter_LineSplitAcrossChunks(t *testing.T) {
	s, lines := collect()

	s.Write([]byte("10"))
	assert.Empty(t, *lines)

	s.Write([]byte("0%|█| 1/1\n"))
	assert.Equal(t, []string{"100%|█| 1/1"}, *lines)

	ev := New().Classify((*lines)[0])
	assert.Equal(t, 100.0, ev.Raw)
}

func TestSplitter_Terminators(t *testing.T) {
	s, lines := collect()

	s.Write([]byte("a\r\nb\rc\n"))

	assert.Equal(t, []string{"a", "b", "c"}, *lines)
}

func TestSplitter_CRLFAcrossChunks(t *testing.T) {
	s, lines := collect()

	s.Write([]byte("first\r"))
	s.Write([]byte("\nsecond\n"))

	assert.Equal(t, []string{"first", "second"}, *lines)
}

func TestSplitter_TqdmRedraws(t *testing.T) {
	s, lines := collect()

	s.Write([]byte("\r  0%|          | 0/3\r 33%|███▎      | 1/3\r 67%|██████▋   | 2/3"))
	s.Flush()

	assert.Len(t, *lines, 3)
	assert.True(t, strings.HasPrefix((*lines)[2], " 67%"))
}

func TestSplitter_SkipsBlankLines(t *testing.T) {
	s, lines := collect()

	s.Write([]byte("\n\n   \nreal\n\t\n"))

	assert.Equal(t, []string{"real"}, *lines)
}

func TestSplitter_FlushEmitsPartialLine(t *testing.T) {
	s, lines := collect()

	s.Write([]byte("no newline at end"))
	s.Flush()
	s.Flush()

	assert.Equal(t, []string{"no newline at end"}, *lines)
}

func TestSplitter_LongLinesAreChunked(t *testing.T) {
	s, lines := collect()

	s.Write([]byte(strings.Repeat("x", MaxLineLength+10)))
	s.Flush()

	assert.Len(t, *lines, 2)
	assert.Len(t, (*lines)[0], MaxLineLength)
}

func TestSplitter_LongLineKeepsCharactersWhole(t *testing.T) {
	s, lines := collect()

	s.Write([]byte(strings.Repeat("x", MaxLineLength-1) + "译文\n"))

	require.Len(t, *lines, 2)
	assert.Equal(t, strings.Repeat("x", MaxLineLength-1), (*lines)[0])
	assert.Equal(t, "译文", (*lines)[1])
	for _, l := range *lines {
		assert.True(t, utf8.ValidString(l))
	}
}
