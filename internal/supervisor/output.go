package supervisor

import (
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"

	"pdf-translator/internal/progress"
	"pdf-translator/internal/types"
)

// DecodeLine converts raw worker output to a string. Python on Chinese
// Windows writes GBK when PYTHONIOENCODING is ignored, so a line whose
// invalid bytes mostly pair up as GBK characters is decoded as GBK. Any
// other invalid byte becomes a replacement character and the rest of the
// line stays UTF-8.
func DecodeLine(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	if looksGBK(b) {
		if out, err := simplifiedchinese.GBK.NewDecoder().Bytes(b); err == nil && utf8.Valid(out) {
			return string(out)
		}
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// looksGBK compares the multi-byte UTF-8 characters in b with the invalid
// sequences that form a GBK lead/trail pair.
func looksGBK(b []byte) bool {
	var runes, pairs int
	for i := 0; i < len(b); {
		if b[i] < utf8.RuneSelf {
			i++
			continue
		}
		if r, size := utf8.DecodeRune(b[i:]); r != utf8.RuneError || size > 1 {
			runes++
			i += size
			continue
		}
		if i+1 < len(b) && b[i] >= 0x81 && b[i] <= 0xfe && b[i+1] >= 0x40 && b[i+1] <= 0xfe && b[i+1] != 0x7f {
			pairs++
			i += 2
			continue
		}
		i++
	}
	return pairs > 0 && pairs >= runes
}

// capture keeps the tail of a stream as newline-joined text.
type capture struct {
	mu    sync.Mutex
	limit int
	sb    strings.Builder
}

func newCapture(limit int) *capture {
	return &capture{limit: limit}
}

func (c *capture) Add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sb.WriteString(line)
	c.sb.WriteByte('\n')
	if c.sb.Len() > c.limit {
		kept := c.sb.String()
		kept = kept[len(kept)-c.limit/2:]
		if i := strings.IndexByte(kept, '\n'); i >= 0 {
			kept = kept[i+1:]
		}
		c.sb.Reset()
		c.sb.WriteString(kept)
	}
}

func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sb.String()
}

// lineWriter adapts a progress.Splitter to the io.Writer that exec copies a
// pipe into. exec uses one goroutine per writer.
type lineWriter struct {
	splitter *progress.Splitter
}

func newLineWriter(stream types.Stream, c *capture, deliver func(types.Stream, string)) *lineWriter {
	return &lineWriter{
		splitter: progress.NewSplitter(func(b []byte) {
			line := DecodeLine(b)
			c.Add(line)
			deliver(stream, line)
		}),
	}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	return w.splitter.Write(p)
}

// Flush emits a trailing line that had no terminator. Call it only after
// exec.Cmd.Wait has returned.
func (w *lineWriter) Flush() {
	w.splitter.Flush()
}
