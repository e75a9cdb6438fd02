package progress

import "unicode/utf8"

// MaxLineLength bounds a buffered line. Longer output is emitted in pieces.
const MaxLineLength = 64 * 1024

// Splitter cuts a byte stream into lines. "\n", "\r\n" and a bare "\r" all
// terminate a line; the last form is how tqdm redraws its bar in place.
// Bytes after the last terminator stay buffered until more data or Flush.
//
// A Splitter is not safe for concurrent use; the supervisor keeps one per
// stream.
type Splitter struct {
	buf       []byte
	pendingCR bool
	emit      func(line []byte)
}

// NewSplitter returns a splitter that calls emit for every complete,
// non-blank line. The slice passed to emit is not retained.
func NewSplitter(emit func(line []byte)) *Splitter {
	return &Splitter{emit: emit}
}

// Write feeds a chunk. It always consumes all of p.
func (s *Splitter) Write(p []byte) (int, error) {
	for _, b := range p {
		switch b {
		case '\n':
			if s.pendingCR {
				// second half of "\r\n"; the line was already emitted on '\r'
				s.pendingCR = false
				continue
			}
			s.flushLine()
		case '\r':
			s.flushLine()
			s.pendingCR = true
			continue
		default:
			s.buf = append(s.buf, b)
			if len(s.buf) >= MaxLineLength {
				s.flushLong()
			}
		}
		s.pendingCR = false
	}
	return len(p), nil
}

// Flush emits whatever is buffered as a final line.
func (s *Splitter) Flush() {
	s.flushLine()
	s.pendingCR = false
}

func (s *Splitter) flushLine() {
	if len(s.buf) == 0 {
		return
	}
	if !isBlank(s.buf) {
		s.emit(s.buf)
	}
	s.buf = s.buf[:0]
}

// flushLong emits an over-long line without splitting a UTF-8 sequence:
// an unfinished trailing character is carried into the next piece.
func (s *Splitter) flushLong() {
	cut := len(s.buf)
	for i := len(s.buf) - 1; i >= 0 && i >= len(s.buf)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s.buf[i]) {
			if !utf8.FullRune(s.buf[i:]) && i > 0 {
				cut = i
			}
			break
		}
	}
	var carry []byte
	if cut < len(s.buf) {
		carry = append(carry, s.buf[cut:]...)
		s.buf = s.buf[:cut]
	}
	s.flushLine()
	s.buf = append(s.buf, carry...)
}

func isBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' && c != '\t' {
			return false
		}
	}
	return true
}
