package stream

import (
	"bytes"
	"errors"
	"strings"
)

// MaxLineBytes caps the carry-over buffer. A well-behaved producer emits a
// newline after every record; one that never does would otherwise grow the
// buffer without bound.
const MaxLineBytes = 1024 * 1024

// ErrLineTooLong is returned by Feed when the carry-over buffer exceeds
// MaxLineBytes before a newline arrives. It is fatal for the session, the
// same as a transport failure.
var ErrLineTooLong = errors.New("stream: line exceeds maximum buffer size")

// LineReassembler folds raw transport chunks into complete text lines.
// Chunk boundaries are arbitrary: a chunk may end mid JSON token, mid
// delimiter, or mid multi-byte character. Splitting happens only on the
// byte '\n', which never occurs inside a multi-byte UTF-8 sequence, so
// reassembly is safe without any decoder state.
//
// A LineReassembler is session-scoped and not safe for concurrent use.
type LineReassembler struct {
	buf bytes.Buffer
	max int
}

// NewLineReassembler returns a reassembler with an empty carry-over buffer.
func NewLineReassembler() *LineReassembler {
	return &LineReassembler{max: MaxLineBytes}
}

// Feed appends one chunk to the carry-over buffer and extracts every
// complete line it now contains, in order. Returned lines have the
// delimiter stripped and surrounding whitespace trimmed; lines that trim
// to empty are discarded. Bytes after the last delimiter stay buffered
// for the next chunk.
func (r *LineReassembler) Feed(chunk []byte) ([]string, error) {
	r.buf.Write(chunk)

	var lines []string
	for {
		data := r.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(string(data[:idx]))
		r.buf.Next(idx + 1)
		if line != "" {
			lines = append(lines, line)
		}
	}

	if r.buf.Len() > r.max {
		return lines, ErrLineTooLong
	}
	return lines, nil
}

// Residual reports the bytes held after the last delimiter. On a clean
// end-of-stream a non-empty residual is an unterminated final record;
// callers drop it rather than parse it.
func (r *LineReassembler) Residual() int {
	return r.buf.Len()
}

// Reset discards any buffered bytes, returning the reassembler to the
// state it has at session start.
func (r *LineReassembler) Reset() {
	r.buf.Reset()
}
