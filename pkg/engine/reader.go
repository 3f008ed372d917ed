package engine

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

const readBufferSize = 64 * 1024

// LineReader hands out raw lines from an input one at a time.
// It is safe for a single reader only.
type LineReader struct {
	r     *bufio.Reader
	buf   []byte // reused between calls, grows to the longest line seen
	lines int
	eof   bool
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, readBufferSize)}
}

// Next returns the next line with its terminator ("\n", "\r\n" or nothing for
// an unterminated last line). The slice is only valid until the next call.
// Next returns io.EOF once the input is exhausted.
func (lr *LineReader) Next() ([]byte, error) {
	if lr.eof {
		return nil, io.EOF
	}

	lr.buf = lr.buf[:0]
	for {
		chunk, err := lr.r.ReadSlice('\n')
		lr.buf = append(lr.buf, chunk...)

		switch err {
		case nil:
			lr.lines++
			return lr.buf, nil
		case bufio.ErrBufferFull:
			// Line longer than the read buffer, keep accumulating.
			continue
		case io.EOF:
			lr.eof = true
			if len(lr.buf) == 0 {
				return nil, io.EOF
			}
			lr.lines++
			return lr.buf, nil
		default:
			return nil, errors.Wrap(err, "read line")
		}
	}
}

// Lines returns how many lines have been returned so far.
func (lr *LineReader) Lines() int {
	return lr.lines
}
