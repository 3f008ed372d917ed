package engine

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

var separator = []byte("---")

// CopyHeader forwards lines from lr to w, unchanged, up to and including the
// separator line. It returns the number of header bytes written.
func CopyHeader(lr *LineReader, w io.Writer) (int64, error) {
	var written int64
	for {
		line, err := lr.Next()
		if err == io.EOF {
			return written, ErrMissingSeparator
		}
		if err != nil {
			return written, err
		}

		n, err := w.Write(line)
		written += int64(n)
		if err != nil {
			return written, errors.Wrap(err, "write header")
		}

		if isSeparator(line) {
			return written, nil
		}
	}
}

func isSeparator(line []byte) bool {
	return bytes.Equal(bytes.TrimSpace(line), separator)
}
