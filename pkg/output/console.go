package output

import (
	"errors"
	"io"
	"os"
	"syscall"
)

// Stdout returns the process's standard output.
func Stdout() io.Writer {
	return os.Stdout
}

// WriteFile writes contents to path atomically.
func WriteFile(path string, contents []byte) error {
	f, err := CreateAtomic(path)
	if err != nil {
		return err
	}
	defer f.Abort()

	if _, err := f.Write(contents); err != nil {
		return err
	}
	return f.Commit()
}

// IsBrokenPipe reports whether err came from writing to a closed pipe,
// e.g. when piping into head.
func IsBrokenPipe(err error) bool {
	return err != nil && (errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe))
}
