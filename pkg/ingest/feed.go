// Package ingest opens the versions feed from wherever it lives: standard
// input, a local file or an HTTP URL.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// StdinSource is the source name that selects standard input.
const StdinSource = "-"

var gzipMagic = []byte{0x1f, 0x8b}

// Open returns a reader for src. Gzip-compressed content is decompressed
// transparently. fetcher serves http and https sources; nil uses a default
// Fetcher.
func Open(ctx context.Context, src string, fetcher *Fetcher) (io.ReadCloser, error) {
	var rc io.ReadCloser
	switch {
	case src == StdinSource:
		rc = io.NopCloser(os.Stdin)
	case IsURL(src):
		if fetcher == nil {
			fetcher = NewFetcher(FetcherOptions{})
		}
		body, err := fetcher.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		rc = body
	default:
		f, err := os.Open(src)
		if err != nil {
			return nil, errors.Wrap(err, "open feed")
		}
		rc = f
	}
	return decompress(rc)
}

// IsURL reports whether src names an HTTP resource.
func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func decompress(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	magic, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		rc.Close()
		return nil, errors.Wrap(err, "read feed")
	}
	if !bytes.Equal(magic, gzipMagic) {
		return &readCloser{Reader: br, closer: rc}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		rc.Close()
		return nil, errors.Wrap(err, "open gzip feed")
	}
	return &readCloser{Reader: zr, closer: multiCloser{zr, rc}}, nil
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r *readCloser) Close() error {
	return r.closer.Close()
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
