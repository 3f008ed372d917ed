package ingest

import "github.com/pkg/errors"

// ErrUnexpectedStatus is returned when the feed server answers with a
// non-2xx status after retries.
var ErrUnexpectedStatus = errors.New("unexpected response status")
