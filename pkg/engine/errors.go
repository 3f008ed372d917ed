package engine

import "github.com/pkg/errors"

var (
	// ErrMissingSeparator means the input ended before the "---" line that
	// closes the metadata header. Nothing written before it is usable.
	ErrMissingSeparator = errors.New("malformed input: missing separator")

	ErrUnknownPolicy  = errors.New("unknown selection policy")
	ErrUnknownRewrite = errors.New("unknown rewrite mode")
	ErrUnknownDigest  = errors.New("unknown digest algorithm")
)
