package engine

import (
	"strings"

	"github.com/pkg/errors"
)

// RewriteMode chooses what a kept record looks like on output.
type RewriteMode int

const (
	// Preserve emits the record exactly as read.
	Preserve RewriteMode = iota
	// Strip replaces the version list with a "0" placeholder.
	Strip
)

func (m RewriteMode) String() string {
	switch m {
	case Preserve:
		return "preserve"
	case Strip:
		return "strip"
	default:
		return "unknown"
	}
}

func ParseRewriteMode(s string) (RewriteMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "preserve":
		return Preserve, nil
	case "strip":
		return Strip, nil
	default:
		return Preserve, errors.Wrapf(ErrUnknownRewrite, "%q", s)
	}
}

const placeholder = '0'

// StripVersions appends the stripped form of a trimmed record line to dst:
// the name, the placeholder, then every field from the identity field on,
// single-space separated and newline terminated. ok is false, and dst is
// returned unchanged, when the line has fewer than three fields.
func StripVersions(dst, record []byte) (out []byte, ok bool) {
	start := len(dst)
	field := 0

	for i := 0; i < len(record); {
		for i < len(record) && isFieldSpace(record[i]) {
			i++
		}
		if i == len(record) {
			break
		}
		j := i
		for j < len(record) && !isFieldSpace(record[j]) {
			j++
		}

		switch field {
		case 0:
			dst = append(dst, record[i:j]...)
		case 1:
			dst = append(dst, ' ', placeholder)
		default:
			dst = append(dst, ' ')
			dst = append(dst, record[i:j]...)
		}
		field++
		i = j
	}

	if field < 3 {
		return dst[:start], false
	}
	return append(dst, '\n'), true
}

func isFieldSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// StripProcessor rewrites records with StripVersions. Malformed records
// fall back to the raw line.
type StripProcessor struct {
	name string
}

func NewStripProcessor(name string) *StripProcessor {
	return &StripProcessor{name: name}
}

func (s *StripProcessor) Name() string {
	return s.name
}

func (s *StripProcessor) Process(ctx *ProcessingContext, entry []byte) ([]byte, bool, error) {
	out, ok := StripVersions(ctx.scratch[:0], entry)
	ctx.scratch = out
	if !ok {
		return ctx.Raw, false, nil
	}
	ctx.Rewritten = true
	return out, false, nil
}

// PreserveProcessor emits the raw line, terminator included.
type PreserveProcessor struct {
	name string
}

func NewPreserveProcessor(name string) *PreserveProcessor {
	return &PreserveProcessor{name: name}
}

func (p *PreserveProcessor) Name() string {
	return p.name
}

func (p *PreserveProcessor) Process(ctx *ProcessingContext, _ []byte) ([]byte, bool, error) {
	return ctx.Raw, false, nil
}

func newRewriteProcessor(mode RewriteMode) (Processor, error) {
	switch mode {
	case Preserve:
		return NewPreserveProcessor("preserve"), nil
	case Strip:
		return NewStripProcessor("strip"), nil
	default:
		return nil, errors.Wrapf(ErrUnknownRewrite, "mode %d", int(mode))
	}
}
