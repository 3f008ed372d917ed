package engine

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

const writeBufferSize = 64 * 1024

// Options configures one filtering run.
type Options struct {
	Policy  Policy
	Rewrite RewriteMode
	Digest  DigestAlgorithm

	// Reconcile selects the whole-file variant: one line per name, at the
	// position it was first seen, carrying the payload it was last seen with.
	Reconcile bool
}

// Stage is a step of a run. Errors returned by Filter name the stage they
// happened in.
type Stage int

const (
	StageStart Stage = iota
	StageHeader
	StageRecords
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageHeader:
		return "header"
	case StageRecords:
		return "records"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Result summarises a run.
type Result struct {
	HeaderBytes int64

	// Records counts every line read after the separator.
	Records int
	Kept    int
	Dropped int
	// Skipped counts blank lines and lines without a name separator.
	Skipped   int
	Rewritten int
	// Merged counts lines folded into an earlier line of the same name.
	// Only the reconciling variant merges.
	Merged int

	BytesWritten int64
	Digest       string
	Algorithm    DigestAlgorithm
}

// Run dispatches to Filter or Reconcile.
func Run(r io.Reader, w io.Writer, opts Options) (Result, error) {
	if opts.Reconcile {
		return Reconcile(r, w, opts)
	}
	return Filter(r, w, opts)
}

func (o Options) chain() (*ProcessorChain, error) {
	membership, err := NewMembershipProcessor(o.Policy.Kind.String(), o.Policy)
	if err != nil {
		return nil, err
	}
	rewrite, err := newRewriteProcessor(o.Rewrite)
	if err != nil {
		return nil, err
	}
	return NewProcessorChain(membership, rewrite), nil
}

// Filter streams r to w in a single pass: the header verbatim, then every
// record the policy keeps, in input order, rewritten per opts.Rewrite.
// Nothing beyond the current line and the digest state is held in memory.
func Filter(r io.Reader, w io.Writer, opts Options) (Result, error) {
	res := Result{Algorithm: opts.Digest}

	chain, err := opts.chain()
	if err != nil {
		return res, fail(StageStart, err)
	}
	dw, err := NewDigestWriter(w, opts.Digest)
	if err != nil {
		return res, fail(StageStart, err)
	}
	bw := bufio.NewWriterSize(dw, writeBufferSize)
	lr := NewLineReader(r)

	res.HeaderBytes, err = CopyHeader(lr, bw)
	if err != nil {
		return res, fail(StageHeader, err)
	}

	ctx := &ProcessingContext{}
	for {
		raw, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fail(StageRecords, err)
		}
		res.Records++

		record := bytes.TrimSpace(raw)
		name, ok := recordName(record)
		if !ok {
			res.Skipped++
			continue
		}

		ctx.reset(raw, name, lr.Lines())
		out, drop, err := chain.Process(ctx, record)
		if err != nil {
			return res, fail(StageRecords, err)
		}
		if drop {
			res.Dropped++
			continue
		}

		res.Kept++
		if ctx.Rewritten {
			res.Rewritten++
		}
		if _, err := bw.Write(out); err != nil {
			return res, fail(StageRecords, errors.Wrap(err, "write record"))
		}
	}

	if err := bw.Flush(); err != nil {
		return res, fail(StageDone, errors.Wrap(err, "flush"))
	}
	res.BytesWritten = dw.Written()
	res.Digest = dw.Sum()
	return res, nil
}

func fail(stage Stage, err error) error {
	return errors.WithMessagef(err, "filter %s", stage)
}
