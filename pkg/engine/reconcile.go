package engine

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"

	"facet/pkg/model"
)

// ParseVersions reads a whole feed into memory. Blank lines and lines
// without a name separator are left out.
func ParseVersions(r io.Reader) (model.Versions, error) {
	var v model.Versions
	var header bytes.Buffer

	lr := NewLineReader(r)
	if _, err := CopyHeader(lr, &header); err != nil {
		return v, err
	}
	v.Header = header.Bytes()

	for {
		raw, err := lr.Next()
		if err == io.EOF {
			return v, nil
		}
		if err != nil {
			return v, err
		}
		rec, ok := parseRecord(bytes.TrimSpace(raw), lr.Lines())
		if ok {
			v.Records = append(v.Records, rec)
		}
	}
}

func parseRecord(line []byte, lineNo int) (model.Record, bool) {
	name, ok := recordName(line)
	if !ok {
		return model.Record{}, false
	}
	return model.Record{
		Line:    lineNo,
		Name:    string(name),
		Payload: string(line[len(name)+1:]),
	}, true
}

// Reconcile is the whole-file variant of Filter. It buffers every record
// the policy keeps and emits one line per name: at the position the name
// was first seen, with the payload it was last seen with.
func Reconcile(r io.Reader, w io.Writer, opts Options) (Result, error) {
	res := Result{Algorithm: opts.Digest}

	keep, err := opts.Policy.Matcher()
	if err != nil {
		return res, fail(StageStart, err)
	}
	if _, err := newRewriteProcessor(opts.Rewrite); err != nil {
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

	index := make(map[string]int)
	var records []model.Record
	for {
		raw, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fail(StageRecords, err)
		}
		res.Records++

		rec, ok := parseRecord(bytes.TrimSpace(raw), lr.Lines())
		if !ok {
			res.Skipped++
			continue
		}
		if !keep([]byte(rec.Name)) {
			res.Dropped++
			continue
		}
		if i, seen := index[rec.Name]; seen {
			records[i].Payload = rec.Payload
			res.Merged++
			continue
		}
		index[rec.Name] = len(records)
		records = append(records, rec)
	}

	// records is in first-seen order.
	var line, stripped []byte
	for _, rec := range records {
		line = rec.AppendTo(line[:0])
		out := line
		if opts.Rewrite == Strip {
			var ok bool
			if stripped, ok = StripVersions(stripped[:0], bytes.TrimSpace(line)); ok {
				out = stripped
				res.Rewritten++
			}
		}
		if _, err := bw.Write(out); err != nil {
			return res, fail(StageRecords, errors.Wrap(err, "write record"))
		}
		res.Kept++
	}

	if err := bw.Flush(); err != nil {
		return res, fail(StageDone, errors.Wrap(err, "flush"))
	}
	res.BytesWritten = dw.Written()
	res.Digest = dw.Sum()
	return res, nil
}
