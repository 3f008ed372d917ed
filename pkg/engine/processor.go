package engine

// Processor is one stage of the per-record chain.
type Processor interface {
	// Process receives the trimmed record line and returns the bytes to hand
	// to the next stage, and whether the record should be DROPPED.
	// The last stage's output is what gets written, so it must carry its
	// own line terminator.
	// Returned slices may alias ctx buffers; they are only valid until the
	// next record.
	Process(ctx *ProcessingContext, entry []byte) ([]byte, bool, error)

	// Name identifies the processor in errors and logs.
	Name() string
}
