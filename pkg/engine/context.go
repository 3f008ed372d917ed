package engine

// ProcessingContext holds the state of the record currently flowing through
// a chain. One context is reused for every line of a run.
type ProcessingContext struct {
	// Raw is the line exactly as read, terminator included.
	Raw []byte
	// Name is the entry name of the record.
	Name []byte
	// Line is the 1-based physical line number in the input.
	Line int
	// Rewritten is set by a rewrite stage that changed the record.
	Rewritten bool

	scratch []byte
}

func (c *ProcessingContext) reset(raw, name []byte, line int) {
	c.Raw = raw
	c.Name = name
	c.Line = line
	c.Rewritten = false
}
