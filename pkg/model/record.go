package model

// Record is one parsed entry of the record section.
// Only the reconciling filter materialises records; streaming runs work on
// raw lines.
type Record struct {
	// Line is the 1-based line number the entry was first seen on.
	Line int

	// Name is the entry name (field 0).
	Name string

	// Payload is everything after the first space: the version list and
	// the identity field, as read.
	Payload string
}

// AppendTo appends the record in feed format, newline terminated.
func (r Record) AppendTo(dst []byte) []byte {
	dst = append(dst, r.Name...)
	dst = append(dst, ' ')
	dst = append(dst, r.Payload...)
	return append(dst, '\n')
}

// Versions is a whole feed held in memory.
type Versions struct {
	// Header is the metadata block, separator line included, byte for byte.
	Header []byte

	Records []Record
}
