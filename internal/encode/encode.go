// Package encode turns already-generated column values into delimited text
// rows. It has no awareness of how values are produced.
package encode

import (
	"strings"

	"github.com/rowforge/rowforge/internal/schema"
)

// Encoder joins values with a fixed delimiter, quote-wrapping any field that
// contains the delimiter character.
type Encoder struct {
	delimiter byte
}

// New returns an Encoder for the given delimiter.
func New(delimiter byte) *Encoder {
	return &Encoder{delimiter: delimiter}
}

// Header renders the header line from output column names in schema order,
// without a trailing newline.
func (e *Encoder) Header(specs []schema.ColumnSpec) string {
	var b strings.Builder
	for i, spec := range specs {
		if i > 0 {
			b.WriteByte(e.delimiter)
		}
		b.WriteString(e.field(spec.OutputName))
	}
	return b.String()
}

// Row renders one data row, without a trailing newline. Values must already
// be in schema (ordinal) order.
func (e *Encoder) Row(values []string) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(e.delimiter)
		}
		b.WriteString(e.field(v))
	}
	return b.String()
}

// AppendRow appends one encoded row plus newline to dst and returns the
// extended slice. Used by the batch write path to avoid per-row allocations.
func (e *Encoder) AppendRow(dst []byte, values []string) []byte {
	for i, v := range values {
		if i > 0 {
			dst = append(dst, e.delimiter)
		}
		if strings.IndexByte(v, e.delimiter) >= 0 {
			dst = append(dst, '"')
			dst = append(dst, v...)
			dst = append(dst, '"')
		} else {
			dst = append(dst, v...)
		}
	}
	return append(dst, '\n')
}

func (e *Encoder) field(v string) string {
	if strings.IndexByte(v, e.delimiter) >= 0 {
		return `"` + v + `"`
	}
	return v
}
