// Package wire encodes what the engine hands back to its caller: result
// entries in the borrowed result buffer and the structured exception in the
// borrowed exception buffer.
package wire

import (
	"encoding/binary"
	"math"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/table"
)

// Output writes into a caller-owned buffer without growing it. The engine
// resets it at the start of every invocation and never keeps the buffer
// past the call that borrowed it.
type Output struct {
	buf     []byte
	n       int
	scratch []byte
}

func NewOutput(buf []byte) *Output {
	return &Output{buf: buf}
}

// Reset rewinds the write cursor. A non-nil buf replaces the borrowed buffer.
func (o *Output) Reset(buf []byte) {
	if buf != nil {
		o.buf = buf
	}
	o.n = 0
}

// Write copies p into the buffer whole or not at all.
func (o *Output) Write(p []byte) (int, error) {
	if len(p) > o.Remaining() {
		return 0, dberror.New(dberror.ErrCategoryFragment, dberror.CodeBufferOverflow,
			"output buffer too small").
			WithDetail("need %d bytes, %d of %d free", len(p), o.Remaining(), len(o.buf)).
			WithHint("enlarge the buffer passed to SetBuffers").
			At("Write", "Output")
	}
	copy(o.buf[o.n:], p)
	o.n += len(p)
	return len(p), nil
}

// Bytes returns the written prefix of the borrowed buffer.
func (o *Output) Bytes() []byte { return o.buf[:o.n] }

func (o *Output) Len() int { return o.n }

// Truncate discards everything written after the first n bytes.
func (o *Output) Truncate(n int) {
	if n >= 0 && n < o.n {
		o.n = n
	}
}

func (o *Output) Cap() int { return len(o.buf) }

func (o *Output) Remaining() int { return len(o.buf) - o.n }

// NoTable is the table size written for a fragment that produced nothing.
const NoTable int32 = -1

// WriteResult appends one result entry: the dependency id followed by the
// serialized table. A nil src writes NoTable in place of the table.
func (o *Output) WriteResult(depID int32, src table.Source) error {
	entry := binary.BigEndian.AppendUint32(o.scratch[:0], uint32(depID))
	if src == nil {
		entry = binary.BigEndian.AppendUint32(entry, math.MaxUint32) // NoTable
	} else {
		var err error
		entry, err = table.AppendTable(entry, src)
		if err != nil {
			o.scratch = entry[:0]
			return err
		}
	}
	o.scratch = entry[:0]
	_, err := o.Write(entry)
	return err
}

// WriteTable appends a serialized table with no dependency id in front.
func (o *Output) WriteTable(src table.Source) error {
	b, err := table.AppendTable(o.scratch[:0], src)
	if err != nil {
		return err
	}
	o.scratch = b[:0]
	_, err = o.Write(b)
	return err
}
