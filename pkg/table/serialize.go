package table

import (
	"encoding/binary"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/tuple"
	"sitekernel/pkg/types"
)

// Source is anything that can be serialized as a result table.
type Source interface {
	Schema() *tuple.Schema
	Rows() []tuple.Tuple
}

// AppendTable appends [int32 tableSize][table body] to dst. The body is
// int8 status, int32 headerSize, int16 columnCount, the column type codes,
// the column names (int32 length + bytes), int32 rowCount and the rows,
// each prefixed with its int32 size.
func AppendTable(dst []byte, src Source) ([]byte, error) {
	schema := src.Schema()
	sizeAt := len(dst)
	dst = binary.BigEndian.AppendUint32(dst, 0)
	bodyStart := len(dst)

	dst = append(dst, 0) // status
	headerAt := len(dst)
	dst = binary.BigEndian.AppendUint32(dst, 0)
	headerStart := len(dst)
	dst = binary.BigEndian.AppendUint16(dst, uint16(schema.NumFields()))
	for _, c := range schema.Columns {
		dst = append(dst, byte(c.Type))
	}
	for _, c := range schema.Columns {
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(c.Name)))
		dst = append(dst, c.Name...)
	}
	binary.BigEndian.PutUint32(dst[headerAt:], uint32(len(dst)-headerStart))

	rows := src.Rows()
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(rows)))
	for _, row := range rows {
		rowAt := len(dst)
		dst = binary.BigEndian.AppendUint32(dst, 0)
		for i, c := range schema.Columns {
			v, err := row[i].CastTo(c.Type)
			if err != nil {
				return dst[:sizeAt], err
			}
			dst = types.AppendValue(dst, c.Type, v)
		}
		binary.BigEndian.PutUint32(dst[rowAt:], uint32(len(dst)-rowAt-4))
	}

	binary.BigEndian.PutUint32(dst[sizeAt:], uint32(len(dst)-bodyStart))
	return dst, nil
}

// DecodeTable reads a table written by AppendTable into an unaccounted temp
// table and returns the number of bytes consumed.
func DecodeTable(src []byte) (*Temp, int, error) {
	r := reader{buf: src}
	size := r.int32()
	if r.err != nil || size < 0 || int(size) > len(src)-4 {
		return nil, 0, malformed("table size %d exceeds %d available bytes", size, len(src)-4)
	}
	r.buf = src[:4+int(size)]

	r.int8() // status
	r.int32()
	n := int(r.int16())
	if r.err != nil || n <= 0 {
		return nil, 0, malformed("bad column count %d", n)
	}
	cols := make([]tuple.Column, n)
	for i := range cols {
		cols[i].Type = types.Type(r.int8())
		cols[i].Nullable = true
	}
	for i := range cols {
		cols[i].Name = r.str()
	}
	if r.err != nil {
		return nil, 0, r.err
	}
	schema, err := tuple.NewSchema(cols)
	if err != nil {
		return nil, 0, malformed("%v", err)
	}

	t := NewTemp(schema, nil)
	rowCount := int(r.int32())
	for i := 0; i < rowCount && r.err == nil; i++ {
		r.int32()
		row := make(tuple.Tuple, n)
		for j, c := range cols {
			v, used, err := types.ReadValue(r.buf[r.pos:], c.Type)
			if err != nil {
				return nil, 0, err
			}
			row[j] = v
			r.pos += used
		}
		if err := t.Insert(row); err != nil {
			return nil, 0, err
		}
	}
	if r.err != nil {
		return nil, 0, r.err
	}
	return t, 4 + int(size), nil
}

func malformed(format string, args ...any) error {
	return dberror.Newf(dberror.ErrCategoryUser, dberror.CodeSchemaMismatch,
		"malformed serialized table", format, args...)
}

type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = malformed("need %d bytes at offset %d, have %d", n, r.pos, len(r.buf)-r.pos)
		return false
	}
	return true
}

func (r *reader) int8() int8 {
	if !r.need(1) {
		return 0
	}
	v := int8(r.buf[r.pos])
	r.pos++
	return v
}

func (r *reader) int16() int16 {
	if !r.need(2) {
		return 0
	}
	v := int16(binary.BigEndian.Uint16(r.buf[r.pos:]))
	r.pos += 2
	return v
}

func (r *reader) int32() int32 {
	if !r.need(4) {
		return 0
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v
}

func (r *reader) str() string {
	n := int(r.int32())
	if n < 0 || !r.need(n) {
		if r.err == nil {
			r.err = malformed("negative string length %d", n)
		}
		return ""
	}
	s := string(r.buf[r.pos : r.pos+n])
	r.pos += n
	return s
}
