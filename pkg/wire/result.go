package wire

import (
	"encoding/binary"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/table"
)

// Result is one decoded result entry.
type Result struct {
	DepID int32
	Table *table.Temp // nil for NoTable
}

// ReadResults decodes every result entry in buf.
func ReadResults(buf []byte) ([]Result, error) {
	var out []Result
	for off := 0; off < len(buf); {
		if len(buf)-off < 8 {
			return out, truncatedResult(off)
		}
		dep := int32(binary.BigEndian.Uint32(buf[off:]))
		size := int32(binary.BigEndian.Uint32(buf[off+4:]))
		if size == NoTable {
			out = append(out, Result{DepID: dep})
			off += 8
			continue
		}
		t, n, err := table.DecodeTable(buf[off+4:])
		if err != nil {
			return out, err
		}
		out = append(out, Result{DepID: dep, Table: t})
		off += 4 + n
	}
	return out, nil
}

func truncatedResult(off int) error {
	return dberror.Newf(dberror.ErrCategorySystem, dberror.CodeBufferOverflow,
		"truncated result entry", "entry at offset %d", off).At("ReadResults", "wire")
}
