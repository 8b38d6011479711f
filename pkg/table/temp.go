package table

import (
	"sitekernel/pkg/tuple"
)

// Temp is an append-only intermediate result. It never records undo.
type Temp struct {
	schema *tuple.Schema
	rows   []tuple.Tuple
	bytes  int64
	limits *TempLimits
}

// NewTemp creates a temp table. limits may be nil for unaccounted tables,
// such as dependency tables decoded from the wire.
func NewTemp(schema *tuple.Schema, limits *TempLimits) *Temp {
	return &Temp{schema: schema, limits: limits}
}

func (t *Temp) Schema() *tuple.Schema { return t.schema }

func (t *Temp) Rows() []tuple.Tuple { return t.rows }

func (t *Temp) RowCount() int { return len(t.rows) }

// Bytes is the serialized size of the rows held.
func (t *Temp) Bytes() int64 { return t.bytes }

// Insert appends a row that already conforms to the schema.
func (t *Temp) Insert(row tuple.Tuple) error {
	n := int64(row.MemSize())
	if t.limits != nil {
		if err := t.limits.Reserve(n); err != nil {
			return err
		}
	}
	t.rows = append(t.rows, row)
	t.bytes += n
	return nil
}

// Clear drops all rows and returns their bytes to the limits.
func (t *Temp) Clear() {
	if t.limits != nil {
		t.limits.Release(t.bytes)
	}
	t.rows = nil
	t.bytes = 0
}
