package tuple

import (
	"strings"

	"sitekernel/pkg/types"
)

// Tuple is one row of values laid out according to some Schema.
type Tuple []types.Value

// Clone creates a copy of this tuple. Values are immutable so a shallow
// copy is a deep one.
func (t Tuple) Clone() Tuple {
	out := make(Tuple, len(t))
	copy(out, t)
	return out
}

// MemSize is the serialized size of the row including its length prefix.
func (t Tuple) MemSize() int {
	n := 4
	for _, v := range t {
		n += v.MemSize()
	}
	return n
}

// Concat returns a new tuple holding t followed by other.
func Concat(t, other Tuple) Tuple {
	out := make(Tuple, 0, len(t)+len(other))
	out = append(out, t...)
	return append(out, other...)
}

// Key joins the map keys of the values at the given indices.
func (t Tuple) Key(indices []int) string {
	var b strings.Builder
	for i, idx := range indices {
		if i > 0 {
			b.WriteByte(0)
		}
		b.WriteString(t[idx].Key())
	}
	return b.String()
}

// String returns a string representation of this tuple
// Format: field1\tfield2\t...\tfieldN
func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = v.String()
	}
	return strings.Join(parts, "\t")
}
