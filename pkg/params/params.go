// Package params decodes the parameter set of a fragment invocation.
package params

import (
	"encoding/binary"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/types"
)

// DefaultCapacity is the largest parameter count one invocation may carry.
const DefaultCapacity = 1000

// Set is a reusable, fixed-capacity parameter array. The engine owns one
// Set and refills it for every invocation; executors read it only for the
// duration of a run.
type Set struct {
	values   []types.Value
	capacity int
}

// NewSet allocates a set holding at most capacity values. A non-positive
// capacity uses DefaultCapacity.
func NewSet(capacity int) *Set {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Set{values: make([]types.Value, 0, capacity), capacity: capacity}
}

func (s *Set) Capacity() int { return s.capacity }

func (s *Set) Len() int { return len(s.values) }

// Values returns the decoded parameters. The slice is reused by the next
// Deserialize.
func (s *Set) Values() []types.Value { return s.values }

func (s *Set) Clear() { s.values = s.values[:0] }

// Deserialize replaces the contents of the set with the parameters encoded
// in buf: an int16 count followed by count (int8 type, value) pairs. An
// empty buf is an empty set.
//
// Returns:
//   - error: PARAMETER_OVERFLOW if count exceeds the capacity,
//     MALFORMED_PARAMETERS for truncated or unknown encodings
func (s *Set) Deserialize(buf []byte) error {
	s.Clear()
	if len(buf) == 0 {
		return nil
	}
	if len(buf) < 2 {
		return malformed("missing parameter count")
	}
	count := int(int16(binary.BigEndian.Uint16(buf)))
	if count < 0 {
		return malformed("negative parameter count %d", count)
	}
	if count > s.capacity {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeParameterOverflow,
			"too many parameters").
			WithDetail("%d parameters, capacity %d", count, s.capacity).
			At("Deserialize", "ParameterSet")
	}

	off := 2
	for i := 0; i < count; i++ {
		if off >= len(buf) {
			s.Clear()
			return malformed("parameter %d missing", i)
		}
		t := types.Type(int8(buf[off]))
		off++
		if t == types.NullType {
			s.values = append(s.values, types.Null(types.NullType))
			continue
		}
		if !t.Valid() {
			s.Clear()
			return malformed("parameter %d has unknown type code %d", i, int8(t))
		}
		v, n, err := types.ReadValue(buf[off:], t)
		if err != nil {
			s.Clear()
			return dberror.Wrap(err, dberror.CodeMalformedParameters, "Deserialize", "ParameterSet")
		}
		off += n
		s.values = append(s.values, v)
	}
	return nil
}

// Append encodes values in the layout Deserialize reads. Untyped NULLs are
// written as the NULL type code with no payload.
func Append(dst []byte, values ...types.Value) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(values)))
	for _, v := range values {
		t := v.Type()
		if t == types.NullType || t == types.InvalidType {
			dst = append(dst, byte(types.NullType))
			continue
		}
		dst = append(dst, byte(t))
		dst = types.AppendValue(dst, t, v)
	}
	return dst
}

func malformed(format string, args ...any) error {
	return dberror.Newf(dberror.ErrCategoryUser, dberror.CodeMalformedParameters,
		"malformed parameter set", format, args...).At("Deserialize", "ParameterSet")
}
