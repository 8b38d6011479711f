package types

import (
	"encoding/binary"
	"math"

	"sitekernel/pkg/dberror"
)

// AppendValue appends the big-endian encoding of v as type t. v must already
// have been cast to t; NULL is written as the type's sentinel.
func AppendValue(dst []byte, t Type, v Value) []byte {
	null := v.IsNull()
	switch t {
	case TinyIntType, BooleanType:
		x := int8(v.i)
		if null {
			x = TinyIntNull
		}
		return append(dst, byte(x))
	case SmallIntType:
		x := int16(v.i)
		if null {
			x = SmallIntNull
		}
		return binary.BigEndian.AppendUint16(dst, uint16(x))
	case IntegerType:
		x := int32(v.i)
		if null {
			x = IntegerNull
		}
		return binary.BigEndian.AppendUint32(dst, uint32(x))
	case BigIntType:
		x := v.i
		if null {
			x = BigIntNull
		}
		return binary.BigEndian.AppendUint64(dst, uint64(x))
	case FloatType:
		x := v.f
		if null {
			x = FloatNull
		}
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(x))
	case VarcharType:
		if null {
			return binary.BigEndian.AppendUint32(dst, math.MaxUint32)
		}
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(v.s)))
		return append(dst, v.s...)
	}
	return dst
}

// ReadValue decodes one value of type t from src and returns it together
// with the number of bytes consumed.
func ReadValue(src []byte, t Type) (Value, int, error) {
	need := t.FixedSize()
	if t == VarcharType {
		need = 4
	}
	if need < 0 {
		return Value{}, 0, dberror.Newf(dberror.ErrCategoryUser, dberror.CodeTypeMismatch,
			"type is not serializable", "type code %d", int8(t))
	}
	if len(src) < need {
		return Value{}, 0, truncated(t)
	}
	switch t {
	case TinyIntType:
		x := int8(src[0])
		if x == TinyIntNull {
			return Null(t), 1, nil
		}
		return NewTinyInt(x), 1, nil
	case BooleanType:
		x := int8(src[0])
		if x == TinyIntNull {
			return Null(t), 1, nil
		}
		return NewBoolean(x != 0), 1, nil
	case SmallIntType:
		x := int16(binary.BigEndian.Uint16(src))
		if x == SmallIntNull {
			return Null(t), 2, nil
		}
		return NewSmallInt(x), 2, nil
	case IntegerType:
		x := int32(binary.BigEndian.Uint32(src))
		if x == IntegerNull {
			return Null(t), 4, nil
		}
		return NewInteger(x), 4, nil
	case BigIntType:
		x := int64(binary.BigEndian.Uint64(src))
		if x == BigIntNull {
			return Null(t), 8, nil
		}
		return NewBigInt(x), 8, nil
	case FloatType:
		x := math.Float64frombits(binary.BigEndian.Uint64(src))
		if x <= FloatNull {
			return Null(t), 8, nil
		}
		return NewFloat(x), 8, nil
	default: // VarcharType
		n := int32(binary.BigEndian.Uint32(src))
		if n == -1 {
			return Null(t), 4, nil
		}
		if n < 0 || len(src) < 4+int(n) {
			return Value{}, 0, truncated(t)
		}
		return NewVarchar(string(src[4 : 4+n])), 4 + int(n), nil
	}
}

func truncated(t Type) error {
	return dberror.Newf(dberror.ErrCategoryUser, dberror.CodeMalformedParameters,
		"truncated value", "not enough bytes for %s", t)
}
