package types

import (
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"sitekernel/pkg/dberror"
)

// Null sentinels used on the wire. A numeric column holding its type's
// minimum value is NULL, so that minimum is not a storable value.
const (
	TinyIntNull  = math.MinInt8
	SmallIntNull = math.MinInt16
	IntegerNull  = math.MinInt32
	BigIntNull   = math.MinInt64
	FloatNull    = -1.7e308
)

// Value is a single typed SQL value. The zero Value is an untyped NULL.
type Value struct {
	typ  Type
	null bool
	i    int64
	f    float64
	s    string
}

func NewTinyInt(v int8) Value { return Value{typ: TinyIntType, i: int64(v)} }
func NewSmallInt(v int16) Value { return Value{typ: SmallIntType, i: int64(v)} }
func NewInteger(v int32) Value { return Value{typ: IntegerType, i: int64(v)} }
func NewBigInt(v int64) Value { return Value{typ: BigIntType, i: v} }
func NewFloat(v float64) Value { return Value{typ: FloatType, f: v} }
func NewVarchar(v string) Value { return Value{typ: VarcharType, s: v} }
func NewBoolean(v bool) Value { return Value{typ: BooleanType, i: boolToInt(v)} }
func Null(t Type) Value { return Value{typ: t, null: true} }

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Type returns the value's type. An untyped NULL reports NullType.
func (v Value) Type() Type {
	if v.typ == InvalidType {
		return NullType
	}
	return v.typ
}

func (v Value) IsNull() bool { return v.null || v.typ == InvalidType || v.typ == NullType }

// Int returns the integer payload. Floats are truncated.
func (v Value) Int() int64 {
	if v.typ == FloatType {
		return int64(v.f)
	}
	return v.i
}

// Float returns the value as float64.
func (v Value) Float() float64 {
	if v.typ == FloatType {
		return v.f
	}
	return float64(v.i)
}

func (v Value) Str() string { return v.s }

func (v Value) Bool() bool { return !v.IsNull() && v.i != 0 }

func (v Value) String() string {
	if v.IsNull() {
		return "NULL"
	}
	switch v.typ {
	case FloatType:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case VarcharType:
		return v.s
	case BooleanType:
		return strconv.FormatBool(v.i != 0)
	default:
		return strconv.FormatInt(v.i, 10)
	}
}

// MemSize is the number of bytes the value occupies in a serialized row,
// which is also what temp tables account against their memory limit.
func (v Value) MemSize() int {
	if v.typ == VarcharType {
		if v.null {
			return 4
		}
		return 4 + len(v.s)
	}
	if n := v.Type().FixedSize(); n > 0 {
		return n
	}
	return 0
}

// Cmp orders two non-null values. Numeric types compare across widths.
func (v Value) Cmp(other Value) (int, error) {
	switch {
	case v.typ.IsNumeric() && other.typ.IsNumeric():
		if v.typ == FloatType || other.typ == FloatType {
			a, b := v.Float(), other.Float()
			switch {
			case a < b:
				return -1, nil
			case a > b:
				return 1, nil
			}
			return 0, nil
		}
		switch {
		case v.i < other.i:
			return -1, nil
		case v.i > other.i:
			return 1, nil
		}
		return 0, nil
	case v.typ == VarcharType && other.typ == VarcharType:
		switch {
		case v.s < other.s:
			return -1, nil
		case v.s > other.s:
			return 1, nil
		}
		return 0, nil
	case v.typ == BooleanType && other.typ == BooleanType:
		return int(v.i - other.i), nil
	}
	return 0, dberror.Newf(dberror.ErrCategoryFragment, dberror.CodeTypeMismatch,
		"incomparable types", "%s vs %s", v.Type(), other.Type())
}

// SortCmp orders values for ORDER BY and MIN/MAX: NULL sorts first.
func (v Value) SortCmp(other Value) (int, error) {
	switch {
	case v.IsNull() && other.IsNull():
		return 0, nil
	case v.IsNull():
		return -1, nil
	case other.IsNull():
		return 1, nil
	}
	return v.Cmp(other)
}

// Compare evaluates "v op other". Any NULL operand yields false.
func (v Value) Compare(op Predicate, other Value) (bool, error) {
	if v.IsNull() || other.IsNull() {
		return false, nil
	}
	if op == Like {
		if v.typ != VarcharType || other.typ != VarcharType {
			return false, dberror.Newf(dberror.ErrCategoryFragment, dberror.CodeTypeMismatch,
				"LIKE requires VARCHAR operands", "%s LIKE %s", v.Type(), other.Type())
		}
		return matchLike(v.s, other.s), nil
	}
	c, err := v.Cmp(other)
	if err != nil {
		return false, err
	}
	return op.holds(c), nil
}

// Equals reports identity of type class and payload; NULL equals NULL here,
// which is what grouping and primary keys need.
func (v Value) Equals(other Value) bool {
	if v.IsNull() || other.IsNull() {
		return v.IsNull() && other.IsNull()
	}
	c, err := v.Cmp(other)
	return err == nil && c == 0
}

// Key returns a string usable as a map key. Integer types share one key
// space so that 5::TINYINT and 5::BIGINT collide.
func (v Value) Key() string {
	if v.IsNull() {
		return "n"
	}
	switch {
	case v.typ.IsInteger():
		return "i" + strconv.FormatInt(v.i, 10)
	case v.typ == FloatType:
		return "f" + strconv.FormatUint(math.Float64bits(v.f), 16)
	case v.typ == BooleanType:
		return "b" + strconv.FormatInt(v.i, 10)
	default:
		return "s" + v.s
	}
}

// Hash returns a stable 64-bit hash of the value.
func (v Value) Hash() uint64 {
	return xxhash.Sum64String(v.Key())
}

// CastTo converts v to column type t, rejecting values that do not fit.
func (v Value) CastTo(t Type) (Value, error) {
	if v.IsNull() {
		return Null(t), nil
	}
	if v.typ == t {
		if t.IsInteger() && !intFits(t, v.i) {
			return Value{}, outOfRange(v, t)
		}
		return v, nil
	}
	switch {
	case t.IsInteger() && v.typ.IsInteger():
		if !intFits(t, v.i) {
			return Value{}, outOfRange(v, t)
		}
		return Value{typ: t, i: v.i}, nil
	case t.IsInteger() && v.typ == FloatType:
		if v.f != math.Trunc(v.f) || v.f < -9.2e18 || v.f > 9.2e18 || !intFits(t, int64(v.f)) {
			return Value{}, outOfRange(v, t)
		}
		return Value{typ: t, i: int64(v.f)}, nil
	case t == FloatType && v.typ.IsInteger():
		return NewFloat(float64(v.i)), nil
	case t == BooleanType && v.typ.IsInteger():
		return NewBoolean(v.i != 0), nil
	}
	return Value{}, dberror.Newf(dberror.ErrCategoryFragment, dberror.CodeTypeMismatch,
		"value cannot be converted", "%s to %s", v.Type(), t)
}

func intFits(t Type, i int64) bool {
	switch t {
	case TinyIntType:
		return i > math.MinInt8 && i <= math.MaxInt8
	case SmallIntType:
		return i > math.MinInt16 && i <= math.MaxInt16
	case IntegerType:
		return i > math.MinInt32 && i <= math.MaxInt32
	case BigIntType:
		return i > math.MinInt64
	}
	return false
}

func outOfRange(v Value, t Type) error {
	return dberror.Newf(dberror.ErrCategoryFragment, dberror.CodeTypeMismatch,
		"value out of range", "%s does not fit in %s", v.String(), t)
}
