package types

import (
	"math"

	"sitekernel/pkg/dberror"
)

// ArithOp is a binary arithmetic operator.
type ArithOp int

const (
	Add ArithOp = iota
	Subtract
	Multiply
	Divide
)

func (op ArithOp) String() string {
	switch op {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	default:
		return "?"
	}
}

// Arith applies op to two numeric values. Integer arithmetic is carried out
// in BIGINT; any FLOAT operand makes the result FLOAT. NULL propagates.
func Arith(op ArithOp, a, b Value) (Value, error) {
	if (!a.IsNull() && !a.typ.IsNumeric()) || (!b.IsNull() && !b.typ.IsNumeric()) {
		return Value{}, dberror.Newf(dberror.ErrCategoryFragment, dberror.CodeTypeMismatch,
			"arithmetic on non-numeric value", "%s %s %s", a.Type(), op, b.Type())
	}
	resultType := BigIntType
	if a.typ == FloatType || b.typ == FloatType {
		resultType = FloatType
	}
	if a.IsNull() || b.IsNull() {
		return Null(resultType), nil
	}

	if resultType == FloatType {
		x, y := a.Float(), b.Float()
		var r float64
		switch op {
		case Add:
			r = x + y
		case Subtract:
			r = x - y
		case Multiply:
			r = x * y
		case Divide:
			if y == 0 {
				return Value{}, divideByZero()
			}
			r = x / y
		}
		if math.IsInf(r, 0) || math.IsNaN(r) {
			return Value{}, overflow(op)
		}
		return NewFloat(r), nil
	}

	x, y := a.i, b.i
	var r int64
	switch op {
	case Add:
		r = x + y
		if (x > 0 && y > 0 && r < 0) || (x < 0 && y < 0 && r >= 0) {
			return Value{}, overflow(op)
		}
	case Subtract:
		r = x - y
		if (x >= 0 && y < 0 && r < 0) || (x < 0 && y > 0 && r >= 0) {
			return Value{}, overflow(op)
		}
	case Multiply:
		r = x * y
		if x != 0 && (r/x != y || (x == -1 && y == math.MinInt64)) {
			return Value{}, overflow(op)
		}
	case Divide:
		if y == 0 {
			return Value{}, divideByZero()
		}
		r = x / y
	}
	if r == BigIntNull {
		return Value{}, overflow(op)
	}
	return NewBigInt(r), nil
}

func divideByZero() error {
	return dberror.New(dberror.ErrCategoryFragment, dberror.CodeDivideByZero, "division by zero")
}

func overflow(op ArithOp) error {
	return dberror.Newf(dberror.ErrCategoryFragment, dberror.CodeTypeMismatch,
		"numeric overflow", "operator %s", op)
}
