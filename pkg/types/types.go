package types

import (
	"fmt"
	"strings"
)

// Type is a column value type. The numeric codes are the ones used on the
// wire in table and parameter serialization.
type Type int8

const (
	InvalidType  Type = 0
	NullType     Type = 1
	TinyIntType  Type = 3
	SmallIntType Type = 4
	IntegerType  Type = 5
	BigIntType   Type = 6
	FloatType    Type = 8
	VarcharType  Type = 9
	BooleanType  Type = 23
)

// String returns a string representation of the type
func (t Type) String() string {
	switch t {
	case NullType:
		return "NULL"
	case TinyIntType:
		return "TINYINT"
	case SmallIntType:
		return "SMALLINT"
	case IntegerType:
		return "INTEGER"
	case BigIntType:
		return "BIGINT"
	case FloatType:
		return "FLOAT"
	case VarcharType:
		return "VARCHAR"
	case BooleanType:
		return "BOOLEAN"
	default:
		return "INVALID"
	}
}

// ParseType maps a SQL type name to a Type.
func ParseType(name string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TINYINT":
		return TinyIntType, nil
	case "SMALLINT":
		return SmallIntType, nil
	case "INTEGER", "INT":
		return IntegerType, nil
	case "BIGINT":
		return BigIntType, nil
	case "FLOAT", "DOUBLE":
		return FloatType, nil
	case "VARCHAR", "STRING":
		return VarcharType, nil
	case "BOOLEAN", "BOOL":
		return BooleanType, nil
	default:
		return InvalidType, fmt.Errorf("unknown type %q", name)
	}
}

// Valid reports whether t can be stored in a table column.
func (t Type) Valid() bool {
	switch t {
	case TinyIntType, SmallIntType, IntegerType, BigIntType, FloatType, VarcharType, BooleanType:
		return true
	default:
		return false
	}
}

// IsInteger reports whether t is one of the integer types.
func (t Type) IsInteger() bool {
	return t == TinyIntType || t == SmallIntType || t == IntegerType || t == BigIntType
}

// IsNumeric reports whether t takes part in arithmetic.
func (t Type) IsNumeric() bool {
	return t.IsInteger() || t == FloatType
}

// FixedSize returns the serialized width of fixed-size types, or -1 for VARCHAR.
func (t Type) FixedSize() int {
	switch t {
	case TinyIntType, BooleanType:
		return 1
	case SmallIntType:
		return 2
	case IntegerType:
		return 4
	case BigIntType, FloatType:
		return 8
	default:
		return -1
	}
}
