package tuple

import (
	"fmt"
	"strings"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/types"
)

// Column describes one field of a schema.
type Column struct {
	Name     string
	Type     types.Type
	Nullable bool
	// Size is the maximum VARCHAR length in bytes; 0 means unbounded.
	Size int
}

// Schema describes the layout of the rows of a table (persistent or temp).
// It contains the types and names of columns in order.
type Schema struct {
	Columns []Column
}

// NewSchema creates a new Schema from the given columns.
//
// Parameters:
//   - columns: column definitions in order (must contain at least one element)
//
// Returns:
//   - *Schema: newly created schema; the column slice is copied
//   - error: if columns is empty or a column has an unstorable type
func NewSchema(columns []Column) (*Schema, error) {
	if len(columns) < 1 {
		return nil, fmt.Errorf("must provide at least one column")
	}
	cols := make([]Column, len(columns))
	copy(cols, columns)
	for i, c := range cols {
		if !c.Type.Valid() {
			return nil, fmt.Errorf("column %d (%s) has invalid type %s", i, c.Name, c.Type)
		}
	}
	return &Schema{Columns: cols}, nil
}

// MustSchema builds a nullable schema from alternating name/type pairs.
// It panics on invalid input and is meant for fixed, known layouts.
func MustSchema(pairs ...any) *Schema {
	if len(pairs)%2 != 0 {
		panic("MustSchema: odd number of arguments")
	}
	cols := make([]Column, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		cols = append(cols, Column{Name: pairs[i].(string), Type: pairs[i+1].(types.Type), Nullable: true})
	}
	s, err := NewSchema(cols)
	if err != nil {
		panic(err)
	}
	return s
}

// NumFields returns the number of columns in this schema.
func (s *Schema) NumFields() int {
	return len(s.Columns)
}

// TypeAtIndex returns the type of the ith column.
//
// Parameters:
//   - i: zero-based index of the column
//
// Returns:
//   - types.Type: data type of the column
//   - error: if index is out of bounds
func (s *Schema) TypeAtIndex(i int) (types.Type, error) {
	if i < 0 || i >= len(s.Columns) {
		return types.InvalidType, fmt.Errorf("field index %d out of bounds [0, %d)", i, len(s.Columns))
	}
	return s.Columns[i].Type, nil
}

// Types returns the column types in order.
func (s *Schema) Types() []types.Type {
	out := make([]types.Type, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Type
	}
	return out
}

// Names returns the column names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// FindFieldIndex locates a column by case-insensitive name.
//
// Returns:
//   - int: zero-based index of the column
//   - error: if the column is not found
func (s *Schema) FindFieldIndex(name string) (int, error) {
	for i, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %s not found", name)
}

// Equals reports whether two schemas have the same column types in order.
// Column names are not compared.
func (s *Schema) Equals(other *Schema) bool {
	if other == nil || len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range s.Columns {
		if c.Type != other.Columns[i].Type {
			return false
		}
	}
	return true
}

// String returns a string representation of this schema.
// Format: "name1 TYPE1,name2 TYPE2,..."
func (s *Schema) String() string {
	parts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		parts[i] = fmt.Sprintf("%s %s", c.Name, c.Type)
	}
	return strings.Join(parts, ",")
}

// Combine concatenates two schemas, as a join does with its inputs.
func Combine(left, right *Schema) *Schema {
	cols := make([]Column, 0, len(left.Columns)+len(right.Columns))
	cols = append(cols, left.Columns...)
	cols = append(cols, right.Columns...)
	return &Schema{Columns: cols}
}

// Conform casts each value of t to the schema's column types and checks
// nullability and VARCHAR length. It returns a new tuple.
func (s *Schema) Conform(t Tuple) (Tuple, error) {
	if len(t) != len(s.Columns) {
		return nil, dberror.Newf(dberror.ErrCategoryFragment, dberror.CodeSchemaMismatch,
			"tuple width does not match schema", "got %d values, want %d", len(t), len(s.Columns))
	}
	out := make(Tuple, len(t))
	for i, c := range s.Columns {
		v, err := t[i].CastTo(c.Type)
		if err != nil {
			return nil, err
		}
		if v.IsNull() && !c.Nullable {
			return nil, dberror.Newf(dberror.ErrCategoryFragment, dberror.CodeConstraintViolation,
				"NULL in non-nullable column", "column %s", c.Name)
		}
		if c.Type == types.VarcharType && c.Size > 0 && !v.IsNull() && len(v.Str()) > c.Size {
			return nil, dberror.Newf(dberror.ErrCategoryFragment, dberror.CodeConstraintViolation,
				"value too long for column", "column %s allows %d bytes, got %d", c.Name, c.Size, len(v.Str()))
		}
		out[i] = v
	}
	return out, nil
}
