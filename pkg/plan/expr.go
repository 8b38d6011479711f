package plan

import (
	"encoding/json"
	"strconv"
	"strings"

	"sitekernel/pkg/types"
)

// ExprKind is the closed set of expression node types.
type ExprKind int

const (
	ExprInvalid ExprKind = iota
	ExprConstant
	ExprParameter
	ExprColumn
	ExprCompare
	ExprAnd
	ExprOr
	ExprNot
	ExprIsNull
	ExprArith
)

// Side selects which input row a column reference reads in a join.
type Side int

const (
	Outer Side = iota
	Inner
)

// Expr is a decoded expression tree. Column references may be given by
// index or by name; names are resolved against the input schema when the
// executor is built.
type Expr struct {
	Kind ExprKind

	Value types.Value     // ExprConstant
	Param int             // ExprParameter
	Index int             // ExprColumn, -1 when Name is used
	Name  string          // ExprColumn
	Side  Side            // ExprColumn
	Cmp   types.Predicate // ExprCompare
	Arith types.ArithOp   // ExprArith
	Args  []*Expr
}

type rawExpr struct {
	Type      string          `json:"type"`
	Op        string          `json:"op,omitempty"`
	ValueType string          `json:"value_type,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Index     *int            `json:"index,omitempty"`
	Name      string          `json:"name,omitempty"`
	Side      string          `json:"side,omitempty"`
	Left      *rawExpr        `json:"left,omitempty"`
	Right     *rawExpr        `json:"right,omitempty"`
	Args      []*rawExpr      `json:"args,omitempty"`
}

func (r *rawExpr) decode(path string) (*Expr, error) {
	if r == nil {
		return nil, malformed("%s: missing expression", path)
	}
	e := &Expr{Index: -1}
	switch strings.ToUpper(r.Type) {
	case "CONSTANT":
		e.Kind = ExprConstant
		v, err := decodeConstant(r.ValueType, r.Value)
		if err != nil {
			return nil, malformed("%s: %v", path, err)
		}
		e.Value = v
		return e, nil

	case "PARAMETER":
		e.Kind = ExprParameter
		if r.Index == nil || *r.Index < 0 {
			return nil, malformed("%s: parameter needs a non-negative index", path)
		}
		e.Param = *r.Index
		return e, nil

	case "COLUMN":
		e.Kind = ExprColumn
		switch {
		case r.Index != nil && *r.Index >= 0:
			e.Index = *r.Index
		case r.Name != "":
			e.Name = r.Name
		default:
			return nil, malformed("%s: column needs an index or a name", path)
		}
		switch strings.ToLower(r.Side) {
		case "", "outer", "left":
			e.Side = Outer
		case "inner", "right":
			e.Side = Inner
		default:
			return nil, malformed("%s: unknown column side %q", path, r.Side)
		}
		return e, nil

	case "COMPARE":
		op, ok := types.ParsePredicate(r.Op)
		if !ok {
			return nil, malformed("%s: unknown comparison %q", path, r.Op)
		}
		e.Kind, e.Cmp = ExprCompare, op
		return e.binary(r, path)

	case "ARITH":
		op, ok := parseArith(r.Op)
		if !ok {
			return nil, malformed("%s: unknown arithmetic operator %q", path, r.Op)
		}
		e.Kind, e.Arith = ExprArith, op
		return e.binary(r, path)

	case "AND", "OR":
		e.Kind = ExprAnd
		if strings.ToUpper(r.Type) == "OR" {
			e.Kind = ExprOr
		}
		if len(r.Args) < 2 {
			return nil, malformed("%s: %s needs at least two arguments", path, r.Type)
		}
		return e.args(r.Args, path)

	case "NOT", "IS_NULL":
		e.Kind = ExprNot
		if strings.ToUpper(r.Type) == "IS_NULL" {
			e.Kind = ExprIsNull
		}
		if len(r.Args) != 1 {
			return nil, malformed("%s: %s takes exactly one argument", path, r.Type)
		}
		return e.args(r.Args, path)
	}
	return nil, malformed("%s: unknown expression type %q", path, r.Type)
}

func (e *Expr) binary(r *rawExpr, path string) (*Expr, error) {
	return e.args([]*rawExpr{r.Left, r.Right}, path)
}

func (e *Expr) args(raw []*rawExpr, path string) (*Expr, error) {
	e.Args = make([]*Expr, len(raw))
	for i, a := range raw {
		sub, err := a.decode(path + "." + strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		e.Args[i] = sub
	}
	return e, nil
}

func parseArith(op string) (types.ArithOp, bool) {
	switch strings.ToUpper(op) {
	case "+", "PLUS", "ADD":
		return types.Add, true
	case "-", "MINUS", "SUBTRACT":
		return types.Subtract, true
	case "*", "MULTIPLY":
		return types.Multiply, true
	case "/", "DIVIDE":
		return types.Divide, true
	}
	return 0, false
}

func decodeConstant(typeName string, raw json.RawMessage) (types.Value, error) {
	t, err := types.ParseType(typeName)
	if err != nil {
		return types.Value{}, err
	}
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return types.Null(t), nil
	}
	switch {
	case t.IsInteger():
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewBigInt(i).CastTo(t)
	case t == types.FloatType:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewFloat(f), nil
	case t == types.BooleanType:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return types.Value{}, err
		}
		return types.NewBoolean(b), nil
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return types.Value{}, err
		}
		return types.NewVarchar(s), nil
	}
}

// Walk calls fn for e and every sub-expression, depth first.
func (e *Expr) Walk(fn func(*Expr)) {
	if e == nil {
		return
	}
	fn(e)
	for _, a := range e.Args {
		a.Walk(fn)
	}
}

// MaxParam returns the highest parameter index referenced, or -1.
func (e *Expr) MaxParam() int {
	max := -1
	e.Walk(func(x *Expr) {
		if x.Kind == ExprParameter && x.Param > max {
			max = x.Param
		}
	})
	return max
}
