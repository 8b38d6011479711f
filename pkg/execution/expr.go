package execution

import (
	"strconv"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/plan"
	"sitekernel/pkg/tuple"
	"sitekernel/pkg/types"
)

// boundExpr is a plan expression with its column references resolved to
// indices and its result type inferred. InvalidType means "decided at run
// time", which only happens for parameters.
type boundExpr struct {
	kind  plan.ExprKind
	value types.Value
	param int
	col   int
	side  plan.Side
	cmp   types.Predicate
	arith types.ArithOp
	args  []*boundExpr
	typ   types.Type
}

func bindExpr(e *plan.Expr, outer, inner *tuple.Schema) (*boundExpr, error) {
	if e == nil {
		return nil, nil
	}
	b := &boundExpr{kind: e.Kind, param: e.Param, side: e.Side, cmp: e.Cmp, arith: e.Arith}
	for _, a := range e.Args {
		sub, err := bindExpr(a, outer, inner)
		if err != nil {
			return nil, err
		}
		b.args = append(b.args, sub)
	}

	switch e.Kind {
	case plan.ExprConstant:
		b.value = e.Value
		b.typ = e.Value.Type()
	case plan.ExprParameter:
		b.typ = types.InvalidType
	case plan.ExprColumn:
		schema := outer
		if e.Side == plan.Inner {
			schema = inner
		}
		if schema == nil {
			return nil, schemaMismatch("column reference %s has no input to read from", describeColumn(e))
		}
		idx := e.Index
		if idx < 0 {
			var err error
			if idx, err = schema.FindFieldIndex(e.Name); err != nil {
				return nil, schemaMismatch("%v", err)
			}
		}
		if idx >= schema.NumFields() {
			return nil, schemaMismatch("column index %d out of range for %d columns", idx, schema.NumFields())
		}
		b.col = idx
		b.typ = schema.Columns[idx].Type
	case plan.ExprCompare, plan.ExprAnd, plan.ExprOr, plan.ExprNot, plan.ExprIsNull:
		b.typ = types.BooleanType
	case plan.ExprArith:
		b.typ = types.BigIntType
		for _, a := range b.args {
			if a.typ == types.FloatType {
				b.typ = types.FloatType
			}
			if a.typ != types.InvalidType && !a.typ.IsNumeric() {
				return nil, schemaMismatch("arithmetic on %s", a.typ)
			}
		}
	default:
		return nil, schemaMismatch("unsupported expression kind %d", e.Kind)
	}
	return b, nil
}

func describeColumn(e *plan.Expr) string {
	if e.Name != "" {
		return e.Name
	}
	return "#" + strconv.Itoa(e.Index)
}

func (b *boundExpr) eval(params []types.Value, outer, inner tuple.Tuple) (types.Value, error) {
	switch b.kind {
	case plan.ExprConstant:
		return b.value, nil

	case plan.ExprParameter:
		if b.param >= len(params) {
			return types.Value{}, dberror.Newf(dberror.ErrCategoryUser, dberror.CodeMalformedParameters,
				"missing parameter", "index %d, %d supplied", b.param, len(params))
		}
		return params[b.param], nil

	case plan.ExprColumn:
		if b.side == plan.Inner {
			return inner[b.col], nil
		}
		return outer[b.col], nil

	case plan.ExprCompare:
		l, r, err := b.evalPair(params, outer, inner)
		if err != nil {
			return types.Value{}, err
		}
		ok, err := l.Compare(b.cmp, r)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewBoolean(ok), nil

	case plan.ExprArith:
		l, r, err := b.evalPair(params, outer, inner)
		if err != nil {
			return types.Value{}, err
		}
		return types.Arith(b.arith, l, r)

	case plan.ExprAnd, plan.ExprOr:
		want := b.kind == plan.ExprOr
		for _, a := range b.args {
			v, err := a.eval(params, outer, inner)
			if err != nil {
				return types.Value{}, err
			}
			if v.Bool() == want {
				return types.NewBoolean(want), nil
			}
		}
		return types.NewBoolean(!want), nil

	case plan.ExprNot:
		v, err := b.args[0].eval(params, outer, inner)
		if err != nil {
			return types.Value{}, err
		}
		if v.IsNull() {
			return types.Null(types.BooleanType), nil
		}
		return types.NewBoolean(!v.Bool()), nil

	case plan.ExprIsNull:
		v, err := b.args[0].eval(params, outer, inner)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewBoolean(v.IsNull()), nil
	}
	return types.Value{}, dberror.Newf(dberror.ErrCategoryFragment, dberror.CodeInternal,
		"unsupported expression", "kind %d", b.kind)
}

func (b *boundExpr) evalPair(params []types.Value, outer, inner tuple.Tuple) (types.Value, types.Value, error) {
	l, err := b.args[0].eval(params, outer, inner)
	if err != nil {
		return types.Value{}, types.Value{}, err
	}
	r, err := b.args[1].eval(params, outer, inner)
	if err != nil {
		return types.Value{}, types.Value{}, err
	}
	return l, r, nil
}

// matches evaluates a predicate; a nil predicate accepts every row.
func (b *boundExpr) matches(params []types.Value, outer, inner tuple.Tuple) (bool, error) {
	if b == nil {
		return true, nil
	}
	v, err := b.eval(params, outer, inner)
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}
