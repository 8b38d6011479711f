package execution

import (
	"sitekernel/pkg/plan"
	"sitekernel/pkg/table"
	"sitekernel/pkg/tuple"
	"sitekernel/pkg/types"
)

// accumulator folds the values of one aggregate for one group.
type accumulator struct {
	op    plan.AggregateType
	typ   types.Type
	count int64
	acc   types.Value
	seen  bool
}

func (a *accumulator) add(v types.Value) error {
	if a.op == plan.AggCountStar {
		a.count++
		return nil
	}
	if v.IsNull() {
		return nil
	}
	a.count++
	switch a.op {
	case plan.AggSum, plan.AggAvg:
		if !a.seen {
			a.acc, a.seen = v, true
			return nil
		}
		sum, err := types.Arith(types.Add, a.acc, v)
		if err != nil {
			return err
		}
		a.acc = sum
	case plan.AggMin, plan.AggMax:
		if !a.seen {
			a.acc, a.seen = v, true
			return nil
		}
		c, err := v.Cmp(a.acc)
		if err != nil {
			return err
		}
		if (a.op == plan.AggMin && c < 0) || (a.op == plan.AggMax && c > 0) {
			a.acc = v
		}
	}
	return nil
}

func (a *accumulator) result() (types.Value, error) {
	switch a.op {
	case plan.AggCountStar, plan.AggCount:
		return types.NewBigInt(a.count), nil
	}
	if !a.seen {
		return types.Null(a.typ), nil
	}
	if a.op == plan.AggAvg {
		return types.Arith(types.Divide, a.acc, types.NewBigInt(a.count))
	}
	return a.acc, nil
}

// aggregateType is the result type of op over values of type in.
func aggregateType(op plan.AggregateType, in types.Type) types.Type {
	switch op {
	case plan.AggCountStar, plan.AggCount:
		return types.BigIntType
	case plan.AggMin, plan.AggMax:
		if in.Valid() {
			return in
		}
	}
	if in == types.FloatType {
		return types.FloatType
	}
	return types.BigIntType
}

type group struct {
	keys []types.Value
	accs []*accumulator
}

// bindAggregate implements hash aggregation. The output is the group-by
// columns followed by one column per aggregate. Groups come out in order of
// first appearance. Without GROUP BY exactly one row is produced, even for
// empty input.
func bindAggregate(_ *binder, n *plan.Node, inputs []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	in := inputs[0]

	groupExprs := make([]*boundExpr, len(n.GroupBy))
	for i, g := range n.GroupBy {
		e, err := bindExpr(g.Expr, in, nil)
		if err != nil {
			return nil, nil, err
		}
		groupExprs[i] = e
	}
	cols, err := outputSchema(n, n.GroupBy, groupExprs)
	if err != nil {
		return nil, nil, err
	}

	aggExprs := make([]*boundExpr, len(n.Aggregates))
	aggTypes := make([]types.Type, len(n.Aggregates))
	for i, a := range n.Aggregates {
		inType := types.InvalidType
		if a.Expr != nil {
			e, err := bindExpr(a.Expr, in, nil)
			if err != nil {
				return nil, nil, err
			}
			if (a.Type == plan.AggSum || a.Type == plan.AggAvg) && e.typ.Valid() && !e.typ.IsNumeric() {
				return nil, nil, schemaMismatch("%s over %s in node %d", a.Type, e.typ, n.ID)
			}
			aggExprs[i], inType = e, e.typ
		}
		aggTypes[i] = aggregateType(a.Type, inType)
		cols = append(cols, tuple.Column{Name: a.Name, Type: aggTypes[i], Nullable: true})
	}
	schema, err := tuple.NewSchema(cols)
	if err != nil {
		return nil, nil, err
	}

	newGroup := func(keys []types.Value) *group {
		g := &group{keys: keys, accs: make([]*accumulator, len(n.Aggregates))}
		for i, a := range n.Aggregates {
			g.accs[i] = &accumulator{op: a.Type, typ: aggTypes[i]}
		}
		return g
	}

	return schema, func(ctx *Context, limits *table.TempLimits, inputs []*table.Temp) (*table.Temp, error) {
		groups := make(map[string]*group)
		var order []*group
		if len(groupExprs) == 0 {
			g := newGroup(nil)
			groups[""] = g
			order = append(order, g)
		}

		for _, row := range inputs[0].Rows() {
			keys := make([]types.Value, len(groupExprs))
			for i, e := range groupExprs {
				v, err := e.eval(ctx.Params, row, nil)
				if err != nil {
					return nil, err
				}
				keys[i] = v
			}
			k := tuple.Tuple(keys).Key(allIndices(len(keys)))
			g, ok := groups[k]
			if !ok {
				g = newGroup(keys)
				groups[k] = g
				order = append(order, g)
			}
			for i, acc := range g.accs {
				var v types.Value
				if aggExprs[i] != nil {
					var err error
					if v, err = aggExprs[i].eval(ctx.Params, row, nil); err != nil {
						return nil, err
					}
				}
				if err := acc.add(v); err != nil {
					return nil, err
				}
			}
		}

		out := table.NewTemp(schema, limits)
		for _, g := range order {
			row := make(tuple.Tuple, 0, schema.NumFields())
			row = append(row, g.keys...)
			for _, acc := range g.accs {
				v, err := acc.result()
				if err != nil {
					return nil, err
				}
				row = append(row, v)
			}
			conformed, err := schema.Conform(row)
			if err != nil {
				return nil, err
			}
			if err := out.Insert(conformed); err != nil {
				return nil, err
			}
		}
		return out, nil
	}, nil
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
