package execution

import (
	"sort"

	"sitekernel/pkg/plan"
	"sitekernel/pkg/table"
	"sitekernel/pkg/tuple"
	"sitekernel/pkg/types"
)

func bindProjection(_ *binder, n *plan.Node, inputs []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	in := inputs[0]
	exprs := make([]*boundExpr, len(n.Output))
	for i, oc := range n.Output {
		e, err := bindExpr(oc.Expr, in, nil)
		if err != nil {
			return nil, nil, err
		}
		exprs[i] = e
	}
	cols, err := outputSchema(n, n.Output, exprs)
	if err != nil {
		return nil, nil, err
	}
	schema, err := tuple.NewSchema(cols)
	if err != nil {
		return nil, nil, err
	}

	return schema, func(ctx *Context, limits *table.TempLimits, inputs []*table.Temp) (*table.Temp, error) {
		out := table.NewTemp(schema, limits)
		for _, src := range inputs[0].Rows() {
			row := make(tuple.Tuple, len(exprs))
			for i, e := range exprs {
				v, err := e.eval(ctx.Params, src, nil)
				if err != nil {
					return nil, err
				}
				row[i] = v
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

func bindLimit(_ *binder, n *plan.Node, inputs []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	limit, offset := n.Limit, n.Offset
	schema := inputs[0]
	return schema, func(_ *Context, limits *table.TempLimits, inputs []*table.Temp) (*table.Temp, error) {
		rows := inputs[0].Rows()
		if offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[offset:]
		}
		if limit < len(rows) {
			rows = rows[:limit]
		}
		out := table.NewTemp(schema, limits)
		for _, row := range rows {
			if err := out.Insert(row); err != nil {
				return nil, err
			}
		}
		return out, nil
	}, nil
}

func bindOrderBy(_ *binder, n *plan.Node, inputs []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	schema := inputs[0]
	keys := make([]*boundExpr, len(n.SortKeys))
	desc := make([]bool, len(n.SortKeys))
	for i, sk := range n.SortKeys {
		e, err := bindExpr(sk.Expr, schema, nil)
		if err != nil {
			return nil, nil, err
		}
		keys[i], desc[i] = e, sk.Descending
	}

	return schema, func(ctx *Context, limits *table.TempLimits, inputs []*table.Temp) (*table.Temp, error) {
		type keyed struct {
			row  tuple.Tuple
			keys []types.Value
		}
		rows := inputs[0].Rows()
		items := make([]keyed, len(rows))
		for i, row := range rows {
			items[i].row = row
			items[i].keys = make([]types.Value, len(keys))
			for k, e := range keys {
				v, err := e.eval(ctx.Params, row, nil)
				if err != nil {
					return nil, err
				}
				items[i].keys[k] = v
			}
		}

		var sortErr error
		sort.SliceStable(items, func(a, b int) bool {
			for k := range keys {
				c, err := items[a].keys[k].SortCmp(items[b].keys[k])
				if err != nil {
					sortErr = err
					return false
				}
				if c != 0 {
					if desc[k] {
						return c > 0
					}
					return c < 0
				}
			}
			return false
		})
		if sortErr != nil {
			return nil, sortErr
		}

		out := table.NewTemp(schema, limits)
		for _, it := range items {
			if err := out.Insert(it.row); err != nil {
				return nil, err
			}
		}
		return out, nil
	}, nil
}

// bindNestLoop joins its first child (outer) with its second (inner). The
// predicate reads outer and inner columns by side.
func bindNestLoop(_ *binder, n *plan.Node, inputs []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	outer, inner := inputs[0], inputs[1]
	pred, err := bindExpr(n.Predicate, outer, inner)
	if err != nil {
		return nil, nil, err
	}
	schema := tuple.Combine(outer, inner)

	return schema, func(ctx *Context, limits *table.TempLimits, inputs []*table.Temp) (*table.Temp, error) {
		out := table.NewTemp(schema, limits)
		innerRows := inputs[1].Rows()
		for _, o := range inputs[0].Rows() {
			for _, i := range innerRows {
				ok, err := pred.matches(ctx.Params, o, i)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				if err := out.Insert(tuple.Concat(o, i)); err != nil {
					return nil, err
				}
			}
		}
		return out, nil
	}, nil
}

// bindUnion implements UNION ALL.
func bindUnion(_ *binder, n *plan.Node, inputs []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	schema := inputs[0]
	for i, s := range inputs[1:] {
		if !s.Equals(schema) {
			return nil, nil, schemaMismatch("UNION node %d input %d is %s, expected %s", n.ID, i+1, s, schema)
		}
	}
	return schema, func(_ *Context, limits *table.TempLimits, inputs []*table.Temp) (*table.Temp, error) {
		out := table.NewTemp(schema, limits)
		for _, in := range inputs {
			for _, row := range in.Rows() {
				if err := out.Insert(row); err != nil {
					return nil, err
				}
			}
		}
		return out, nil
	}, nil
}

// bindSend marks the fragment output; the engine decides where it goes.
func bindSend(_ *binder, _ *plan.Node, inputs []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	return inputs[0], func(_ *Context, _ *table.TempLimits, inputs []*table.Temp) (*table.Temp, error) {
		return inputs[0], nil
	}, nil
}
