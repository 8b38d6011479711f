package execution

import (
	"sitekernel/pkg/dberror"
	"sitekernel/pkg/plan"
	"sitekernel/pkg/table"
	"sitekernel/pkg/tuple"
)

func bindSeqScan(b *binder, n *plan.Node, _ []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	t, err := b.table(n)
	if err != nil {
		return nil, nil, err
	}
	schema := t.Schema()
	pred, err := bindExpr(n.Predicate, schema, nil)
	if err != nil {
		return nil, nil, err
	}

	name := n.Table
	return schema, func(ctx *Context, limits *table.TempLimits, _ []*table.Temp) (*table.Temp, error) {
		t, err := resolveTable(ctx, name, schema)
		if err != nil {
			return nil, err
		}
		out := table.NewTemp(schema, limits)
		err = t.Scan(func(_ int, row tuple.Tuple) error {
			ok, err := pred.matches(ctx.Params, row, nil)
			if err != nil || !ok {
				return err
			}
			return out.Insert(row)
		})
		return out, err
	}, nil
}

func declaredSchema(n *plan.Node) (*tuple.Schema, error) {
	if len(n.Columns) == 0 {
		return nil, schemaMismatch("%s node %d must declare its columns", n.Kind, n.ID)
	}
	cols := make([]tuple.Column, len(n.Columns))
	for i, c := range n.Columns {
		cols[i] = tuple.Column{Name: c.Name, Type: c.Type, Nullable: true}
	}
	return tuple.NewSchema(cols)
}

// bindReceive reads the input dependency taken by the engine for this run.
func bindReceive(_ *binder, n *plan.Node, _ []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	schema, err := declaredSchema(n)
	if err != nil {
		return nil, nil, err
	}
	return schema, func(ctx *Context, _ *table.TempLimits, _ []*table.Temp) (*table.Temp, error) {
		if ctx.Input == nil {
			return nil, dberror.New(dberror.ErrCategoryDependency, dberror.CodeMissingDependency,
				"fragment receives a dependency but none was supplied").
				At("Receive", "ExecutorVector")
		}
		if !ctx.Input.Schema().Equals(schema) {
			return nil, schemaMismatch("dependency table is %s, fragment expects %s",
				ctx.Input.Schema(), schema).At("Receive", "ExecutorVector")
		}
		return ctx.Input, nil
	}, nil
}

// bindMaterialize produces literal rows, typically the VALUES of an INSERT.
func bindMaterialize(_ *binder, n *plan.Node, _ []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	schema, err := declaredSchema(n)
	if err != nil {
		return nil, nil, err
	}
	rows := make([][]*boundExpr, len(n.Rows))
	for i, row := range n.Rows {
		rows[i] = make([]*boundExpr, len(row))
		for j, e := range row {
			if rows[i][j], err = bindExpr(e, nil, nil); err != nil {
				return nil, nil, err
			}
		}
	}
	return schema, func(ctx *Context, limits *table.TempLimits, _ []*table.Temp) (*table.Temp, error) {
		out := table.NewTemp(schema, limits)
		for _, exprs := range rows {
			row := make(tuple.Tuple, len(exprs))
			for j, e := range exprs {
				v, err := e.eval(ctx.Params, nil, nil)
				if err != nil {
					return nil, err
				}
				row[j] = v
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
