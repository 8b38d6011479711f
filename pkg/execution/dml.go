package execution

import (
	"sitekernel/pkg/plan"
	"sitekernel/pkg/table"
	"sitekernel/pkg/tuple"
	"sitekernel/pkg/types"
)

// ModifiedTuplesSchema is the single-column result of every DML fragment.
var ModifiedTuplesSchema = tuple.MustSchema("modified_tuples", types.BigIntType)

func modifiedTuples(ctx *Context, limits *table.TempLimits, count int64) (*table.Temp, error) {
	ctx.tuplesModified += count
	out := table.NewTemp(ModifiedTuplesSchema, limits)
	if err := out.Insert(tuple.Tuple{types.NewBigInt(count)}); err != nil {
		return nil, err
	}
	return out, nil
}

func bindInsert(b *binder, n *plan.Node, inputs []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	t, err := b.table(n)
	if err != nil {
		return nil, nil, err
	}
	target := t.Schema()
	if inputs[0].NumFields() != target.NumFields() {
		return nil, nil, schemaMismatch("INSERT node %d supplies %d columns, table %s has %d",
			n.ID, inputs[0].NumFields(), n.Table, target.NumFields())
	}

	name := n.Table
	return ModifiedTuplesSchema, func(ctx *Context, limits *table.TempLimits, inputs []*table.Temp) (*table.Temp, error) {
		t, err := resolveTable(ctx, name, target)
		if err != nil {
			return nil, err
		}
		var count int64
		for _, row := range inputs[0].Rows() {
			if _, err := t.Insert(row, ctx.Quantum); err != nil {
				return nil, err
			}
			count++
		}
		return modifiedTuples(ctx, limits, count)
	}, nil
}

func bindUpdate(b *binder, n *plan.Node, _ []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	t, err := b.table(n)
	if err != nil {
		return nil, nil, err
	}
	target := t.Schema()
	pred, err := bindExpr(n.Predicate, target, nil)
	if err != nil {
		return nil, nil, err
	}
	cols := make([]int, len(n.Assignments))
	exprs := make([]*boundExpr, len(n.Assignments))
	for i, a := range n.Assignments {
		if cols[i], err = target.FindFieldIndex(a.Column); err != nil {
			return nil, nil, schemaMismatch("UPDATE node %d: %v", n.ID, err)
		}
		if exprs[i], err = bindExpr(a.Expr, target, nil); err != nil {
			return nil, nil, err
		}
	}

	name := n.Table
	return ModifiedTuplesSchema, func(ctx *Context, limits *table.TempLimits, _ []*table.Temp) (*table.Temp, error) {
		t, err := resolveTable(ctx, name, target)
		if err != nil {
			return nil, err
		}
		type change struct {
			rowID int
			row   tuple.Tuple
		}
		var changes []change
		err = t.Scan(func(rowID int, row tuple.Tuple) error {
			ok, err := pred.matches(ctx.Params, row, nil)
			if err != nil || !ok {
				return err
			}
			updated := row.Clone()
			for i, e := range exprs {
				v, err := e.eval(ctx.Params, row, nil)
				if err != nil {
					return err
				}
				updated[cols[i]] = v
			}
			changes = append(changes, change{rowID: rowID, row: updated})
			return nil
		})
		if err != nil {
			return nil, err
		}
		for _, c := range changes {
			if err := t.Update(c.rowID, c.row, ctx.Quantum); err != nil {
				return nil, err
			}
		}
		return modifiedTuples(ctx, limits, int64(len(changes)))
	}, nil
}

func bindDelete(b *binder, n *plan.Node, _ []*tuple.Schema) (*tuple.Schema, execFunc, error) {
	t, err := b.table(n)
	if err != nil {
		return nil, nil, err
	}
	target := t.Schema()
	pred, err := bindExpr(n.Predicate, target, nil)
	if err != nil {
		return nil, nil, err
	}

	name := n.Table
	return ModifiedTuplesSchema, func(ctx *Context, limits *table.TempLimits, _ []*table.Temp) (*table.Temp, error) {
		t, err := resolveTable(ctx, name, target)
		if err != nil {
			return nil, err
		}
		var victims []int
		err = t.Scan(func(rowID int, row tuple.Tuple) error {
			ok, err := pred.matches(ctx.Params, row, nil)
			if ok {
				victims = append(victims, rowID)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, id := range victims {
			if err := t.Delete(id, ctx.Quantum); err != nil {
				return nil, err
			}
		}
		return modifiedTuples(ctx, limits, int64(len(victims)))
	}, nil
}
