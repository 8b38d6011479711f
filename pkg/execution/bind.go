package execution

import (
	"strconv"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/plan"
	"sitekernel/pkg/table"
	"sitekernel/pkg/tuple"
	"sitekernel/pkg/types"
)

// execFunc runs one bound executor over its children's outputs.
type execFunc func(ctx *Context, limits *table.TempLimits, inputs []*table.Temp) (*table.Temp, error)

// bindFunc validates a node against its input schemas and the catalog and
// returns the node's output schema together with its executor.
type bindFunc func(b *binder, n *plan.Node, inputs []*tuple.Schema) (*tuple.Schema, execFunc, error)

var dispatch = map[plan.Kind]bindFunc{
	plan.KindSeqScan:     bindSeqScan,
	plan.KindReceive:     bindReceive,
	plan.KindMaterialize: bindMaterialize,
	plan.KindProjection:  bindProjection,
	plan.KindLimit:       bindLimit,
	plan.KindOrderBy:     bindOrderBy,
	plan.KindNestLoop:    bindNestLoop,
	plan.KindUnion:       bindUnion,
	plan.KindSend:        bindSend,
	plan.KindAggregate:   bindAggregate,
	plan.KindInsert:      bindInsert,
	plan.KindUpdate:      bindUpdate,
	plan.KindDelete:      bindDelete,
}

type binder struct {
	tables TableResolver
}

func (b *binder) table(n *plan.Node) (*table.Persistent, error) {
	t, err := b.tables.TableByName(n.Table)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func schemaMismatch(format string, args ...any) *dberror.DBError {
	return dberror.Newf(dberror.ErrCategoryPlan, dberror.CodeSchemaMismatch,
		"plan node does not fit its input", format, args...)
}

// resolveTable looks the table up again at run time and checks that its
// layout is still the one the executor was bound to.
func resolveTable(ctx *Context, name string, bound *tuple.Schema) (*table.Persistent, error) {
	t, err := ctx.Tables.TableByName(name)
	if err != nil {
		return nil, err
	}
	if !t.Schema().Equals(bound) {
		return nil, schemaMismatch("table %s changed layout since the fragment was loaded", name).
			At("Execute", "ExecutorVector")
	}
	return t, nil
}

// outputSchema builds the schema of a node that computes named expressions.
func outputSchema(n *plan.Node, cols []plan.OutputColumn, exprs []*boundExpr) ([]tuple.Column, error) {
	out := make([]tuple.Column, len(cols))
	for i, oc := range cols {
		typ := oc.Type
		if typ == types.InvalidType {
			typ = exprs[i].typ
		}
		if !typ.Valid() {
			return nil, schemaMismatch("%s node %d output %d needs an explicit type", n.Kind, n.ID, i)
		}
		name := oc.Name
		if name == "" {
			name = "C" + strconv.Itoa(i+1)
		}
		out[i] = tuple.Column{Name: name, Type: typ, Nullable: true}
	}
	return out, nil
}
