package execution

import (
	"sitekernel/pkg/dberror"
	"sitekernel/pkg/logging"
	"sitekernel/pkg/plan"
	"sitekernel/pkg/table"
	"sitekernel/pkg/tuple"
)

type step struct {
	index  int
	node   *plan.Node
	schema *tuple.Schema
	inputs []int
	exec   execFunc
}

// Vector is the executable form of one plan fragment: its executors in
// execute order plus the temp-table limits they account against. A vector
// is built once per fragment id and reused by every execution of it.
type Vector struct {
	id         int64
	plan       *plan.Plan
	steps      []step
	limits     *table.TempLimits
	size       int64
	paramCount int
}

// NewVector parses raw and binds one executor per node against tables.
// Any parse or bind failure rejects the whole fragment.
//
// Parameters:
//   - id: the fragment id, normally plan.FragmentID(raw)
//   - raw: the serialized plan
//   - tables: the catalog the fragment runs against
//   - limits: temp-table limits owned by the new vector
//
// Returns:
//   - *Vector: the bound vector
//   - error: MALFORMED_PLAN, SCHEMA_MISMATCH or UNKNOWN_TABLE
func NewVector(id int64, raw []byte, tables TableResolver, limits *table.TempLimits) (*Vector, error) {
	p, err := plan.Parse(raw)
	if err != nil {
		return nil, err
	}

	b := &binder{tables: tables}
	schemas := make([]*tuple.Schema, len(p.Nodes))
	v := &Vector{
		id:         id,
		plan:       p,
		limits:     limits,
		size:       int64(len(raw)),
		paramCount: p.ParamCount(),
	}
	for _, idx := range p.ExecuteOrder {
		n := p.Nodes[idx]
		bind, ok := dispatch[n.Kind]
		if !ok {
			return nil, dberror.Newf(dberror.ErrCategoryPlan, dberror.CodeMalformedPlan,
				"no executor for plan node", "%s node %d", n.Kind, n.ID)
		}
		inputs := make([]*tuple.Schema, len(n.Children))
		for i, c := range n.Children {
			inputs[i] = schemas[c]
		}
		schema, exec, err := bind(b, n, inputs)
		if err != nil {
			return nil, dberror.Wrap(err, dberror.CodeSchemaMismatch, "Bind"+n.Kind.String(), "ExecutorVector")
		}
		schemas[idx] = schema
		v.steps = append(v.steps, step{index: idx, node: n, schema: schema, inputs: n.Children, exec: exec})
	}

	logging.WithFragment(id).Debug("executor vector built",
		"nodes", len(v.steps), "mutates", v.Mutates(), "params", v.paramCount)
	return v, nil
}

func (v *Vector) ID() int64 { return v.id }

// Size is the estimate the fragment cache budgets against.
func (v *Vector) Size() int64 { return v.size }

// Mutates reports whether running the vector can change persistent tables.
func (v *Vector) Mutates() bool { return v.plan.Mutates() }

func (v *Vector) Limits() *table.TempLimits { return v.limits }

// OutputSchema is the schema of the fragment's result table.
func (v *Vector) OutputSchema() *tuple.Schema {
	return v.steps[len(v.steps)-1].schema
}

// Plan exposes the parsed fragment.
func (v *Vector) Plan() *plan.Plan { return v.plan }

// Execute runs every executor in order and returns the root's output. The
// temp-table counter is reset first, so a previous run that hit the memory
// ceiling does not affect this one.
func (v *Vector) Execute(ctx *Context) (*table.Temp, error) {
	v.limits.Reset()

	if len(ctx.Params) < v.paramCount {
		return nil, dberror.New(dberror.ErrCategoryUser, dberror.CodeMalformedParameters,
			"too few parameters for fragment").
			WithDetail("fragment %d references %d, got %d", v.id, v.paramCount, len(ctx.Params)).
			At("Execute", "ExecutorVector")
	}
	if v.Mutates() && ctx.Quantum == nil {
		return nil, dberror.New(dberror.ErrCategoryFatal, dberror.CodeNoUndoQuantum,
			"mutating fragment run without an undo quantum").
			At("Execute", "ExecutorVector")
	}

	outputs := make([]*table.Temp, len(v.plan.Nodes))
	for _, s := range v.steps {
		inputs := make([]*table.Temp, len(s.inputs))
		for i, c := range s.inputs {
			inputs[i] = outputs[c]
		}
		out, err := s.exec(ctx, v.limits, inputs)
		if err != nil {
			return nil, dberror.Wrap(err, dberror.CodeInternal, s.node.Kind.String(), "ExecutorVector")
		}
		outputs[s.index] = out
	}
	return outputs[v.plan.Root()], nil
}
