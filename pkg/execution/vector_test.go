package execution

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitekernel/pkg/catalog"
	"sitekernel/pkg/dberror"
	"sitekernel/pkg/plan"
	"sitekernel/pkg/table"
	"sitekernel/pkg/tuple"
	"sitekernel/pkg/types"
	"sitekernel/pkg/undo"
)

// ============================================================================
// Fixtures
// ============================================================================

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	require.NoError(t, c.Apply(catalog.Diff{Additions: []catalog.TableDef{
		{
			ID:   1,
			Name: "WAREHOUSE",
			Columns: []catalog.ColumnDef{
				{Name: "W_ID", Type: "INTEGER"},
				{Name: "W_NAME", Type: "VARCHAR", Nullable: true},
				{Name: "W_YTD", Type: "FLOAT", Nullable: true},
			},
			PrimaryKey: []string{"W_ID"},
		},
		{
			ID:   2,
			Name: "DISTRICT",
			Columns: []catalog.ColumnDef{
				{Name: "D_ID", Type: "INTEGER"},
				{Name: "D_W_ID", Type: "INTEGER"},
			},
		},
	}}))

	w, err := c.TableByName("WAREHOUSE")
	require.NoError(t, err)
	for _, r := range []tuple.Tuple{
		{types.NewInteger(1), types.NewVarchar("alpha"), types.NewFloat(10)},
		{types.NewInteger(2), types.NewVarchar("beta"), types.NewFloat(20)},
		{types.NewInteger(3), types.NewVarchar("alpha"), types.Null(types.FloatType)},
	} {
		_, err := w.Insert(r, undo.NewSentinel())
		require.NoError(t, err)
	}

	d, err := c.TableByName("DISTRICT")
	require.NoError(t, err)
	for _, r := range []tuple.Tuple{
		{types.NewInteger(10), types.NewInteger(1)},
		{types.NewInteger(11), types.NewInteger(1)},
		{types.NewInteger(20), types.NewInteger(2)},
	} {
		_, err := d.Insert(r, undo.NewSentinel())
		require.NoError(t, err)
	}
	return c
}

func build(t *testing.T, c *catalog.Catalog, raw string) *Vector {
	t.Helper()
	v, err := NewVector(plan.FragmentID([]byte(raw)), []byte(raw), c, table.NewTempLimits(0, 0))
	require.NoError(t, err)
	return v
}

func run(t *testing.T, v *Vector, ctx *Context) *table.Temp {
	t.Helper()
	out, err := v.Execute(ctx)
	require.NoError(t, err)
	return out
}

func column(out *table.Temp, i int) []string {
	var vals []string
	for _, r := range out.Rows() {
		vals = append(vals, r[i].String())
	}
	return vals
}

// ============================================================================
// Read-only operators
// ============================================================================

func TestSeqScan_PredicateWithParameter(t *testing.T) {
	c := newCatalog(t)
	v := build(t, c, `{"nodes":[{"id":1,"type":"SEQSCAN","table":"WAREHOUSE",
	  "predicate":{"type":"COMPARE","op":">=","left":{"type":"COLUMN","name":"W_ID"},"right":{"type":"PARAMETER","index":0}}}]}`)

	assert.False(t, v.Mutates())
	out := run(t, v, &Context{Tables: c, Params: []types.Value{types.NewBigInt(2)}})
	assert.Equal(t, []string{"2", "3"}, column(out, 0))

	_, err := v.Execute(&Context{Tables: c})
	assert.True(t, errors.Is(err, dberror.ErrMalformedParameters))
}

func TestProjection_Arithmetic(t *testing.T) {
	c := newCatalog(t)
	v := build(t, c, `{"nodes":[
	  {"id":1,"type":"SEQSCAN","table":"WAREHOUSE"},
	  {"id":2,"type":"PROJECTION","children":[1],"output":[
	    {"name":"NAME","expr":{"type":"COLUMN","name":"W_NAME"}},
	    {"name":"DOUBLED","expr":{"type":"ARITH","op":"*","left":{"type":"COLUMN","index":0},
	                                "right":{"type":"CONSTANT","value_type":"INTEGER","value":2}}}]}]}`)

	assert.Equal(t, "NAME VARCHAR,DOUBLED BIGINT", v.OutputSchema().String())
	out := run(t, v, &Context{Tables: c})
	assert.Equal(t, []string{"2", "4", "6"}, column(out, 1))
}

func TestProjection_ParameterNeedsType(t *testing.T) {
	c := newCatalog(t)
	raw := `{"nodes":[{"id":1,"type":"SEQSCAN","table":"WAREHOUSE"},
	  {"id":2,"type":"PROJECTION","children":[1],"output":[{"name":"P","expr":{"type":"PARAMETER","index":0}}]}]}`
	_, err := NewVector(1, []byte(raw), c, table.NewTempLimits(0, 0))
	assert.True(t, errors.Is(err, dberror.ErrSchemaMismatch))
}

func TestOrderByLimit(t *testing.T) {
	c := newCatalog(t)
	v := build(t, c, `{"nodes":[
	  {"id":1,"type":"SEQSCAN","table":"WAREHOUSE"},
	  {"id":2,"type":"ORDERBY","children":[1],"sort_keys":[
	    {"expr":{"type":"COLUMN","name":"W_NAME"}},
	    {"expr":{"type":"COLUMN","name":"W_ID"},"desc":true}]},
	  {"id":3,"type":"LIMIT","children":[2],"limit":2,"offset":1}]}`)

	out := run(t, v, &Context{Tables: c})
	assert.Equal(t, []string{"1", "2"}, column(out, 0))
}

func TestAggregate_GroupBy(t *testing.T) {
	c := newCatalog(t)
	v := build(t, c, `{"nodes":[
	  {"id":1,"type":"SEQSCAN","table":"WAREHOUSE"},
	  {"id":2,"type":"AGGREGATE","children":[1],
	   "group_by":[{"name":"NAME","expr":{"type":"COLUMN","name":"W_NAME"}}],
	   "aggregates":[
	     {"type":"COUNT_STAR","name":"N"},
	     {"type":"COUNT","name":"YTDS","expr":{"type":"COLUMN","name":"W_YTD"}},
	     {"type":"SUM","name":"TOTAL","expr":{"type":"COLUMN","name":"W_YTD"}},
	     {"type":"MAX","name":"TOP","expr":{"type":"COLUMN","name":"W_ID"}},
	     {"type":"AVG","name":"MEAN","expr":{"type":"COLUMN","name":"W_ID"}}]}]}`)

	out := run(t, v, &Context{Tables: c})
	require.Equal(t, 2, out.RowCount())
	assert.Equal(t, "alpha\t2\t1\t10\t3\t2", out.Rows()[0].String())
	assert.Equal(t, "beta\t1\t1\t20\t2\t2", out.Rows()[1].String())
}

func TestAggregate_EmptyInputWithoutGroupBy(t *testing.T) {
	c := newCatalog(t)
	v := build(t, c, `{"nodes":[
	  {"id":1,"type":"SEQSCAN","table":"WAREHOUSE","predicate":{"type":"COMPARE","op":"<","left":{"type":"COLUMN","index":0},"right":{"type":"CONSTANT","value_type":"INTEGER","value":0}}},
	  {"id":2,"type":"AGGREGATE","children":[1],"aggregates":[{"type":"COUNT_STAR"},{"type":"MIN","expr":{"type":"COLUMN","index":0}}]}]}`)

	out := run(t, v, &Context{Tables: c})
	require.Equal(t, 1, out.RowCount())
	assert.Equal(t, "0\tNULL", out.Rows()[0].String())
}

func TestNestLoopJoin(t *testing.T) {
	c := newCatalog(t)
	v := build(t, c, `{"nodes":[
	  {"id":1,"type":"SEQSCAN","table":"WAREHOUSE"},
	  {"id":2,"type":"SEQSCAN","table":"DISTRICT"},
	  {"id":3,"type":"NESTLOOP","children":[1,2],"predicate":{"type":"COMPARE","op":"=",
	    "left":{"type":"COLUMN","name":"W_ID"},"right":{"type":"COLUMN","name":"D_W_ID","side":"inner"}}},
	  {"id":4,"type":"PROJECTION","children":[3],"output":[
	    {"name":"W","expr":{"type":"COLUMN","name":"W_ID"}},{"name":"D","expr":{"type":"COLUMN","name":"D_ID"}}]}]}`)

	out := run(t, v, &Context{Tables: c})
	assert.Equal(t, []string{"10", "11", "20"}, column(out, 1))
}

func TestUnion(t *testing.T) {
	c := newCatalog(t)
	v := build(t, c, `{"nodes":[
	  {"id":1,"type":"SEQSCAN","table":"DISTRICT"},
	  {"id":2,"type":"SEQSCAN","table":"DISTRICT"},
	  {"id":3,"type":"UNION","children":[1,2]}]}`)
	assert.Equal(t, 6, run(t, v, &Context{Tables: c}).RowCount())

	_, err := NewVector(9, []byte(`{"nodes":[
	  {"id":1,"type":"SEQSCAN","table":"DISTRICT"},
	  {"id":2,"type":"SEQSCAN","table":"WAREHOUSE"},
	  {"id":3,"type":"UNION","children":[1,2]}]}`), c, table.NewTempLimits(0, 0))
	assert.True(t, errors.Is(err, dberror.ErrSchemaMismatch))
}

func TestReceive(t *testing.T) {
	c := newCatalog(t)
	v := build(t, c, `{"nodes":[
	  {"id":1,"type":"RECEIVE","columns":[{"name":"modified_tuples","type":"BIGINT"}]},
	  {"id":2,"type":"AGGREGATE","children":[1],"aggregates":[{"type":"SUM","name":"TOTAL","expr":{"type":"COLUMN","index":0}}]}]}`)

	_, err := v.Execute(&Context{Tables: c})
	assert.True(t, errors.Is(err, dberror.ErrMissingDependency))

	in := table.NewTemp(ModifiedTuplesSchema, nil)
	require.NoError(t, in.Insert(tuple.Tuple{types.NewBigInt(3)}))
	require.NoError(t, in.Insert(tuple.Tuple{types.NewBigInt(4)}))
	out := run(t, v, &Context{Tables: c, Input: in})
	assert.Equal(t, []string{"7"}, column(out, 0))

	wrong := table.NewTemp(tuple.MustSchema("x", types.VarcharType), nil)
	_, err = v.Execute(&Context{Tables: c, Input: wrong})
	assert.True(t, errors.Is(err, dberror.ErrSchemaMismatch))
}

func TestNewVector_UnknownTable(t *testing.T) {
	c := newCatalog(t)
	_, err := NewVector(1, []byte(`{"nodes":[{"id":1,"type":"SEQSCAN","table":"NOPE"}]}`), c, table.NewTempLimits(0, 0))
	assert.True(t, errors.Is(err, dberror.ErrUnknownTable))

	_, err = NewVector(1, []byte(`{"nodes":[{"id":1,"type":"SEQSCAN","table":"WAREHOUSE",
	  "predicate":{"type":"COMPARE","op":"=","left":{"type":"COLUMN","name":"NOPE"},"right":{"type":"CONSTANT","value_type":"INTEGER","value":1}}}]}`),
		c, table.NewTempLimits(0, 0))
	assert.True(t, errors.Is(err, dberror.ErrSchemaMismatch))
}

// ============================================================================
// DML and undo
// ============================================================================

func TestDML_CountsAndUndo(t *testing.T) {
	c := newCatalog(t)
	log := undo.NewLog()
	q, err := log.Generate(100)
	require.NoError(t, err)

	insert := build(t, c, `{"nodes":[
	  {"id":1,"type":"MATERIALIZE","columns":[{"name":"A","type":"INTEGER"},{"name":"B","type":"VARCHAR"},{"name":"C","type":"FLOAT"}],
	   "rows":[[{"type":"PARAMETER","index":0},{"type":"CONSTANT","value_type":"VARCHAR","value":"gamma"},{"type":"CONSTANT","value_type":"FLOAT","value":1.5}]]},
	  {"id":2,"type":"INSERT","table":"WAREHOUSE","children":[1]}]}`)
	update := build(t, c, `{"nodes":[{"id":1,"type":"UPDATE","table":"WAREHOUSE",
	  "predicate":{"type":"COMPARE","op":"=","left":{"type":"COLUMN","name":"W_NAME"},"right":{"type":"CONSTANT","value_type":"VARCHAR","value":"alpha"}},
	  "assignments":[{"column":"W_YTD","expr":{"type":"CONSTANT","value_type":"FLOAT","value":99}}]}]}`)
	del := build(t, c, `{"nodes":[{"id":1,"type":"DELETE","table":"DISTRICT"}]}`)
	assert.True(t, insert.Mutates())

	ctx := &Context{Tables: c, Quantum: q, Params: []types.Value{types.NewBigInt(4)}}
	assert.Equal(t, []string{"1"}, column(run(t, insert, ctx), 0))
	assert.Equal(t, []string{"2"}, column(run(t, update, ctx), 0))
	out := run(t, del, ctx)
	assert.True(t, out.Schema().Equals(ModifiedTuplesSchema))
	assert.Equal(t, []string{"3"}, column(out, 0))
	assert.Equal(t, int64(6), ctx.TuplesModified())

	w, _ := c.TableByName("WAREHOUSE")
	d, _ := c.TableByName("DISTRICT")
	assert.Equal(t, 4, w.RowCount())
	assert.Equal(t, 0, d.RowCount())

	_, err = log.Undo(100)
	require.NoError(t, err)
	assert.Equal(t, 3, w.RowCount())
	assert.Equal(t, 3, d.RowCount())
	row, ok := w.Get(0)
	require.True(t, ok)
	assert.Equal(t, 10.0, row[2].Float())
}

func TestDML_ConstraintViolationLeavesPartialWorkForUndo(t *testing.T) {
	c := newCatalog(t)
	log := undo.NewLog()
	q, err := log.Generate(1)
	require.NoError(t, err)

	insert := build(t, c, `{"nodes":[
	  {"id":1,"type":"MATERIALIZE","columns":[{"name":"A","type":"INTEGER"},{"name":"B","type":"VARCHAR"},{"name":"C","type":"FLOAT"}],
	   "rows":[[{"type":"CONSTANT","value_type":"INTEGER","value":8},{"type":"CONSTANT","value_type":"VARCHAR","value":"x"},{"type":"CONSTANT","value_type":"FLOAT","value":null}],
	           [{"type":"CONSTANT","value_type":"INTEGER","value":1},{"type":"CONSTANT","value_type":"VARCHAR","value":"dup"},{"type":"CONSTANT","value_type":"FLOAT","value":null}]]},
	  {"id":2,"type":"INSERT","table":"WAREHOUSE","children":[1]}]}`)

	_, err = insert.Execute(&Context{Tables: c, Quantum: q})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberror.ErrConstraintViolation))
	assert.Equal(t, 1, q.Len(), "the first insert stays recorded")

	_, err = log.Undo(1)
	require.NoError(t, err)
	w, _ := c.TableByName("WAREHOUSE")
	assert.Equal(t, 3, w.RowCount())
}

func TestExecute_MutatingWithoutQuantumIsFatal(t *testing.T) {
	c := newCatalog(t)
	del := build(t, c, `{"nodes":[{"id":1,"type":"DELETE","table":"DISTRICT"}]}`)
	_, err := del.Execute(&Context{Tables: c})
	assert.True(t, dberror.IsFatal(err))
}

// ============================================================================
// Temp table limits
// ============================================================================

func TestExecute_TempLimitResetsEachRun(t *testing.T) {
	c := newCatalog(t)
	raw := `{"nodes":[{"id":1,"type":"SEQSCAN","table":"DISTRICT"}]}`
	v, err := NewVector(1, []byte(raw), c, table.NewTempLimits(0, 40))
	require.NoError(t, err)

	// three rows of 12 bytes fit under 40
	out, err := v.Execute(&Context{Tables: c})
	require.NoError(t, err)
	assert.Equal(t, 3, out.RowCount())

	out, err = v.Execute(&Context{Tables: c})
	require.NoError(t, err, "usage does not accumulate across runs")
	assert.Equal(t, 3, out.RowCount())

	d, _ := c.TableByName("DISTRICT")
	_, err = d.Insert(tuple.Tuple{types.NewInteger(30), types.NewInteger(3)}, undo.NewSentinel())
	require.NoError(t, err)

	_, err = v.Execute(&Context{Tables: c})
	assert.True(t, errors.Is(err, dberror.ErrTempTableMemoryExceeded))
}
