package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitekernel/pkg/catalog"
	"sitekernel/pkg/config"
	"sitekernel/pkg/dberror"
	"sitekernel/pkg/dependency"
	"sitekernel/pkg/params"
	"sitekernel/pkg/plan"
	"sitekernel/pkg/stats"
	"sitekernel/pkg/table"
	"sitekernel/pkg/types"
	"sitekernel/pkg/wire"
)

// ============================================================================
// Fixtures
// ============================================================================

const testCatalog = `{"additions":[
  {"id":1,"name":"WAREHOUSE","columns":[
    {"name":"W_ID","type":"INTEGER"},
    {"name":"W_NAME","type":"VARCHAR","nullable":true}],
   "primary_key":["W_ID"]},
  {"id":2,"name":"DISTRICT","columns":[
    {"name":"D_ID","type":"INTEGER"},
    {"name":"D_W_ID","type":"INTEGER"}]}]}`

const (
	scanWarehouse = `{"nodes":[{"id":1,"type":"SEQSCAN","table":"WAREHOUSE"}]}`
	scanDistrict  = `{"nodes":[{"id":1,"type":"SEQSCAN","table":"DISTRICT"}]}`

	insertWarehouse = `{"nodes":[
  {"id":1,"type":"MATERIALIZE","columns":[{"name":"ID","type":"INTEGER"},{"name":"NAME","type":"VARCHAR"}],
   "rows":[[{"type":"PARAMETER","index":0},{"type":"PARAMETER","index":1}]]},
  {"id":2,"type":"INSERT","table":"WAREHOUSE","children":[1]}]}`

	insertDistrict = `{"nodes":[
  {"id":1,"type":"MATERIALIZE","columns":[{"name":"ID","type":"INTEGER"},{"name":"W","type":"INTEGER"}],
   "rows":[[{"type":"PARAMETER","index":0},{"type":"PARAMETER","index":1}]]},
  {"id":2,"type":"INSERT","table":"DISTRICT","children":[1]}]}`

	sumReceived = `{"nodes":[
  {"id":1,"type":"RECEIVE","columns":[{"name":"D_ID","type":"INTEGER"},{"name":"D_W_ID","type":"INTEGER"}]},
  {"id":2,"type":"AGGREGATE","children":[1],"aggregates":[
    {"type":"COUNT_STAR","name":"N"},{"type":"SUM","name":"S","expr":{"type":"COLUMN","index":0}}]}]}`
)

func testConfig() config.EngineConfig {
	cfg := config.Default().Engine
	cfg.ResultBufferSize = 64 << 10
	cfg.ExceptionBufferSize = 1 << 10
	return cfg
}

func newEngine(t *testing.T, cfg config.EngineConfig, opts ...Option) *Engine {
	t.Helper()
	e := New(cfg, 0, opts...)
	require.NoError(t, e.LoadCatalog([]byte(testCatalog)))
	return e
}

func load(t *testing.T, e *Engine, raw string) int64 {
	t.Helper()
	id, _, _, err := e.LoadFragment([]byte(raw))
	require.NoError(t, err)
	return id
}

func exec(e *Engine, id, txn int64, args ...types.Value) Status {
	inv := NewInvocation(id, txn, params.Append(nil, args...))
	return e.ExecuteQuery(inv)
}

func exception(t *testing.T, e *Engine) *wire.Exception {
	t.Helper()
	ex, err := wire.ReadException(e.ExceptionBytes())
	require.NoError(t, err)
	return ex
}

func results(t *testing.T, e *Engine) []wire.Result {
	t.Helper()
	rs, err := wire.ReadResults(e.ResultBytes())
	require.NoError(t, err)
	return rs
}

func rowCount(t *testing.T, e *Engine, name string) int {
	t.Helper()
	tbl, err := e.Catalog().TableByName(name)
	require.NoError(t, err)
	return tbl.RowCount()
}

func insertW(e *Engine, txn int64, id int32) Status {
	return exec(e, plan.FragmentID([]byte(insertWarehouse)), txn, types.NewInteger(id), types.NewVarchar("w"))
}

// ============================================================================
// Fragment execution
// ============================================================================

func TestExecuteQuery_ScanEmptyTable(t *testing.T) {
	e := newEngine(t, testConfig())
	id, hit, size, err := e.LoadFragment([]byte(scanWarehouse))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(1), size)

	st := e.ExecuteQuery(Invocation{
		FragmentID:  id,
		OutputDepID: dependency.NoDependency,
		InputDepID:  dependency.NoDependency,
		TxnID:       1,
		First:       true,
		Last:        true,
	})
	require.Equal(t, StatusSuccess, st)
	assert.Equal(t, StateResultReady, e.State())
	assert.False(t, e.DirtyBatch())
	assert.Equal(t, int64(0), e.TuplesModified())
	assert.Nil(t, exception(t, e))

	rs := results(t, e)
	require.Len(t, rs, 1)
	require.NotNil(t, rs[0].Table)
	assert.Equal(t, 0, rs[0].Table.RowCount())
	assert.Equal(t, "W_ID INTEGER,W_NAME VARCHAR", rs[0].Table.Schema().String())

	id2, hit, _, err := e.LoadFragment([]byte(scanWarehouse))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, id, id2)
}

func TestExecuteQuery_MutationMarksBatchDirty(t *testing.T) {
	e := newEngine(t, testConfig())
	load(t, e, insertWarehouse)
	require.NoError(t, e.SetUndoToken(10))

	require.Equal(t, StatusSuccess, insertW(e, 1, 7))
	assert.True(t, e.DirtyBatch())
	assert.Equal(t, int64(1), e.TuplesModified())
	assert.Equal(t, 1, rowCount(t, e, "WAREHOUSE"))

	rs := results(t, e)
	require.Len(t, rs, 1)
	assert.Equal(t, "1", rs[0].Table.Rows()[0][0].String())

	scan := load(t, e, scanWarehouse)
	require.Equal(t, StatusSuccess, exec(e, scan, 2))
	assert.False(t, e.DirtyBatch(), "a new batch starts clean")
	assert.Equal(t, 1.0, e.Stats()[stats.TuplesModified])
}

func TestExecuteQuery_UnknownFragment(t *testing.T) {
	e := newEngine(t, testConfig())
	require.Equal(t, StatusError, exec(e, 12345, 1))
	ex := exception(t, e)
	require.NotNil(t, ex)
	assert.Equal(t, dberror.CodeUnknownFragment, ex.Code)
	assert.Nil(t, e.Faulted())
}

func TestExecuteQuery_ParameterOverflow(t *testing.T) {
	cfg := testConfig()
	cfg.MaxParamCount = 2
	e := newEngine(t, cfg)
	id := load(t, e, scanWarehouse)

	st := exec(e, id, 1, types.NewInteger(1), types.NewInteger(2), types.NewInteger(3))
	require.Equal(t, StatusError, st)
	assert.Equal(t, dberror.CodeParameterOverflow, exception(t, e).Code)
	assert.Equal(t, StateFailed, e.State())

	require.Equal(t, StatusSuccess, exec(e, id, 1))
	assert.Nil(t, exception(t, e), "the marker is rewritten on every call")
}

func TestExecuteQuery_ConstraintViolationKeepsUndo(t *testing.T) {
	e := newEngine(t, testConfig())
	load(t, e, insertWarehouse)
	require.NoError(t, e.SetUndoToken(1))
	require.Equal(t, StatusSuccess, insertW(e, 1, 1))

	require.Equal(t, StatusError, insertW(e, 1, 1))
	assert.Equal(t, dberror.CodeConstraintViolation, exception(t, e).Code)
	assert.Nil(t, e.Faulted())
	assert.Equal(t, 1, rowCount(t, e, "WAREHOUSE"), "no automatic rollback")

	require.NoError(t, e.UndoUndoToken(1))
	assert.Equal(t, 0, rowCount(t, e, "WAREHOUSE"))
}

func TestExecuteQuery_ReadOnlyRejectsMutation(t *testing.T) {
	e := newEngine(t, testConfig())
	id := load(t, e, insertWarehouse)
	require.NoError(t, e.SetUndoToken(1))

	inv := NewInvocation(id, 1, params.Append(nil, types.NewInteger(1), types.NewVarchar("x")))
	inv.ReadOnly = true
	require.Equal(t, StatusError, e.ExecuteQuery(inv))
	assert.Equal(t, dberror.CodeReadOnlyViolation, exception(t, e).Code)
	assert.Equal(t, 0, rowCount(t, e, "WAREHOUSE"))
}

func TestExecuteQuery_ReadOnlyNeedsNoQuantum(t *testing.T) {
	e := newEngine(t, testConfig())
	id := load(t, e, scanDistrict)
	inv := NewInvocation(id, 1, nil)
	inv.ReadOnly = true
	assert.Equal(t, StatusSuccess, e.ExecuteQuery(inv))
	_, armed := e.CurrentUndoToken()
	assert.False(t, armed)
}

func TestExecuteQuery_ReadOnlyRunsShareSentinel(t *testing.T) {
	e := newEngine(t, testConfig())
	id := plan.FragmentID([]byte(scanDistrict))
	v, err := e.buildVector(id, []byte(scanDistrict))
	require.NoError(t, err)

	first, err := e.quantumFor(NewInvocation(id, 1, nil), v)
	require.NoError(t, err)
	second, err := e.quantumFor(NewInvocation(id, 2, nil), v)
	require.NoError(t, err)

	assert.True(t, first.IsSentinel())
	assert.Same(t, first, second)
	assert.Same(t, e.sentinel, first)
}

func TestExecuteQuery_TempTableLimitPerRun(t *testing.T) {
	cfg := testConfig()
	cfg.TempTableMemoryLimit = 40
	e := newEngine(t, cfg)
	scan := load(t, e, scanDistrict)
	ins := load(t, e, insertDistrict)
	require.NoError(t, e.SetUndoToken(1))

	// each DISTRICT row is 12 bytes in a temp table
	for i := int32(0); i < 3; i++ {
		require.Equal(t, StatusSuccess, exec(e, ins, 1, types.NewInteger(i), types.NewInteger(1)))
	}
	require.Equal(t, StatusSuccess, exec(e, scan, 1))
	require.Equal(t, StatusSuccess, exec(e, scan, 1))

	require.Equal(t, StatusSuccess, exec(e, ins, 1, types.NewInteger(9), types.NewInteger(1)))
	require.Equal(t, StatusError, exec(e, scan, 1))
	assert.Equal(t, dberror.CodeTempTableMemoryExceeded, exception(t, e).Code)
	assert.Nil(t, e.Faulted())

	require.NoError(t, e.UndoUndoToken(1))
	require.Equal(t, StatusSuccess, exec(e, scan, 2), "the cached vector stays usable")
}

func TestExecuteQuery_ResultBufferOverflow(t *testing.T) {
	e := newEngine(t, testConfig())
	id := load(t, e, scanWarehouse)
	e.SetBuffers(make([]byte, 10), nil)

	require.Equal(t, StatusError, exec(e, id, 1))
	assert.Equal(t, dberror.CodeBufferOverflow, exception(t, e).Code)
}

func TestExecuteQuery_ResultOverflowAfterInsert(t *testing.T) {
	e := newEngine(t, testConfig())
	load(t, e, insertWarehouse)
	require.NoError(t, e.SetUndoToken(1))
	e.SetBuffers(make([]byte, 10), nil)

	require.Equal(t, StatusError, insertW(e, 1, 5))
	assert.Equal(t, dberror.CodeBufferOverflow, exception(t, e).Code)
	assert.Equal(t, int64(0), e.TuplesModified(), "a failed fragment reports no rows")
	assert.False(t, e.DirtyBatch())
	assert.Equal(t, 0.0, e.Stats()[stats.TuplesModified])
	assert.Empty(t, e.ResultBytes(), "no partial result entry")

	assert.Equal(t, 1, rowCount(t, e, "WAREHOUSE"), "the row stays until the coordinator undoes it")
	require.NoError(t, e.UndoUndoToken(1))
	assert.Equal(t, 0, rowCount(t, e, "WAREHOUSE"))
}

// ============================================================================
// Undo tokens
// ============================================================================

func TestSetUndoToken_Monotonic(t *testing.T) {
	e := newEngine(t, testConfig())
	require.NoError(t, e.SetUndoToken(5))
	require.NoError(t, e.SetUndoToken(5), "same token is a no-op")
	require.NoError(t, e.SetUndoToken(math.MaxInt64), "no transaction")
	tok, ok := e.CurrentUndoToken()
	require.True(t, ok)
	assert.Equal(t, int64(5), tok)

	err := e.SetUndoToken(3)
	assert.True(t, errors.Is(err, dberror.ErrNonMonotonicUndoToken))
	require.Error(t, e.Faulted())

	err = e.SetUndoToken(6)
	assert.True(t, errors.Is(err, dberror.ErrEngineFaulted))
	require.Equal(t, StatusError, exec(e, 1, 1))
	assert.Equal(t, dberror.CodeEngineFaulted, exception(t, e).Code)

	e.Reset()
	assert.NoError(t, e.Faulted())
	assert.NoError(t, e.SetUndoToken(1), "reset forgets token history")
}

func TestUndoUndoToken_NewestFirst(t *testing.T) {
	e := newEngine(t, testConfig())
	load(t, e, insertWarehouse)

	for i, tok := range []int64{1, 2, 3} {
		require.NoError(t, e.SetUndoToken(tok))
		require.Equal(t, StatusSuccess, insertW(e, tok, int32(i+1)))
	}
	assert.Equal(t, 3, rowCount(t, e, "WAREHOUSE"))

	require.NoError(t, e.UndoUndoToken(2))
	assert.Equal(t, 1, rowCount(t, e, "WAREHOUSE"))
	_, armed := e.CurrentUndoToken()
	assert.False(t, armed)

	w, err := e.Catalog().TableByName("WAREHOUSE")
	require.NoError(t, err)
	row, ok := w.Get(0)
	require.True(t, ok)
	assert.Equal(t, "1", row[0].String())
	assert.Equal(t, 2.0, e.Stats()[stats.UndoQuantaUndone])
}

func TestReleaseUndoToken_Commits(t *testing.T) {
	e := newEngine(t, testConfig())
	load(t, e, insertWarehouse)

	require.NoError(t, e.SetUndoToken(1))
	require.Equal(t, StatusSuccess, insertW(e, 1, 1))
	require.NoError(t, e.SetUndoToken(2))
	require.Equal(t, StatusSuccess, insertW(e, 2, 2))

	require.NoError(t, e.ReleaseUndoToken(1))
	tok, armed := e.CurrentUndoToken()
	require.True(t, armed, "releasing an older token keeps the current quantum")
	assert.Equal(t, int64(2), tok)

	require.NoError(t, e.UndoUndoToken(1))
	assert.Equal(t, 1, rowCount(t, e, "WAREHOUSE"), "released work is never undone")
	assert.Equal(t, 1.0, e.Stats()[stats.UndoQuantaReleased])
}

func TestExecuteQuery_MutationWithoutQuantumFaults(t *testing.T) {
	e := newEngine(t, testConfig())
	load(t, e, insertWarehouse)

	require.Equal(t, StatusError, insertW(e, 1, 1))
	ex := exception(t, e)
	assert.Equal(t, dberror.CodeNoUndoQuantum, ex.Code)
	assert.Equal(t, wire.ExceptionFatal, ex.Kind)
	require.Error(t, e.Faulted())

	err := e.UpdateCatalog(2, catalogDiff())
	assert.True(t, errors.Is(err, dberror.ErrEngineFaulted))
}

// ============================================================================
// Dependencies and batches
// ============================================================================

func TestExecutePlanFragments_ProducerConsumer(t *testing.T) {
	e := newEngine(t, testConfig())
	ins := load(t, e, insertDistrict)
	require.NoError(t, e.SetUndoToken(1))
	for i := int32(1); i <= 3; i++ {
		require.Equal(t, StatusSuccess, exec(e, ins, 1, types.NewInteger(i), types.NewInteger(1)))
	}

	scan := load(t, e, scanDistrict)
	sum := load(t, e, sumReceived)
	n, st := e.ExecutePlanFragments([]Invocation{
		{FragmentID: scan, OutputDepID: 100, InputDepID: dependency.NoDependency, TxnID: 2},
		{FragmentID: sum, OutputDepID: dependency.NoDependency, InputDepID: 100, TxnID: 2},
	})
	require.Equal(t, StatusSuccess, st)
	assert.Equal(t, 2, n)
	assert.Empty(t, e.PendingDependencies())

	rs := results(t, e)
	require.Len(t, rs, 2)
	assert.Equal(t, int32(100), rs[0].DepID)
	assert.Equal(t, 3, rs[0].Table.RowCount())
	assert.Equal(t, "3\t6", rs[1].Table.Rows()[0].String())
}

func TestExecutePlanFragments_ConsumerFirstFails(t *testing.T) {
	e := newEngine(t, testConfig())
	scan := load(t, e, scanDistrict)
	sum := load(t, e, sumReceived)

	n, st := e.ExecutePlanFragments([]Invocation{
		{FragmentID: sum, OutputDepID: dependency.NoDependency, InputDepID: 100},
		{FragmentID: scan, OutputDepID: 100, InputDepID: dependency.NoDependency},
	})
	assert.Equal(t, StatusError, st)
	assert.Equal(t, 0, n)
	assert.Equal(t, dberror.CodeMissingDependency, exception(t, e).Code)
}

func TestExecuteQuery_BatchIsolation(t *testing.T) {
	e := newEngine(t, testConfig())
	scan := load(t, e, scanDistrict)
	sum := load(t, e, sumReceived)

	producer := Invocation{FragmentID: scan, OutputDepID: 7, InputDepID: dependency.NoDependency, First: true, Last: true}
	require.Equal(t, StatusSuccess, e.ExecuteQuery(producer))
	assert.Equal(t, []int32{7}, e.PendingDependencies())
	assert.Equal(t, 1.0, e.Stats()[stats.DependenciesUnconsumed])

	consumer := Invocation{FragmentID: sum, OutputDepID: dependency.NoDependency, InputDepID: 7, First: true, Last: true}
	require.Equal(t, StatusError, e.ExecuteQuery(consumer))
	assert.Equal(t, dberror.CodeMissingDependency, exception(t, e).Code)
}

func TestExecutePlanFragments_DuplicateDependency(t *testing.T) {
	e := newEngine(t, testConfig())
	scan := load(t, e, scanDistrict)
	inv := Invocation{FragmentID: scan, OutputDepID: 1, InputDepID: dependency.NoDependency}

	n, st := e.ExecutePlanFragments([]Invocation{inv, inv})
	assert.Equal(t, StatusError, st)
	assert.Equal(t, 1, n)
	assert.Equal(t, dberror.CodeDuplicateDependency, exception(t, e).Code)

	rs := results(t, e)
	require.Len(t, rs, 1, "the rejected fragment leaves no result entry")
	assert.Equal(t, int32(1), rs[0].DepID)
	assert.Equal(t, 1.0, e.Stats()[stats.FragmentsExecuted])
}

func TestExecutePlanFragments_DuplicateDependencyAfterInsert(t *testing.T) {
	e := newEngine(t, testConfig())
	ins := load(t, e, insertDistrict)
	require.NoError(t, e.SetUndoToken(1))
	inv := func(id int32) Invocation {
		return Invocation{
			FragmentID:  ins,
			OutputDepID: 4,
			InputDepID:  dependency.NoDependency,
			TxnID:       1,
			Params:      params.Append(nil, types.NewInteger(id), types.NewInteger(1)),
		}
	}

	n, st := e.ExecutePlanFragments([]Invocation{inv(1), inv(2)})
	require.Equal(t, StatusError, st)
	assert.Equal(t, 1, n)
	assert.Equal(t, dberror.CodeDuplicateDependency, exception(t, e).Code)
	assert.Equal(t, int64(1), e.TuplesModified(), "only the published fragment counts")
	assert.Equal(t, 1.0, e.Stats()[stats.TuplesModified])
	assert.Len(t, results(t, e), 1)
}

func TestExecutePlanFragments_BatchLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBatchCount = 1
	e := newEngine(t, cfg)
	scan := load(t, e, scanDistrict)
	inv := NewInvocation(scan, 1, nil)

	_, st := e.ExecutePlanFragments([]Invocation{inv, inv})
	assert.Equal(t, StatusError, st)
	assert.Equal(t, dberror.CodeBatchOverflow, exception(t, e).Code)
}

type fetchFunc func(id int32) (*table.Temp, error)

func (f fetchFunc) Fetch(id int32) (*table.Temp, error) { return f(id) }

func TestExecuteQuery_ReentrantCallIsBusy(t *testing.T) {
	var e *Engine
	var reentrant error
	src := fetchFunc(func(int32) (*table.Temp, error) {
		reentrant = e.Tick(time.Now(), 0)
		return nil, nil
	})
	e = newEngine(t, testConfig(), WithDependencySource(src))
	sum := load(t, e, sumReceived)

	st := e.ExecuteQuery(Invocation{FragmentID: sum, OutputDepID: dependency.NoDependency, InputDepID: 3, First: true, Last: true})
	assert.Equal(t, StatusError, st)
	assert.True(t, errors.Is(reentrant, dberror.ErrEngineBusy))
	assert.NoError(t, e.Tick(time.Now(), 0), "the guard is released after the call")
}

// ============================================================================
// Catalog, tables and cache
// ============================================================================

func catalogDiff() catalog.Diff {
	return catalog.Diff{Additions: []catalog.TableDef{{
		ID:      3,
		Name:    "ITEM",
		Columns: []catalog.ColumnDef{{Name: "I_ID", Type: "BIGINT"}},
	}}}
}

func TestUpdateCatalog_ClearsCache(t *testing.T) {
	e := newEngine(t, testConfig())
	load(t, e, scanWarehouse)
	require.Equal(t, 1, e.CacheLen())

	require.NoError(t, e.UpdateCatalog(5, catalogDiff()))
	assert.Equal(t, 0, e.CacheLen())
	_, hit, _, err := e.LoadFragment([]byte(scanWarehouse))
	require.NoError(t, err)
	assert.False(t, hit)

	err = e.UpdateCatalog(6, catalogDiff())
	assert.True(t, errors.Is(err, dberror.ErrCatalogConflict))
	assert.Equal(t, 1, e.CacheLen(), "a rejected diff keeps the cache")
}

func TestLoadFragment_BadPlanLeavesCache(t *testing.T) {
	e := newEngine(t, testConfig())
	load(t, e, scanWarehouse)
	_, _, size, err := e.LoadFragment([]byte(`{"nodes":[{"id":1,"type":"SEQSCAN","table":"MISSING"}]}`))
	assert.True(t, errors.Is(err, dberror.ErrUnknownTable))
	assert.Equal(t, int64(1), size)
}

func TestResizePlanCache(t *testing.T) {
	cfg := testConfig()
	cfg.PlanCacheTargetSize = 1
	e := newEngine(t, cfg)
	first := load(t, e, scanWarehouse)
	load(t, e, scanDistrict)

	evicted, err := e.ResizePlanCache()
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, e.CacheLen())
	require.Equal(t, StatusError, exec(e, first, 1))
	assert.Equal(t, dberror.CodeUnknownFragment, exception(t, e).Code)
}

func TestResizePlanCache_FaultedEngine(t *testing.T) {
	e := newEngine(t, testConfig())
	load(t, e, insertWarehouse)
	require.Equal(t, StatusError, insertW(e, 1, 1))
	require.Error(t, e.Faulted())

	evicted, err := e.ResizePlanCache()
	assert.True(t, errors.Is(err, dberror.ErrEngineFaulted))
	assert.Equal(t, 0, evicted)
	assert.Equal(t, 1, e.CacheLen())
}

func TestLoadTableAndSerializeTable(t *testing.T) {
	src := newEngine(t, testConfig())
	ins := load(t, src, insertDistrict)
	require.NoError(t, src.SetUndoToken(1))
	require.Equal(t, StatusSuccess, exec(src, ins, 1, types.NewInteger(1), types.NewInteger(2)))
	require.Equal(t, StatusSuccess, exec(src, ins, 1, types.NewInteger(3), types.NewInteger(4)))

	require.NoError(t, src.SerializeTable(2))
	data := append([]byte(nil), src.ResultBytes()...)

	dst := newEngine(t, testConfig())
	require.NoError(t, dst.LoadTable(2, data, 1, 0))
	assert.Equal(t, 2, rowCount(t, dst, "DISTRICT"))
	assert.Equal(t, 0, dst.sentinel.Len(), "an unarmed load keeps no undo records")

	err := dst.LoadTable(1, data, 1, 0)
	assert.True(t, errors.Is(err, dberror.ErrSchemaMismatch))
	err = dst.LoadTable(99, data, 1, 0)
	assert.True(t, errors.Is(err, dberror.ErrUnknownTable))
}

// ============================================================================
// Hashinate and hooks
// ============================================================================

func TestHashinate(t *testing.T) {
	assert.Equal(t, int32(2), Hashinate(types.NewInteger(7), 5))
	assert.Equal(t, int32(3), Hashinate(types.NewBigInt(-7), 5))
	assert.Equal(t, int32(0), Hashinate(types.Null(types.IntegerType), 5))
	assert.Equal(t, int32(0), Hashinate(types.NewInteger(7), 1))

	s := Hashinate(types.NewVarchar("warehouse-9"), 8)
	assert.Equal(t, s, Hashinate(types.NewVarchar("warehouse-9"), 8))
	assert.True(t, s >= 0 && s < 8)

	cfg := testConfig()
	cfg.Partitions = 4
	e := New(cfg, 3)
	assert.True(t, e.IsLocalSite(types.NewInteger(7)))
	assert.False(t, e.IsLocalSite(types.NewInteger(8)))
}

type recordingHooks struct {
	NopHooks
	ticks    int
	quiesced int64
	active   []int32
}

func (h *recordingHooks) Tick(time.Time, int64) error { h.ticks++; return nil }

func (h *recordingHooks) Quiesce(txn int64) error { h.quiesced = txn; return nil }

func (h *recordingHooks) ActivateStream(id int32) error {
	h.active = append(h.active, id)
	return nil
}

func TestHooks(t *testing.T) {
	h := &recordingHooks{}
	e := newEngine(t, testConfig(), WithHooks(h))

	require.NoError(t, e.Tick(time.Now(), 1))
	require.NoError(t, e.Quiesce(9))
	require.NoError(t, e.ActivateTableStream(2))
	assert.True(t, errors.Is(e.ActivateTableStream(42), dberror.ErrUnknownTable))

	n, err := e.TableStreamSerializeMore(2)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, 1, h.ticks)
	assert.Equal(t, int64(9), h.quiesced)
	assert.Equal(t, []int32{2}, h.active)
}
