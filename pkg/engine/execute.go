package engine

import (
	"time"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/dependency"
	"sitekernel/pkg/execution"
	"sitekernel/pkg/logging"
	"sitekernel/pkg/stats"
	"sitekernel/pkg/table"
	"sitekernel/pkg/undo"
)

// Status is the outcome code returned to the caller.
type Status int32

const (
	StatusSuccess Status = 0
	StatusError   Status = 1
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "SUCCESS"
	}
	return "ERROR"
}

// Invocation is one request to run a loaded fragment.
type Invocation struct {
	FragmentID int64
	// OutputDepID names the dependency the result is published under;
	// dependency.NoDependency publishes nothing.
	OutputDepID int32
	// InputDepID names the dependency RECEIVE consumes; NoDependency if none.
	InputDepID         int32
	Params             []byte
	TxnID              int64
	LastCommittedTxnID int64
	// First and Last mark the batch boundaries.
	First, Last bool
	// ReadOnly runs the fragment against the sentinel quantum and rejects
	// mutating plans.
	ReadOnly bool
}

// NewInvocation returns a single-fragment batch with no dependencies.
func NewInvocation(fragmentID, txnID int64, params []byte) Invocation {
	return Invocation{
		FragmentID:  fragmentID,
		OutputDepID: dependency.NoDependency,
		InputDepID:  dependency.NoDependency,
		Params:      params,
		TxnID:       txnID,
		First:       true,
		Last:        true,
	}
}

// ExecuteQuery runs one fragment. On success the result entry is appended
// to the result buffer; on failure the exception buffer holds a structured
// exception. The exception buffer is rewound and marked "no exception" on
// every call, the result buffer at the start of every batch.
func (e *Engine) ExecuteQuery(inv Invocation) Status {
	e.exception.Reset(nil)
	if err := e.enter("ExecuteQuery"); err != nil {
		return e.reject(err)
	}
	defer e.exit()
	return e.executeQuery(inv)
}

// ExecutePlanFragments runs invocations in order as one batch. First and
// Last are derived from position. It stops at the first failure and
// returns how many fragments succeeded.
func (e *Engine) ExecutePlanFragments(batch []Invocation) (int, Status) {
	e.exception.Reset(nil)
	if err := e.enter("ExecutePlanFragments"); err != nil {
		return 0, e.reject(err)
	}
	defer e.exit()

	if len(batch) > e.cfg.MaxBatchCount {
		err := dberror.New(dberror.ErrCategoryUser, dberror.CodeBatchOverflow,
			"too many fragments in batch").
			WithDetail("%d fragments, limit %d", len(batch), e.cfg.MaxBatchCount).
			At("ExecutePlanFragments", "Engine")
		return 0, e.reject(err)
	}

	for i, inv := range batch {
		inv.First = i == 0
		inv.Last = i == len(batch)-1
		if st := e.executeQuery(inv); st != StatusSuccess {
			return i, st
		}
	}
	return len(batch), StatusSuccess
}

func (e *Engine) executeQuery(inv Invocation) Status {
	log := logging.WithTxnFragment(inv.TxnID, inv.FragmentID).With("partition_id", e.partitionID)
	e.state = StateIdle
	if err := e.exception.WriteNoException(); err != nil {
		log.Warn("exception buffer too small for marker", "error", err)
	}
	if inv.First {
		e.result.Reset(nil)
		e.router.Reset()
		e.tuplesModified = 0
		e.dirty = false
	}

	start := time.Now()
	out, modified, err := e.run(inv)
	e.sink.Observe(stats.FragmentDuration, time.Since(start).Seconds())

	mark := e.result.Len()
	if err == nil {
		err = e.result.WriteResult(inv.OutputDepID, out)
	}
	if err == nil && inv.OutputDepID != dependency.NoDependency {
		if err = e.router.Publish(inv.OutputDepID, out); err != nil {
			e.result.Truncate(mark)
		}
	}

	if err != nil {
		e.state = StateFailed
		e.sink.Add(stats.FragmentsFailed, 1)
		e.checkFatal(err)
		log.Debug("fragment failed", "state", e.state, "code", dberror.CodeOf(err), "error", err)
		e.writeException(err)
		return StatusError
	}

	e.state = StateResultReady
	e.tuplesModified += modified
	if modified > 0 {
		e.dirty = true
	}
	e.sink.Add(stats.TuplesModified, float64(modified))
	e.sink.Add(stats.FragmentsExecuted, 1)
	if inv.Last {
		e.finishBatch(inv)
	}
	log.Debug("fragment executed", "rows", out.RowCount(), "tuples_modified", modified,
		"output_dep", inv.OutputDepID)
	return StatusSuccess
}

// run walks PARAMS_BOUND, RESOLVED and RUNNING and returns the output table
// and the number of rows it changed.
func (e *Engine) run(inv Invocation) (*table.Temp, int64, error) {
	if err := e.params.Deserialize(inv.Params); err != nil {
		return nil, 0, err
	}
	e.state = StateParamsBound

	v, err := e.cache.Get(inv.FragmentID)
	if err != nil {
		return nil, 0, err
	}
	e.state = StateResolved

	e.cache.Pin(inv.FragmentID)
	defer e.cache.Unpin(inv.FragmentID)

	quantum, err := e.quantumFor(inv, v)
	if err != nil {
		return nil, 0, err
	}

	ctx := &execution.Context{
		Tables:             e.catalog,
		Params:             e.params.Values(),
		Quantum:            quantum,
		TxnID:              inv.TxnID,
		LastCommittedTxnID: inv.LastCommittedTxnID,
	}
	e.state = StateRunning
	if inv.InputDepID != dependency.NoDependency {
		in, err := e.router.Take(inv.InputDepID)
		if err != nil {
			return nil, 0, err
		}
		ctx.Input = in
	}

	out, err := v.Execute(ctx)
	e.sink.Set(stats.TempTablePeak, float64(v.Limits().Peak()))
	if err != nil {
		return nil, ctx.TuplesModified(), err
	}
	return out, ctx.TuplesModified(), nil
}

// quantumFor picks the quantum a run records into: the sentinel for
// read-only work, the armed quantum otherwise. A nil result for a mutating
// vector is caught by the vector as NO_UNDO_QUANTUM.
func (e *Engine) quantumFor(inv Invocation, v *execution.Vector) (*undo.Quantum, error) {
	if !v.Mutates() {
		return e.sentinel, nil
	}
	if inv.ReadOnly {
		return nil, dberror.New(dberror.ErrCategoryUser, dberror.CodeReadOnlyViolation,
			"mutating fragment invoked read-only").
			WithDetail("fragment %d", inv.FragmentID).
			At("ExecuteQuery", "Engine")
	}
	return e.current, nil
}

func (e *Engine) finishBatch(inv Invocation) {
	pending := e.router.Pending()
	if len(pending) == 0 {
		return
	}
	e.sink.Add(stats.DependenciesUnconsumed, float64(len(pending)))
	logging.WithBatch(inv.First, inv.Last).Warn("batch ended with unconsumed dependencies",
		"txn_id", inv.TxnID, "dependencies", pending)
}

func (e *Engine) writeException(err error) {
	e.exception.Reset(nil)
	if werr := e.exception.WriteException(err); werr != nil {
		e.log.Error("exception buffer too small", "error", werr, "cause", err)
	}
}

// reject reports an error raised before the invocation could start.
func (e *Engine) reject(err error) Status {
	e.writeException(err)
	return StatusError
}
