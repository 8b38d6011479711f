// Package engine is the execution driver of one partition.
//
// An Engine owns everything a partition needs to run plan fragments: the
// catalog of resident tables, the fragment cache, the undo log, the
// dependency router and the parameter set. Callers load fragments, arm undo
// quanta with SetUndoToken, and run fragments with ExecuteQuery or
// ExecutePlanFragments. Results and exceptions are written into buffers the
// caller lends through SetBuffers.
//
// Each invocation moves through these states:
//
//	IDLE -> PARAMS_BOUND -> RESOLVED -> RUNNING -> RESULT_READY
//	                                           \-> FAILED
//
// A failed invocation leaves its mutations in place; rolling them back is
// the coordinator's call through UndoUndoToken. Contract violations (a
// non-monotonic undo token, an undo replay failure, a mutating run with no
// armed quantum) fault the engine, and every later call fails with
// ENGINE_FAULTED until Reset.
//
// An Engine is single-threaded. Calls made while another call is in
// progress, typically from a hook or dependency source invoked during a
// run, fail with ENGINE_BUSY.
package engine
