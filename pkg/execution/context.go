package execution

import (
	"sitekernel/pkg/table"
	"sitekernel/pkg/types"
	"sitekernel/pkg/undo"
)

// TableResolver finds resident tables by name.
type TableResolver interface {
	TableByName(name string) (*table.Persistent, error)
}

// Context is the per-invocation state shared by the executors of one run.
type Context struct {
	Tables  TableResolver
	Params  []types.Value
	Quantum *undo.Quantum
	// Input is the dependency table consumed by RECEIVE, if any.
	Input *table.Temp

	TxnID              int64
	LastCommittedTxnID int64

	tuplesModified int64
}

// TuplesModified is the number of rows inserted, updated or deleted so far.
func (c *Context) TuplesModified() int64 { return c.tuplesModified }
